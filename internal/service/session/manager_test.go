package session

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-admin/assistant/internal/client/assistant"
	"github.com/zhouzirui/z-admin/assistant/internal/model/chat"
)

type fakeTransport struct {
	mu sync.Mutex

	createErr error
	history   []chat.Message
	send      func(content string) (*assistant.Reply, error)

	createCalls  int
	historyCalls int
	sendCalls    int
	lastSession  string
	lastContext  map[string]any
}

func (f *fakeTransport) CreateSession(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	return "remote-session", nil
}

func (f *fakeTransport) FetchHistory(_ context.Context, sessionID string) []chat.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	return append([]chat.Message(nil), f.history...)
}

func (f *fakeTransport) SendMessage(_ context.Context, content, sessionID string, chatContext map[string]any) (*assistant.Reply, error) {
	f.mu.Lock()
	f.sendCalls++
	f.lastSession = sessionID
	f.lastContext = chatContext
	send := f.send
	f.mu.Unlock()

	if send == nil {
		return &assistant.Reply{Message: "ok"}, nil
	}
	return send(content)
}

func (f *fakeTransport) sends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCalls
}

type actionLog struct {
	mu      sync.Mutex
	actions []chat.Action
	busy    []bool
	m       *Manager
}

func (l *actionLog) HandleAction(a chat.Action) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actions = append(l.actions, a)
	if l.m != nil {
		l.busy = append(l.busy, l.m.Busy())
	}
}

type errorLog struct {
	errs []error
}

func (l *errorLog) HandleError(err error) { l.errs = append(l.errs, err) }

type staticContext map[string]any

func (c staticContext) ChatContext() map[string]any { return c }

func startedManager(t *testing.T, ft *fakeTransport, opts ...Option) *Manager {
	t.Helper()
	m := New(ft, opts...)
	m.Start(context.Background())
	require.Equal(t, StateActive, m.State())
	return m
}

func TestStartSeedsGreetingWhenHistoryEmpty(t *testing.T) {
	ft := &fakeTransport{}
	m := startedManager(t, ft, WithUserID("u-1"))

	snap := m.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, chat.RoleAssistant, snap.Messages[0].Role)
	assert.Equal(t, GreetingText, snap.Messages[0].Content)
	assert.Equal(t, "remote-session", snap.SessionID)
	assert.False(t, m.Degraded())

	sess, ok := m.Session()
	require.True(t, ok)
	assert.Equal(t, "u-1", sess.OwnerUserID)
	assert.Equal(t, chat.CreatedRemote, sess.CreatedVia)
}

func TestStartSeedsHistoryVerbatim(t *testing.T) {
	ts := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	history := []chat.Message{
		{ID: "user-1", Content: "earlier question", Role: chat.RoleUser, Timestamp: ts},
		{ID: "m2", Content: "earlier answer", Role: chat.RoleAssistant, Timestamp: ts},
	}
	ft := &fakeTransport{history: history}
	m := startedManager(t, ft)

	assert.Equal(t, history, m.Snapshot().Messages)

	m.SendMessage(context.Background(), "next")
	snap := m.Snapshot()
	require.Len(t, snap.Messages, 4)
	assert.NotEqual(t, "user-1", snap.Messages[2].ID, "generated ids must not collide with history")
}

func TestStartRunsOnce(t *testing.T) {
	ft := &fakeTransport{}
	m := startedManager(t, ft)
	m.Start(context.Background())

	assert.Equal(t, 1, ft.createCalls)
	assert.Equal(t, 1, ft.historyCalls)
	assert.Len(t, m.Snapshot().Messages, 1)
}

func TestSendBeforeStartIsIgnored(t *testing.T) {
	ft := &fakeTransport{}
	m := New(ft)

	m.SendMessage(context.Background(), "hello")
	assert.Equal(t, StateUninitialized, m.State())
	assert.Empty(t, m.Snapshot().Messages)
	assert.Zero(t, ft.sends())
}

func TestBlankInputIsRejected(t *testing.T) {
	ft := &fakeTransport{}
	m := startedManager(t, ft)
	before := m.Snapshot()

	m.SendMessage(context.Background(), "   ")
	m.SendMessage(context.Background(), "\n\t")

	assert.Equal(t, before, m.Snapshot())
	assert.Zero(t, ft.sends())
}

func TestScenarioSuccessfulSend(t *testing.T) {
	actions := []chat.Action{
		chat.NavigateAction{Path: "/projects?status=active"},
		chat.RefreshAction{},
	}
	ft := &fakeTransport{send: func(content string) (*assistant.Reply, error) {
		return &assistant.Reply{Message: "Here are your active projects.", Actions: actions}, nil
	}}
	log := &actionLog{}
	m := startedManager(t, ft, WithActionHandler(log))
	log.m = m

	m.SendMessage(context.Background(), "Show me all active projects")

	snap := m.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, GreetingText, snap.Messages[0].Content)
	assert.Equal(t, chat.RoleUser, snap.Messages[1].Role)
	assert.Equal(t, "Show me all active projects", snap.Messages[1].Content)
	assert.Equal(t, chat.RoleAssistant, snap.Messages[2].Role)
	assert.Equal(t, "Here are your active projects.", snap.Messages[2].Content)
	assert.Empty(t, snap.Messages[2].Error)
	assert.False(t, snap.Busy)
	assert.NoError(t, snap.LastError)

	assert.Equal(t, actions, log.actions)
	assert.Equal(t, []bool{true, true}, log.busy, "busy clears only after dispatch")
}

func TestSendTrimsContentAndPassesContext(t *testing.T) {
	var sent string
	ft := &fakeTransport{send: func(content string) (*assistant.Reply, error) {
		sent = content
		return &assistant.Reply{Message: "ok"}, nil
	}}
	m := startedManager(t, ft, WithContextProvider(staticContext{"page": "/tasks"}))

	m.SendMessage(context.Background(), "  list tasks  ")

	assert.Equal(t, "list tasks", sent)
	assert.Equal(t, "list tasks", m.Snapshot().Messages[1].Content)
	assert.Equal(t, "/tasks", ft.lastContext["page"])
	assert.Equal(t, "remote-session", ft.lastSession)
}

func TestUserMessageAppendedBeforeNetwork(t *testing.T) {
	var m *Manager
	var during chat.ChatState
	ft := &fakeTransport{send: func(content string) (*assistant.Reply, error) {
		during = m.Snapshot()
		return &assistant.Reply{Message: "ok"}, nil
	}}
	m = startedManager(t, ft)

	m.SendMessage(context.Background(), "hi")

	require.Len(t, during.Messages, 2)
	assert.Equal(t, "hi", during.Messages[1].Content)
	assert.True(t, during.Busy)
}

func TestSecondConcurrentSendIsDropped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	ft := &fakeTransport{send: func(content string) (*assistant.Reply, error) {
		close(entered)
		<-release
		return &assistant.Reply{Message: "done"}, nil
	}}
	m := startedManager(t, ft)

	done := make(chan struct{})
	go func() {
		m.SendMessage(context.Background(), "first")
		close(done)
	}()
	<-entered

	m.SendMessage(context.Background(), "second")
	mid := m.Snapshot()
	assert.True(t, mid.Busy)
	require.Len(t, mid.Messages, 2)
	assert.Equal(t, "first", mid.Messages[1].Content)

	close(release)
	<-done

	snap := m.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, "done", snap.Messages[2].Content)
	assert.False(t, snap.Busy)
	assert.Equal(t, 1, ft.sends())
}

func TestFailedSendAppendsErrorMessage(t *testing.T) {
	ft := &fakeTransport{send: func(string) (*assistant.Reply, error) {
		return nil, &assistant.TransportError{Status: 500, Message: "boom"}
	}}
	errs := &errorLog{}
	actions := &actionLog{}
	m := startedManager(t, ft, WithErrorHandler(errs), WithActionHandler(actions))

	m.SendMessage(context.Background(), "do it")

	snap := m.Snapshot()
	last, ok := snap.Last()
	require.True(t, ok)
	assert.Equal(t, chat.RoleAssistant, last.Role)
	assert.Equal(t, ApologyText, last.Content)
	assert.Equal(t, "boom", last.Error)
	assert.False(t, snap.Busy)

	te, ok := assistant.AsTransportError(snap.LastError)
	require.True(t, ok)
	assert.Equal(t, "boom", te.Message)
	require.Len(t, errs.errs, 1)
	assert.Empty(t, actions.actions)
}

func TestPlainErrorTextIsRecorded(t *testing.T) {
	ft := &fakeTransport{send: func(string) (*assistant.Reply, error) {
		return nil, errors.New("boom")
	}}
	m := startedManager(t, ft)

	m.SendMessage(context.Background(), "x")
	last, _ := m.Snapshot().Last()
	assert.Equal(t, "boom", last.Error)
}

func TestNextSendClearsLastError(t *testing.T) {
	fail := true
	ft := &fakeTransport{send: func(string) (*assistant.Reply, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return &assistant.Reply{Message: "fine"}, nil
	}}
	m := startedManager(t, ft)

	m.SendMessage(context.Background(), "one")
	require.Error(t, m.Snapshot().LastError)

	fail = false
	m.SendMessage(context.Background(), "two")
	snap := m.Snapshot()
	assert.NoError(t, snap.LastError)
	assert.Len(t, snap.Messages, 5)
	assert.Equal(t, "boom", snap.Messages[2].Error, "earlier failure stays in the transcript")
}

func TestFallbackSessionID(t *testing.T) {
	ft := &fakeTransport{createErr: &assistant.TransportError{Status: 503, Message: "HTTP 503"}}
	clock := func() time.Time { return time.UnixMilli(1767225600000) }
	m := startedManager(t, ft, WithClock(clock))

	assert.True(t, m.Degraded())
	assert.Regexp(t, regexp.MustCompile(`^session_1767225600000_[0-9a-f]{9}$`), m.SessionID())

	m.SendMessage(context.Background(), "still works")
	snap := m.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, "ok", snap.Messages[2].Content)
	assert.Equal(t, m.SessionID(), ft.lastSession)
}

func TestFallbackSessionIDsDiffer(t *testing.T) {
	a := New(&fakeTransport{createErr: errors.New("down")})
	b := New(&fakeTransport{createErr: errors.New("down")})
	a.Start(context.Background())
	b.Start(context.Background())
	assert.NotEqual(t, a.SessionID(), b.SessionID())
}

func TestClearChat(t *testing.T) {
	ft := &fakeTransport{send: func(string) (*assistant.Reply, error) {
		return nil, errors.New("boom")
	}}
	m := startedManager(t, ft)
	m.SendMessage(context.Background(), "first")
	before := m.Snapshot()
	require.Len(t, before.Messages, 3)

	m.ClearChat()

	after := m.Snapshot()
	require.Len(t, after.Messages, 1)
	assert.Equal(t, GreetingText, after.Messages[0].Content)
	assert.NotEqual(t, before.Messages[0].ID, after.Messages[0].ID)
	assert.Equal(t, before.SessionID, after.SessionID)
	assert.Equal(t, before.LastError, after.LastError)
}

func TestClearChatBeforeStart(t *testing.T) {
	m := New(&fakeTransport{})
	m.ClearChat()
	assert.Len(t, m.Snapshot().Messages, 1)
	assert.Equal(t, StateUninitialized, m.State())
}

func TestTranscriptIsAppendOnly(t *testing.T) {
	n := 0
	ft := &fakeTransport{send: func(string) (*assistant.Reply, error) {
		n++
		if n%2 == 0 {
			return nil, errors.New("even")
		}
		return &assistant.Reply{Message: "odd"}, nil
	}}
	m := startedManager(t, ft)

	prev := m.Snapshot().Messages
	for _, text := range []string{"a", "  ", "b", "c", ""} {
		m.SendMessage(context.Background(), text)
		cur := m.Snapshot().Messages
		require.GreaterOrEqual(t, len(cur), len(prev))
		assert.Equal(t, prev, cur[:len(prev)])
		prev = cur
	}

	seen := map[string]bool{}
	for _, msg := range prev {
		assert.False(t, seen[msg.ID], "duplicate id %s", msg.ID)
		seen[msg.ID] = true
	}
	assert.Len(t, prev, 7)
}

func TestSnapshotIsACopy(t *testing.T) {
	m := startedManager(t, &fakeTransport{})
	snap := m.Snapshot()
	snap.Messages[0].Content = "mutated"
	assert.Equal(t, GreetingText, m.Snapshot().Messages[0].Content)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "state(9)", State(9).String())
}

type panickingActions struct{}

func (panickingActions) HandleAction(chat.Action) { panic("handler exploded") }

func TestTransportPanicDoesNotLeaveBusy(t *testing.T) {
	calls := 0
	ft := &fakeTransport{send: func(string) (*assistant.Reply, error) {
		calls++
		if calls == 1 {
			panic("transport exploded")
		}
		return &assistant.Reply{Message: "recovered"}, nil
	}}
	m := startedManager(t, ft)

	assert.Panics(t, func() { m.SendMessage(context.Background(), "first") })
	assert.False(t, m.Busy())

	m.SendMessage(context.Background(), "second")
	assert.Equal(t, 2, ft.sends())
	last, ok := m.Snapshot().Last()
	require.True(t, ok)
	assert.Equal(t, "recovered", last.Content)
}

func TestActionHandlerPanicDoesNotLeaveBusy(t *testing.T) {
	ft := &fakeTransport{send: func(content string) (*assistant.Reply, error) {
		if content != "first" {
			return &assistant.Reply{Message: "done"}, nil
		}
		return &assistant.Reply{
			Message: "going",
			Actions: []chat.Action{chat.NavigateAction{Path: "/tasks"}},
		}, nil
	}}
	m := startedManager(t, ft, WithActionHandler(panickingActions{}))

	assert.Panics(t, func() { m.SendMessage(context.Background(), "first") })
	assert.False(t, m.Busy())

	m.SendMessage(context.Background(), "second")
	assert.Equal(t, 2, ft.sends())
	snap := m.Snapshot()
	require.Len(t, snap.Messages, 5)
	assert.Equal(t, "going", snap.Messages[2].Content)
	assert.Equal(t, "done", snap.Messages[4].Content)
}
