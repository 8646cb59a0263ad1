package reply

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-admin/assistant/internal/model/chat"
	chatservice "github.com/zhouzirui/z-admin/assistant/internal/service/chat"
)

type stubGenerator struct {
	text    string
	err     error
	history []chat.Message
	hint    string
}

func (g *stubGenerator) GenerateResponse(_ context.Context, history []chat.Message, _ string, _ map[string]any, hint string) (string, error) {
	g.history = history
	g.hint = hint
	return g.text, g.err
}

func newSession(t *testing.T) (*chatservice.Service, string) {
	t.Helper()
	store := chatservice.NewService()
	session, err := store.CreateSession(context.Background(), "u-1")
	require.NoError(t, err)
	return store, session.ID
}

func TestReplyWithRules(t *testing.T) {
	store, sessionID := newSession(t)
	svc := NewService(store)

	res, err := svc.Reply(context.Background(), sessionID, "Show me all active projects", nil)
	require.NoError(t, err)

	assert.Equal(t, "Here are your active projects.", res.Message)
	assert.Equal(t, []chat.Action{chat.NavigateAction{Path: "/projects?status=active"}}, res.Actions)
	assert.Equal(t, "rules", res.Metadata["source"])
	assert.Equal(t, "list", res.Metadata["intent"])

	transcript, err := store.LoadTranscript(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, chat.RoleUser, transcript[0].Role)
	assert.Equal(t, chat.RoleAssistant, transcript[1].Role)
	assert.Equal(t, res.Message, transcript[1].Content)
}

func TestReplyUsesGenerator(t *testing.T) {
	store, sessionID := newSession(t)
	gen := &stubGenerator{text: "  Opening the task form for you.  "}
	svc := NewService(store, WithGenerator(gen))

	_, err := svc.Reply(context.Background(), sessionID, "hello", nil)
	require.NoError(t, err)

	res, err := svc.Reply(context.Background(), sessionID, "add a task", nil)
	require.NoError(t, err)
	assert.Equal(t, "Opening the task form for you.", res.Message)
	assert.Equal(t, "llm", res.Metadata["source"])
	assert.Equal(t, "Opening the new task form.", gen.hint)
	assert.Len(t, gen.history, 2, "history excludes the current message")
	require.Len(t, res.Actions, 1)
}

func TestReplyFallsBackWhenGeneratorFails(t *testing.T) {
	store, sessionID := newSession(t)
	svc := NewService(store, WithGenerator(&stubGenerator{err: errors.New("quota")}))

	res, err := svc.Reply(context.Background(), sessionID, "refresh", nil)
	require.NoError(t, err)
	assert.Equal(t, "Refreshing the current view.", res.Message)
	assert.Equal(t, "rules", res.Metadata["source"])
}

func TestReplyErrors(t *testing.T) {
	store, sessionID := newSession(t)
	svc := NewService(store)

	_, err := svc.Reply(context.Background(), sessionID, "  ", nil)
	require.ErrorIs(t, err, ErrEmptyContent)

	_, err = svc.Reply(context.Background(), "missing", "hi", nil)
	require.ErrorIs(t, err, chatservice.ErrSessionNotFound)
}
