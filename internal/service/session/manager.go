package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-admin/assistant/internal/client/assistant"
	"github.com/zhouzirui/z-admin/assistant/internal/model/chat"
)

const (
	// GreetingText seeds an empty or cleared transcript.
	GreetingText = "Hello! I'm your admin assistant. Ask me to find records, open a form, or take you anywhere in the console."
	// ApologyText replaces the assistant reply when a send fails.
	ApologyText = "Sorry, I couldn't process that request. Please try again."
)

// State is the lifecycle position of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is the part of the chat client the manager depends on.
type Transport interface {
	CreateSession(ctx context.Context, userID string) (string, error)
	FetchHistory(ctx context.Context, sessionID string) []chat.Message
	SendMessage(ctx context.Context, content, sessionID string, chatContext map[string]any) (*assistant.Reply, error)
}

// ActionHandler receives actions returned with an assistant reply.
type ActionHandler interface {
	HandleAction(a chat.Action)
}

// ErrorHandler is told about failed sends.
type ErrorHandler interface {
	HandleError(err error)
}

// ContextProvider supplies the context object sent with each message.
type ContextProvider interface {
	ChatContext() map[string]any
}

// Manager owns one conversation: its session id, transcript and the single
// in-flight send. The transcript is append-only; ClearChat is the only
// operation that shortens it.
type Manager struct {
	transport Transport
	userID    string
	actions   ActionHandler
	errors    ErrorHandler
	context   ContextProvider
	logger    *zap.Logger
	now       func() time.Time
	suffix    func() string

	mu       sync.Mutex
	state    State
	session  *chat.Session
	messages []chat.Message
	busy     bool
	lastErr  error
	seq      uint64
	ids      map[string]struct{}
}

// Option customizes a Manager.
type Option func(*Manager)

// WithUserID sets the owner passed to session creation.
func WithUserID(id string) Option {
	return func(m *Manager) { m.userID = id }
}

// WithActionHandler sets the action sink, typically an action.Dispatcher.
func WithActionHandler(h ActionHandler) Option {
	return func(m *Manager) { m.actions = h }
}

// WithErrorHandler sets the failed-send sink.
func WithErrorHandler(h ErrorHandler) Option {
	return func(m *Manager) { m.errors = h }
}

// WithContextProvider sets the source of the per-message context.
func WithContextProvider(p ContextProvider) Option {
	return func(m *Manager) { m.context = p }
}

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the time source used for timestamps and fallback ids.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates an uninitialized manager. Call Start before sending.
func New(transport Transport, opts ...Option) *Manager {
	m := &Manager{
		transport: transport,
		logger:    zap.NewNop(),
		now:       time.Now,
		suffix:    randomSuffix,
		ids:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates the session and seeds the transcript. It runs once; later
// calls return immediately.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return
	}
	m.state = StateInitializing
	m.mu.Unlock()

	sess := chat.Session{OwnerUserID: m.userID, CreatedVia: chat.CreatedRemote}
	id, err := m.transport.CreateSession(ctx, m.userID)
	if err != nil {
		id = m.fallbackSessionID()
		sess.CreatedVia = chat.CreatedLocalFallback
		m.logger.Warn("session service unavailable, using local session id",
			zap.String("session_id", id), zap.Error(err))
	}
	sess.ID = id

	history := m.transport.FetchHistory(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = &sess
	if len(history) > 0 {
		for _, msg := range history {
			m.appendLocked(msg)
		}
	} else {
		m.appendLocked(m.greetingLocked())
	}
	m.state = StateActive

	m.logger.Info("chat session ready",
		zap.String("session_id", sess.ID),
		zap.String("created_via", string(sess.CreatedVia)),
		zap.Int("history", len(history)))
}

// SendMessage appends the user's message, sends it and appends the outcome.
// It is silently ignored when the manager is not active, another send is in
// flight, or content is blank.
func (m *Manager) SendMessage(ctx context.Context, content string) {
	text := strings.TrimSpace(content)

	m.mu.Lock()
	if m.state != StateActive || m.busy || text == "" {
		m.mu.Unlock()
		return
	}
	m.appendLocked(m.newMessageLocked(chat.RoleUser, text, ""))
	m.busy = true
	m.lastErr = nil
	sessionID := m.session.ID
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.busy = false
		m.mu.Unlock()
	}()

	var chatContext map[string]any
	if m.context != nil {
		chatContext = m.context.ChatContext()
	}

	reply, err := m.transport.SendMessage(ctx, text, sessionID, chatContext)
	if err != nil {
		m.fail(sessionID, err)
		return
	}
	if reply == nil {
		reply = &assistant.Reply{}
	}

	m.mu.Lock()
	m.appendLocked(m.newMessageLocked(chat.RoleAssistant, reply.Message, ""))
	m.mu.Unlock()

	if m.actions == nil {
		return
	}
	for _, a := range reply.Actions {
		m.actions.HandleAction(a)
	}
}

func (m *Manager) fail(sessionID string, err error) {
	m.mu.Lock()
	m.lastErr = err
	m.appendLocked(m.newMessageLocked(chat.RoleAssistant, ApologyText, errorText(err)))
	m.mu.Unlock()

	m.logger.Warn("send failed", zap.String("session_id", sessionID), zap.Error(err))
	if m.errors != nil {
		m.errors.HandleError(err)
	}
}

// ClearChat replaces the transcript with a fresh greeting. Busy, session and
// error state are untouched.
func (m *Manager) ClearChat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = []chat.Message{m.greetingLocked()}
}

// Snapshot returns a copy of the observable state.
func (m *Manager) Snapshot() chat.ChatState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := chat.ChatState{
		Messages:  append([]chat.Message(nil), m.messages...),
		Busy:      m.busy,
		LastError: m.lastErr,
	}
	if m.session != nil {
		state.SessionID = m.session.ID
	}
	return state
}

// State reports the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Busy reports whether a send is in flight.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// Session returns the session once initialization finished.
func (m *Manager) Session() (chat.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return chat.Session{}, false
	}
	return *m.session, true
}

// SessionID is empty until initialization finished.
func (m *Manager) SessionID() string {
	s, _ := m.Session()
	return s.ID
}

// Degraded reports whether the session id was generated locally.
func (m *Manager) Degraded() bool {
	s, ok := m.Session()
	return ok && s.CreatedVia == chat.CreatedLocalFallback
}

func (m *Manager) appendLocked(msg chat.Message) {
	if msg.ID != "" {
		m.ids[msg.ID] = struct{}{}
	}
	m.messages = append(m.messages, msg)
}

func (m *Manager) greetingLocked() chat.Message {
	return m.newMessageLocked(chat.RoleAssistant, GreetingText, "")
}

func (m *Manager) newMessageLocked(role chat.Role, content, errText string) chat.Message {
	return chat.Message{
		ID:        m.nextIDLocked(role),
		Content:   content,
		Role:      role,
		Timestamp: m.now(),
		Error:     errText,
	}
}

// nextIDLocked returns "<role>-<n>", skipping ids already seen in this
// manager's transcript, including seeded history.
func (m *Manager) nextIDLocked(role chat.Role) string {
	for {
		m.seq++
		id := fmt.Sprintf("%s-%d", role, m.seq)
		if _, taken := m.ids[id]; !taken {
			return id
		}
	}
}

func (m *Manager) fallbackSessionID() string {
	return fmt.Sprintf("session_%d_%s", m.now().UnixMilli(), m.suffix())
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}

func errorText(err error) string {
	if te, ok := assistant.AsTransportError(err); ok && te.Message != "" {
		return te.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "unknown error"
}
