package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-admin/assistant/internal/model/chat"
)

var (
	ErrUserRequired    = errors.New("user id is required")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRole     = errors.New("invalid message role")
)

// Service keeps sessions and their transcripts in memory.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message
	now      func() time.Time
}

// NewService bootstraps the in-memory chat store.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession provisions a session owned by userID.
func (s *Service) CreateSession(_ context.Context, userID string) (chat.Session, error) {
	if userID == "" {
		return chat.Session{}, ErrUserRequired
	}

	session := chat.Session{
		ID:          uuid.NewString(),
		OwnerUserID: userID,
		CreatedVia:  chat.CreatedRemote,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = make([]chat.Message, 0, 16)
	s.mu.Unlock()

	return session, nil
}

// EnsureSession returns the session with id, registering it for ownerUserID
// when the id was generated by a client that could not create a session.
func (s *Service) EnsureSession(_ context.Context, id, ownerUserID string) (chat.Session, error) {
	if id == "" {
		return chat.Session{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		return session, nil
	}

	session := chat.Session{
		ID:          id,
		OwnerUserID: ownerUserID,
		CreatedVia:  chat.CreatedLocalFallback,
	}
	s.sessions[id] = session
	s.messages[id] = make([]chat.Message, 0, 16)
	return session, nil
}

// SaveMessage appends a message to the session transcript and returns it with
// its assigned id and timestamp.
func (s *Service) SaveMessage(_ context.Context, sessionID string, message chat.Message) (chat.Message, error) {
	if sessionID == "" {
		return chat.Message{}, ErrSessionNotFound
	}
	if !message.Role.Valid() {
		return chat.Message{}, ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return chat.Message{}, ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	if message.Timestamp.IsZero() {
		message.Timestamp = s.now()
	}

	s.messages[sessionID] = append(s.messages[sessionID], message)
	return message, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}
