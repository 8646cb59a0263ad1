package reply

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-admin/assistant/internal/analysis/intent"
	"github.com/zhouzirui/z-admin/assistant/internal/model/chat"
	"github.com/zhouzirui/z-admin/assistant/internal/observability"
)

var ErrEmptyContent = errors.New("content is required")

// Store is the transcript storage the service writes to.
type Store interface {
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error)
	SaveMessage(ctx context.Context, sessionID string, message chat.Message) (chat.Message, error)
}

// Generator writes reply text, usually an LLM.
type Generator interface {
	GenerateResponse(ctx context.Context, history []chat.Message, userMessage string, pageContext map[string]any, hint string) (string, error)
}

// Result is the assistant's answer to one user message.
type Result struct {
	Message  string
	Actions  []chat.Action
	Metadata map[string]any
}

// Service answers user messages: it records the exchange, picks actions from
// the detected intent and lets the generator phrase the reply when present.
type Service struct {
	store     Store
	generator Generator
	logger    *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithGenerator enables generated reply text.
func WithGenerator(g Generator) Option {
	return func(s *Service) { s.generator = g }
}

// WithLogger sets the fallback logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a reply service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reply handles one user message for sessionID.
func (s *Service) Reply(ctx context.Context, sessionID, content string, pageContext map[string]any) (Result, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Result{}, ErrEmptyContent
	}

	log := observability.LoggerFromContext(ctx, s.logger).With(zap.String("session_id", sessionID))

	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return Result{}, err
	}

	history, err := s.store.LoadTranscript(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}

	if _, err := s.store.SaveMessage(ctx, sessionID, chat.Message{Role: chat.RoleUser, Content: content}); err != nil {
		return Result{}, err
	}

	decision := intent.Analyze(content)
	text := decision.Reply
	source := "rules"

	if s.generator != nil {
		generated, genErr := s.generator.GenerateResponse(ctx, history, content, pageContext, decision.Reply)
		switch {
		case genErr != nil:
			log.Warn("reply generation failed, using rule based reply", zap.Error(genErr))
		case strings.TrimSpace(generated) != "":
			text = strings.TrimSpace(generated)
			source = "llm"
		}
	}

	if _, err := s.store.SaveMessage(ctx, sessionID, chat.Message{Role: chat.RoleAssistant, Content: text}); err != nil {
		return Result{}, err
	}

	log.Info("reply ready",
		zap.String("intent", string(decision.Intent)),
		zap.String("source", source),
		zap.Int("actions", len(decision.Actions)))

	return Result{
		Message: text,
		Actions: decision.Actions,
		Metadata: map[string]any{
			"intent": string(decision.Intent),
			"entity": string(decision.Entity),
			"source": source,
		},
	}, nil
}
