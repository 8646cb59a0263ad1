package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-admin/assistant/internal/middleware"
	"github.com/zhouzirui/z-admin/assistant/internal/model/chat"
	chatService "github.com/zhouzirui/z-admin/assistant/internal/service/chat"
	"github.com/zhouzirui/z-admin/assistant/internal/service/reply"
	"github.com/zhouzirui/z-admin/assistant/pkg/utils"
)

var errForbidden = errors.New("session belongs to another user")

// Handler serves the session, history and message endpoints.
type Handler struct {
	chatSvc  *chatService.Service
	replySvc *reply.Service
}

// New creates the chat handler.
func New(chatSvc *chatService.Service, replySvc *reply.Service) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		replySvc: replySvc,
	}
}

// RegisterRoutes registers the chat routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/history", h.handleHistory)
	r.Post("/message", h.handleMessage)
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type historyResponse struct {
	Messages []chat.Message `json:"messages"`
}

type messageRequest struct {
	Content   string         `json:"content"`
	SessionID string         `json:"session_id"`
	Context   map[string]any `json:"context"`
}

type messageResponse struct {
	Message  string                  `json:"message"`
	Actions  []chat.ActionDescriptor `json:"actions"`
	Metadata map[string]any          `json:"metadata,omitempty"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := strings.TrimSpace(payload.UserID)
	if authUser, ok := middleware.UserIDFromContext(r.Context()); ok {
		if userID == "" {
			userID = authUser
		} else if userID != authUser {
			utils.RespondError(w, http.StatusForbidden, "user_id does not match token")
			return
		}
	}

	session, err := h.chatSvc.CreateSession(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, createSessionResponse{SessionID: session.ID})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if err := h.authorize(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}

	messages, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, historyResponse{Messages: messages})
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload messageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.SessionID) == "" {
		utils.RespondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if err := h.authorize(r.Context(), payload.SessionID); err != nil {
		respondServiceError(w, err)
		return
	}

	result, err := h.replySvc.Reply(r.Context(), payload.SessionID, payload.Content, payload.Context)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, messageResponse{
		Message:  result.Message,
		Actions:  chat.EncodeActions(result.Actions),
		Metadata: result.Metadata,
	})
}

// authorize checks that an authenticated caller owns the session. Unknown ids
// come from clients running on a locally generated session and are adopted.
func (h *Handler) authorize(ctx context.Context, sessionID string) error {
	user, authenticated := middleware.UserIDFromContext(ctx)
	session, err := h.chatSvc.EnsureSession(ctx, sessionID, user)
	if err != nil {
		return err
	}
	if authenticated && session.OwnerUserID != user {
		return errForbidden
	}
	return nil
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errForbidden):
		utils.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, reply.ErrEmptyContent), errors.Is(err, chatService.ErrInvalidRole):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "failed to process message")
	}
}
