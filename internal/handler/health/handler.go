package health

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-admin/assistant/pkg/utils"
)

// Handler reports service liveness.
type Handler struct {
	started time.Time
	llm     bool
}

// New creates a health handler. llm reports whether generated replies are on.
func New(llm bool) *Handler {
	return &Handler{started: time.Now(), llm: llm}
}

// RegisterRoutes registers GET /health.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"llm":      h.llm,
		"uptime_s": int64(time.Since(h.started).Seconds()),
	})
}
