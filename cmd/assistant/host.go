package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/zhouzirui/z-admin/assistant/internal/model/chat"
)

// terminalHost stands in for the admin console: it tracks the current page and
// reports the side effects the assistant requests. Effects are held until
// flush so they print after the reply that caused them.
type terminalHost struct {
	out io.Writer

	mu      sync.Mutex
	page    string
	pending bytes.Buffer
}

func newTerminalHost(out io.Writer, page string) *terminalHost {
	return &terminalHost{out: out, page: page}
}

func (h *terminalHost) Navigate(path string) {
	h.mu.Lock()
	h.page = path
	h.mu.Unlock()
	h.printf("  -> navigate %s\n", path)
}

func (h *terminalHost) OpenModal(modal string, data map[string]any) {
	h.printf("  -> open modal %s%s\n", modal, formatData(data))
}

func (h *terminalHost) Refresh(data map[string]any) {
	h.printf("  -> refresh %s%s\n", h.currentPage(), formatData(data))
}

func (h *terminalHost) HandleCustom(payload json.RawMessage) {
	h.printf("  -> custom %s\n", string(payload))
}

func (h *terminalHost) Unhandled(a chat.Action) {
	h.printf("  -> ignored action %q\n", a.Type())
}

func (h *terminalHost) HandleError(err error) {
	h.printf("  !! %v\n", err)
}

func (h *terminalHost) ChatContext() map[string]any {
	return map[string]any{"page": h.currentPage(), "client": "terminal"}
}

func (h *terminalHost) printf(format string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(&h.pending, format, args...)
}

// flush writes the effects reported since the last flush.
func (h *terminalHost) flush() {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = h.pending.WriteTo(h.out)
}

func (h *terminalHost) currentPage() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.page
}

func formatData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func printMessage(out io.Writer, msg chat.Message) {
	label := "assistant"
	switch msg.Role {
	case chat.RoleUser:
		label = "you"
	case chat.RoleSystem:
		label = "system"
	}
	fmt.Fprintf(out, "[%s] %s: %s\n", msg.Timestamp.Format("15:04:05"), label, msg.Content)
	if msg.Error != "" {
		fmt.Fprintf(out, "          error: %s\n", msg.Error)
	}
}
