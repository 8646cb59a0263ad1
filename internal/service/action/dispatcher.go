package action

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-admin/assistant/internal/model/chat"
)

// Navigator routes the host application to a path.
type Navigator interface {
	Navigate(path string)
}

// ModalOpener opens a named modal in the host application.
type ModalOpener interface {
	OpenModal(modal string, data map[string]any)
}

// Refresher reloads the host's current view.
type Refresher interface {
	Refresh(data map[string]any)
}

// CustomHandler receives application specific payloads.
type CustomHandler interface {
	HandleCustom(payload json.RawMessage)
}

// FallbackHandler receives actions no other handler accepted.
type FallbackHandler interface {
	Unhandled(a chat.Action)
}

// Handlers groups the host supplied capabilities. Any of them may be nil.
type Handlers struct {
	Navigator Navigator
	Modals    ModalOpener
	Refresher Refresher
	Custom    CustomHandler
	Fallback  FallbackHandler
}

// Dispatcher maps actions to host handlers. It holds no state besides its
// handlers and never fails.
type Dispatcher struct {
	handlers Handlers
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. A nil logger discards output.
func NewDispatcher(handlers Handlers, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{handlers: handlers, logger: logger}
}

// HandleAction forwards a single action.
func (d *Dispatcher) HandleAction(a chat.Action) {
	switch v := a.(type) {
	case chat.NavigateAction:
		if v.Path == "" {
			d.logger.Debug("dropping navigate action without path")
			return
		}
		if d.handlers.Navigator != nil {
			d.handlers.Navigator.Navigate(v.Path)
			return
		}
	case chat.OpenModalAction:
		if d.handlers.Modals != nil {
			d.handlers.Modals.OpenModal(v.Modal, v.Data)
			return
		}
	case chat.RefreshAction:
		if d.handlers.Refresher != nil {
			d.handlers.Refresher.Refresh(v.Data)
			return
		}
	case chat.CustomAction:
		if d.handlers.Custom != nil {
			d.handlers.Custom.HandleCustom(v.Payload)
			return
		}
	case nil:
		return
	}
	d.unhandled(a)
}

// Dispatch forwards actions in order.
func (d *Dispatcher) Dispatch(actions []chat.Action) {
	for _, a := range actions {
		d.HandleAction(a)
	}
}

func (d *Dispatcher) unhandled(a chat.Action) {
	if d.handlers.Fallback != nil {
		d.handlers.Fallback.Unhandled(a)
		return
	}
	d.logger.Info("no handler for action", zap.String("type", string(a.Type())))
}
