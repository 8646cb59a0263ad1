package chat

import "encoding/json"

// ActionType is the wire tag of an action descriptor.
type ActionType string

const (
	ActionNavigate  ActionType = "navigate"
	ActionOpenModal ActionType = "openModal"
	ActionRefresh   ActionType = "refresh"
	ActionCustom    ActionType = "custom"
)

// Action is a side effect requested by the assistant. The set of variants is
// closed: NavigateAction, OpenModalAction, RefreshAction, CustomAction and
// UnknownAction.
type Action interface {
	Type() ActionType
	isAction()
}

// NavigateAction asks the host to route to Path.
type NavigateAction struct {
	Path string
}

// OpenModalAction asks the host to open the named modal.
type OpenModalAction struct {
	Modal string
	Data  map[string]any
}

// RefreshAction asks the host to reload the current view.
type RefreshAction struct {
	Data map[string]any
}

// CustomAction carries an application specific payload.
type CustomAction struct {
	Payload json.RawMessage
}

// UnknownAction preserves a descriptor whose type this client does not know.
type UnknownAction struct {
	Kind ActionType
	Raw  ActionDescriptor
}

func (NavigateAction) Type() ActionType  { return ActionNavigate }
func (OpenModalAction) Type() ActionType { return ActionOpenModal }
func (RefreshAction) Type() ActionType   { return ActionRefresh }
func (CustomAction) Type() ActionType    { return ActionCustom }
func (a UnknownAction) Type() ActionType { return a.Kind }

func (NavigateAction) isAction()  {}
func (OpenModalAction) isAction() {}
func (RefreshAction) isAction()   {}
func (CustomAction) isAction()    {}
func (UnknownAction) isAction()   {}

// ActionDescriptor is the JSON form of an action.
type ActionDescriptor struct {
	Type    ActionType      `json:"type"`
	Path    string          `json:"path,omitempty"`
	Modal   string          `json:"modal,omitempty"`
	Data    map[string]any  `json:"data,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Action converts the descriptor into its typed variant. Unrecognized types
// become UnknownAction rather than an error.
func (d ActionDescriptor) Action() Action {
	switch d.Type {
	case ActionNavigate:
		return NavigateAction{Path: d.Path}
	case ActionOpenModal:
		return OpenModalAction{Modal: d.Modal, Data: d.Data}
	case ActionRefresh:
		return RefreshAction{Data: d.Data}
	case ActionCustom:
		return CustomAction{Payload: d.Payload}
	default:
		return UnknownAction{Kind: d.Type, Raw: d}
	}
}

// DescriptorOf is the inverse of ActionDescriptor.Action.
func DescriptorOf(a Action) ActionDescriptor {
	switch v := a.(type) {
	case NavigateAction:
		return ActionDescriptor{Type: ActionNavigate, Path: v.Path}
	case OpenModalAction:
		return ActionDescriptor{Type: ActionOpenModal, Modal: v.Modal, Data: v.Data}
	case RefreshAction:
		return ActionDescriptor{Type: ActionRefresh, Data: v.Data}
	case CustomAction:
		return ActionDescriptor{Type: ActionCustom, Payload: v.Payload}
	case UnknownAction:
		return v.Raw
	default:
		return ActionDescriptor{Type: a.Type()}
	}
}

// DecodeActions converts a list of descriptors preserving order.
func DecodeActions(descriptors []ActionDescriptor) []Action {
	if len(descriptors) == 0 {
		return nil
	}
	actions := make([]Action, 0, len(descriptors))
	for _, d := range descriptors {
		actions = append(actions, d.Action())
	}
	return actions
}

// EncodeActions converts typed actions back into descriptors.
func EncodeActions(actions []Action) []ActionDescriptor {
	descriptors := make([]ActionDescriptor, 0, len(actions))
	for _, a := range actions {
		descriptors = append(descriptors, DescriptorOf(a))
	}
	return descriptors
}
