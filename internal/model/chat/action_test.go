package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeActionsPreservesOrderAndVariants(t *testing.T) {
	raw := `[
		{"type":"navigate","path":"/projects"},
		{"type":"openModal","modal":"createProject","data":{"name":"x"}},
		{"type":"refresh"},
		{"type":"custom","payload":{"k":1}},
		{"type":"teleport","path":"/moon"}
	]`
	var descriptors []ActionDescriptor
	require.NoError(t, json.Unmarshal([]byte(raw), &descriptors))

	actions := DecodeActions(descriptors)
	require.Len(t, actions, 5)

	assert.Equal(t, NavigateAction{Path: "/projects"}, actions[0])
	modal, ok := actions[1].(OpenModalAction)
	require.True(t, ok)
	assert.Equal(t, "createProject", modal.Modal)
	assert.Equal(t, "x", modal.Data["name"])
	assert.IsType(t, RefreshAction{}, actions[2])
	custom, ok := actions[3].(CustomAction)
	require.True(t, ok)
	assert.JSONEq(t, `{"k":1}`, string(custom.Payload))

	unknown, ok := actions[4].(UnknownAction)
	require.True(t, ok)
	assert.Equal(t, ActionType("teleport"), unknown.Type())
	assert.Equal(t, "/moon", unknown.Raw.Path)
}

func TestNavigateWithoutPathDecodesToEmptyPath(t *testing.T) {
	a := ActionDescriptor{Type: ActionNavigate}.Action()
	assert.Equal(t, NavigateAction{}, a)
}

func TestEncodeActionsRoundTripsDescriptors(t *testing.T) {
	in := []ActionDescriptor{
		{Type: ActionNavigate, Path: "/tasks"},
		{Type: "mystery", Modal: "m"},
	}
	assert.Equal(t, in, EncodeActions(DecodeActions(in)))
}

func TestDecodeActionsEmpty(t *testing.T) {
	assert.Nil(t, DecodeActions(nil))
}
