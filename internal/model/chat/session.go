package chat

// CreatedVia records where a session identifier came from.
type CreatedVia string

const (
	CreatedRemote        CreatedVia = "remote"
	CreatedLocalFallback CreatedVia = "local-fallback"
)

// Session scopes one continuous conversation.
type Session struct {
	ID          string     `json:"id"`
	OwnerUserID string     `json:"ownerUserId"`
	CreatedVia  CreatedVia `json:"createdVia"`
}
