package chat

// ChatState is the externally observable snapshot of a conversation.
type ChatState struct {
	Messages  []Message
	Busy      bool
	LastError error
	SessionID string
}

// Last returns the most recent message, if any.
func (s ChatState) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
