// Package processing turns one chat turn into a generation call and keeps the
// conversation history in step with it.
package processing

// Conversation roles accepted in a history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in a conversation.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content"`
}

// History is an ordered conversation, oldest turn first.
type History []Message

// Clone returns a copy that can be appended to without touching h.
// A nil history clones to an empty, non-nil one so it encodes as [].
func (h History) Clone() History {
	out := make(History, len(h), len(h)+2)
	copy(out, h)
	return out
}
