package llm

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ChatMessage is a single turn in a conversation.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewTextMessage creates a message with the given role and content.
func NewTextMessage(role Role, text string) ChatMessage {
	return ChatMessage{Role: role, Content: text}
}

// CloneMessages returns a copy of msgs that can be modified without touching
// the caller's slice.
func CloneMessages(msgs []ChatMessage) []ChatMessage {
	if msgs == nil {
		return nil
	}
	out := make([]ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// LastUserIndex returns the index of the final message if it was authored by
// the user, or -1 otherwise.
func LastUserIndex(msgs []ChatMessage) int {
	if len(msgs) == 0 {
		return -1
	}
	last := len(msgs) - 1
	if msgs[last].Role != RoleUser {
		return -1
	}
	return last
}
