package domain

// DefaultMaxTurns is the conversation window size used when none is configured.
const DefaultMaxTurns = 10

// Conversation holds the rolling turn history for a single conversation.
// The window is bounded: adding a turn beyond MaxTurns drops the oldest.
type Conversation struct {
	ThreadID string `json:"thread_id,omitempty"`
	History  []Turn `json:"history"`
	MaxTurns int    `json:"max_turns"`
}

// NewConversation creates an empty conversation with the given window size
func NewConversation(maxTurns int) *Conversation {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Conversation{
		History:  []Turn{},
		MaxTurns: maxTurns,
	}
}

// AddTurn appends a turn, evicting the oldest turn when the window is full
func (c *Conversation) AddTurn(t Turn) {
	if c.MaxTurns <= 0 {
		c.MaxTurns = DefaultMaxTurns
	}
	c.History = append(c.History, t)
	for len(c.History) > c.MaxTurns {
		c.History = c.History[1:]
	}
}

// LastTurn returns the most recent turn, or nil when the history is empty
func (c *Conversation) LastTurn() *Turn {
	if len(c.History) == 0 {
		return nil
	}
	return &c.History[len(c.History)-1]
}

// Message is a role/content pair in the shape completion providers expect
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToMessages flattens the history into provider messages, dropping attachments
func (c *Conversation) ToMessages() []Message {
	messages := make([]Message, 0, len(c.History))
	for _, turn := range c.History {
		messages = append(messages, Message{Role: string(turn.Role), Content: turn.Content})
	}
	return messages
}

// UserProfile holds per-user state captured across turns
type UserProfile struct {
	Name string `json:"name,omitempty"`
}
