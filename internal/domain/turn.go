package domain

import (
	"time"
)

// Role identifies who produced a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ToolUsage records a single tool invocation made while producing a turn
type ToolUsage struct {
	ToolName   string    `json:"tool_name"`
	Arguments  string    `json:"arguments"`
	Result     string    `json:"result"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Turn represents a single message in the conversation history
type Turn struct {
	Role        Role           `json:"role"`
	Content     string         `json:"content"`
	CreatedAt   time.Time      `json:"created_at"`
	ToolUsage   []ToolUsage    `json:"tool_usage,omitempty"`
	Attachments AttachmentList `json:"attachments,omitempty"`
}

// NewTurn creates a Turn with the creation timestamp set to now
func NewTurn(role Role, content string) Turn {
	return Turn{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// ValidateTurn validates a Turn instance
func ValidateTurn(t *Turn) error {
	if t == nil {
		return ErrMissingRequiredField
	}
	if !isValidRole(t.Role) {
		return ErrInvalidRole
	}
	if t.Content == "" && len(t.Attachments) == 0 {
		return ErrEmptyTurnContent
	}
	return nil
}

func isValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
