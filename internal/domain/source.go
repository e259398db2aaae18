package domain

import (
	"fmt"
	"time"
)

// Source is a knowledge source the Research tool can cite
type Source struct {
	ID        string
	Title     string
	URL       string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSource creates a new Source instance
func NewSource(id, title, url, content string, metadata map[string]string, createdAt time.Time) *Source {
	return &Source{
		ID:        id,
		Title:     title,
		URL:       url,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// ValidateSource validates a Source instance
func ValidateSource(s *Source) error {
	if s == nil {
		return fmt.Errorf("source cannot be nil")
	}
	if s.ID == "" {
		return fmt.Errorf("source ID is required")
	}
	if s.Title == "" {
		return fmt.Errorf("source Title is required")
	}
	if s.URL == "" {
		return fmt.Errorf("source URL is required")
	}
	if s.Content == "" {
		return fmt.Errorf("source Content is required")
	}
	return nil
}

// Citation converts the source to a citation attachment with a relevance score
func (s *Source) Citation() Citation {
	return Citation{
		Title:    s.Title,
		URL:      s.URL,
		Content:  s.Content,
		Metadata: s.Metadata,
	}
}

// EmbeddingText is the text a source is embedded from. Title and content
// are combined so short documents still carry their subject.
func (s *Source) EmbeddingText() string {
	if s.Title == "" {
		return s.Content
	}
	return s.Title + "\n\n" + s.Content
}

// TurnRecord is a persisted transcript entry for one conversation turn
type TurnRecord struct {
	ID             string
	ConversationID string
	ChannelID      string
	UserID         string
	Role           Role
	Content        string
	ToolUsage      []ToolUsage
	CreatedAt      time.Time
}

// ValidateTurnRecord validates a TurnRecord instance
func ValidateTurnRecord(r *TurnRecord) error {
	if r == nil {
		return fmt.Errorf("turn record cannot be nil")
	}
	if r.ID == "" {
		return fmt.Errorf("turn record ID is required")
	}
	if r.ConversationID == "" {
		return fmt.Errorf("turn record ConversationID is required")
	}
	if !isValidRole(r.Role) {
		return fmt.Errorf("turn record Role is invalid: %s", r.Role)
	}
	return nil
}
