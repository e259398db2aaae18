package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTurn(t *testing.T) {
	turn := NewTurn(RoleUser, "hello")
	assert.Equal(t, RoleUser, turn.Role)
	assert.Equal(t, "hello", turn.Content)
	assert.WithinDuration(t, time.Now().UTC(), turn.CreatedAt, time.Second)
}

func TestValidateTurn(t *testing.T) {
	tests := []struct {
		name    string
		turn    *Turn
		wantErr error
	}{
		{
			name: "valid user turn",
			turn: &Turn{Role: RoleUser, Content: "hi", CreatedAt: time.Now()},
		},
		{
			name: "valid assistant turn with only attachments",
			turn: &Turn{
				Role:        RoleAssistant,
				Attachments: []Attachment{Media{Content: "https://example.com/a.png", MimeType: "image/png"}},
			},
		},
		{
			name:    "nil turn",
			turn:    nil,
			wantErr: ErrMissingRequiredField,
		},
		{
			name:    "invalid role",
			turn:    &Turn{Role: Role("moderator"), Content: "hi"},
			wantErr: ErrInvalidRole,
		},
		{
			name:    "empty content and no attachments",
			turn:    &Turn{Role: RoleUser},
			wantErr: ErrEmptyTurnContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTurn(tt.turn)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConversation_AddTurn_Window(t *testing.T) {
	conv := NewConversation(3)
	for i := 0; i < 5; i++ {
		conv.AddTurn(NewTurn(RoleUser, string(rune('a'+i))))
	}

	require.Len(t, conv.History, 3)
	assert.Equal(t, "c", conv.History[0].Content)
	assert.Equal(t, "e", conv.History[2].Content)
}

func TestConversation_AddTurn_DefaultWindow(t *testing.T) {
	conv := NewConversation(0)
	assert.Equal(t, DefaultMaxTurns, conv.MaxTurns)

	for i := 0; i < DefaultMaxTurns+5; i++ {
		conv.AddTurn(NewTurn(RoleUser, "x"))
	}
	assert.Len(t, conv.History, DefaultMaxTurns)
}

func TestConversation_LastTurn(t *testing.T) {
	conv := NewConversation(5)
	assert.Nil(t, conv.LastTurn())

	conv.AddTurn(NewTurn(RoleUser, "first"))
	conv.AddTurn(NewTurn(RoleAssistant, "second"))

	last := conv.LastTurn()
	require.NotNil(t, last)
	assert.Equal(t, "second", last.Content)
	assert.Equal(t, RoleAssistant, last.Role)
}

func TestConversation_ToMessages(t *testing.T) {
	conv := NewConversation(5)
	conv.AddTurn(NewTurn(RoleUser, "question"))
	turn := NewTurn(RoleAssistant, "answer")
	turn.Attachments = []Attachment{Citation{Title: "t", URL: "https://example.com"}}
	conv.AddTurn(turn)

	messages := conv.ToMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, Message{Role: "user", Content: "question"}, messages[0])
	assert.Equal(t, Message{Role: "assistant", Content: "answer"}, messages[1])
}
