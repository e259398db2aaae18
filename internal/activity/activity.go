// Package activity defines the subset of the Bot Framework activity schema
// the bot sends and receives.
package activity

import (
	"time"

	"github.com/google/uuid"
)

// Activity types
const (
	TypeMessage            = "message"
	TypeConversationUpdate = "conversationUpdate"
	TypeTyping             = "typing"
	TypeTrace              = "trace"
	TypeEvent              = "event"
)

// AdaptiveCardContentType is the attachment content type for Adaptive Cards.
const AdaptiveCardContentType = "application/vnd.microsoft.card.adaptive"

// ErrorValueType identifies trace activity payloads carrying turn errors.
const ErrorValueType = "https://www.botframework.com/schemas/error"

// ChannelEmulator is the channel id used by the Bot Framework Emulator.
const ChannelEmulator = "emulator"

// Account identifies a user or bot on a channel
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// ConversationAccount identifies the conversation an activity belongs to
type ConversationAccount struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	IsGroup bool   `json:"isGroup,omitempty"`
}

// Attachment carries rich content alongside an activity's text
type Attachment struct {
	ContentType string `json:"contentType"`
	Content     any    `json:"content,omitempty"`
	ContentURL  string `json:"contentUrl,omitempty"`
	Name        string `json:"name,omitempty"`
}

// Activity is a single message exchanged between the bot and a channel
type Activity struct {
	Type         string               `json:"type"`
	ID           string               `json:"id,omitempty"`
	Timestamp    time.Time            `json:"timestamp,omitempty"`
	ChannelID    string               `json:"channelId,omitempty"`
	ServiceURL   string               `json:"serviceUrl,omitempty"`
	From         Account              `json:"from,omitempty"`
	Recipient    Account              `json:"recipient,omitempty"`
	Conversation *ConversationAccount `json:"conversation,omitempty"`
	ReplyToID    string               `json:"replyToId,omitempty"`
	Text         string               `json:"text,omitempty"`
	Label        string               `json:"label,omitempty"`
	Name         string               `json:"name,omitempty"`
	Value        any                  `json:"value,omitempty"`
	ValueType    string               `json:"valueType,omitempty"`
	Attachments  []Attachment         `json:"attachments,omitempty"`
	MembersAdded []Account            `json:"membersAdded,omitempty"`
	ChannelData  any                  `json:"channelData,omitempty"`
}

// ConversationID returns the conversation id, or empty when absent
func (a *Activity) ConversationID() string {
	if a.Conversation == nil {
		return ""
	}
	return a.Conversation.ID
}

// IsFromEmulator reports whether the activity arrived from the emulator channel
func (a *Activity) IsFromEmulator() bool {
	return a.ChannelID == ChannelEmulator
}

// NewMessage creates a message activity replying in the same conversation
func NewMessage(text string) *Activity {
	return &Activity{
		Type:      TypeMessage,
		Timestamp: time.Now().UTC(),
		Text:      text,
	}
}

// NewTyping creates a typing indicator activity
func NewTyping() *Activity {
	return &Activity{
		Type:      TypeTyping,
		Timestamp: time.Now().UTC(),
	}
}

// NewTrace creates a trace activity carrying an error payload. Trace
// activities are only rendered by the emulator.
func NewTrace(label, name string, value any) *Activity {
	return &Activity{
		Type:      TypeTrace,
		Timestamp: time.Now().UTC(),
		Label:     label,
		Name:      name,
		Value:     value,
		ValueType: ErrorValueType,
	}
}

// NewUserMessage creates an inbound message activity, used by the client CLI
// and tests to simulate a channel.
func NewUserMessage(conversationID, userID, text string) *Activity {
	return &Activity{
		Type:      TypeMessage,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		ChannelID: ChannelEmulator,
		From:      Account{ID: userID, Role: "user"},
		Recipient: Account{ID: "kernelbot", Role: "bot"},
		Conversation: &ConversationAccount{
			ID: conversationID,
		},
		Text: text,
	}
}

// AdaptiveCardAttachment wraps an Adaptive Card payload as an activity attachment
func AdaptiveCardAttachment(card any) Attachment {
	return Attachment{
		ContentType: AdaptiveCardContentType,
		Content:     card,
	}
}
