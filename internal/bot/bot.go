// Package bot handles inbound activities: welcome messages, the SSO gate,
// and the agent conversation loop.
package bot

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kernelworks/kernelbot/internal/activity"
	"github.com/kernelworks/kernelbot/internal/agent"
	"github.com/kernelworks/kernelbot/internal/cards"
	"github.com/kernelworks/kernelbot/internal/dialogs"
	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/state"
	"github.com/kernelworks/kernelbot/internal/telemetry"
)

// DefaultWelcomeMessage greets users joining a conversation when no
// welcome message is configured.
const DefaultWelcomeMessage = "Hello and welcome to the Kernel Bot!"

// TokenClient is the subset of the user token service the bot needs for
// the SSO gate and logout.
type TokenClient interface {
	GetUserToken(ctx context.Context, userID, connectionName, channelID string) (string, error)
	SignOut(ctx context.Context, userID, connectionName, channelID string) error
}

// TranscriptRecorder persists turn records outside conversation state.
// Implementations must tolerate high call rates; the bot treats recording
// as best effort.
type TranscriptRecorder interface {
	Record(ctx context.Context, records ...domain.TurnRecord) error
}

// Options configures the bot.
type Options struct {
	WelcomeMessage string
	MaxTurns       int
	SSOEnabled     bool
	SSOConnection  string
}

// Bot routes activities to handlers and keeps conversation and user state.
type Bot struct {
	agent       agent.Agent
	store       state.Store
	login       *dialogs.LoginDialog
	tokens      TokenClient
	transcripts TranscriptRecorder
	opts        Options
}

// New creates a bot. tokens and transcripts may be nil when SSO and
// transcript persistence are disabled.
func New(ag agent.Agent, store state.Store, login *dialogs.LoginDialog, tokens TokenClient, transcripts TranscriptRecorder, opts Options) *Bot {
	if opts.WelcomeMessage == "" {
		opts.WelcomeMessage = DefaultWelcomeMessage
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = domain.DefaultMaxTurns
	}
	if opts.SSOConnection == "" {
		opts.SSOConnection = "default"
	}
	return &Bot{
		agent:       ag,
		store:       store,
		login:       login,
		tokens:      tokens,
		transcripts: transcripts,
		opts:        opts,
	}
}

// conversationDoc is the state document kept per conversation.
type conversationDoc struct {
	Conversation *domain.Conversation `json:"conversation"`
	Dialog       dialogs.State        `json:"dialog"`
}

// OnTurn dispatches an inbound activity to its handler.
func (b *Bot) OnTurn(ctx context.Context, tc *TurnContext) error {
	ctx, span := telemetry.StartSpan(ctx, "bot.turn", telemetry.SpanAttributes{
		ConversationID: tc.Activity.ConversationID(),
		UserID:         tc.Activity.From.ID,
		ChannelID:      tc.Activity.ChannelID,
		Operation:      tc.Activity.Type,
	})
	defer span.End()

	switch tc.Activity.Type {
	case activity.TypeConversationUpdate:
		return b.onMembersAdded(ctx, tc)
	case activity.TypeMessage, activity.TypeEvent:
		return b.onMessage(ctx, tc)
	default:
		return nil
	}
}

// OnTurnError reports a turn failure back to the user. When talking to the
// emulator it also sends a trace activity so the error shows in its log.
func (b *Bot) OnTurnError(ctx context.Context, tc *TurnContext, turnErr error) {
	telemetry.CaptureError(ctx, turnErr)
	log.Printf("turn error: %v", turnErr)

	if err := tc.SendText(ctx, "The bot encountered an error or bug."); err != nil {
		log.Printf("failed to send error message: %v", err)
		return
	}
	_ = tc.SendText(ctx, turnErr.Error())

	if tc.Activity.IsFromEmulator() {
		trace := activity.NewTrace("TurnError", "OnTurnError Trace", turnErr.Error())
		if err := tc.Send(ctx, trace); err != nil {
			log.Printf("failed to send trace activity: %v", err)
		}
	}
}

func (b *Bot) onMembersAdded(ctx context.Context, tc *TurnContext) error {
	for _, member := range tc.Activity.MembersAdded {
		if member.ID == tc.Activity.Recipient.ID {
			continue
		}
		if err := tc.SendText(ctx, b.opts.WelcomeMessage); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) onMessage(ctx context.Context, tc *TurnContext) error {
	key := state.ConversationKey(tc.Activity.ChannelID, tc.Activity.ConversationID())

	doc := conversationDoc{}
	if err := state.Get(ctx, b.store, key, &doc); err != nil && !errors.Is(err, domain.ErrStateNotFound) {
		return err
	}
	if doc.Conversation == nil {
		doc.Conversation = domain.NewConversation(b.opts.MaxTurns)
		doc.Conversation.ThreadID = tc.Activity.ConversationID()
	}

	if b.opts.SSOEnabled {
		loggedIn, err := b.ensureLogin(ctx, tc, &doc)
		if err != nil {
			return err
		}
		if !loggedIn {
			return state.Put(ctx, b.store, key, doc)
		}
	}

	// Non-message activities end the turn here. They still flow through
	// the SSO gate above so sign-in events resume the dialog.
	if tc.Activity.Type != activity.TypeMessage {
		return state.Put(ctx, b.store, key, doc)
	}

	// An empty message gets a nudge instead of an agent call.
	if tc.Activity.Text == "" {
		if err := tc.SendText(ctx, "I didn't catch that. Please type a message."); err != nil {
			return err
		}
		return state.Put(ctx, b.store, key, doc)
	}

	// Best effort; channels that do not render typing ignore it.
	if err := tc.Send(ctx, activity.NewTyping()); err != nil {
		log.Printf("failed to send typing indicator: %v", err)
	}

	userTurn := domain.NewTurn(domain.RoleUser, tc.Activity.Text)
	doc.Conversation.AddTurn(userTurn)

	response, err := b.agent.Process(ctx, doc.Conversation)
	if err != nil {
		// The user turn is kept so a retry sees the full history.
		if saveErr := state.Put(ctx, b.store, key, doc); saveErr != nil {
			log.Printf("failed to save state after agent error: %v", saveErr)
		}
		return err
	}
	doc.Conversation.AddTurn(response)

	if err := tc.Send(ctx, cards.ActivityCard(response)); err != nil {
		return err
	}

	b.record(ctx, tc, userTurn, response)

	return state.Put(ctx, b.store, key, doc)
}

// ensureLogin implements the SSO gate. It reports whether the turn may
// proceed to the agent.
func (b *Bot) ensureLogin(ctx context.Context, tc *TurnContext, doc *conversationDoc) (bool, error) {
	if b.tokens == nil || b.login == nil {
		return true, nil
	}

	if tc.Activity.Text == "logout" {
		if err := b.tokens.SignOut(ctx, tc.Activity.From.ID, b.opts.SSOConnection, tc.Activity.ChannelID); err != nil {
			return false, err
		}
		return false, tc.SendText(ctx, "Signed out")
	}

	if doc.Dialog.Active {
		st, token, err := b.login.Continue(ctx, doc.Dialog, tc.Activity, tc)
		if err != nil {
			return false, err
		}
		doc.Dialog = st
		if token != "" {
			b.saveUserName(ctx, tc, token)
		}
		// The activity that resumed the dialog is consumed by it.
		return false, nil
	}

	token, err := b.tokens.GetUserToken(ctx, tc.Activity.From.ID, b.opts.SSOConnection, tc.Activity.ChannelID)
	if err == nil {
		b.saveUserName(ctx, tc, token)
		return true, nil
	}
	if !errors.Is(err, domain.ErrUserTokenNotFound) {
		return false, err
	}

	st, err := b.login.Begin(ctx, tc.Activity, tc)
	if err != nil {
		return false, err
	}
	doc.Dialog = st
	return false, nil
}

// saveUserName stores the user's display name from the SSO token claims.
// The token was issued by the token service, so claims are read without
// signature verification here.
func (b *Bot) saveUserName(ctx context.Context, tc *TurnContext, token string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		log.Printf("failed to parse user token claims: %v", err)
		return
	}

	name, _ := claims["name"].(string)
	if name == "" {
		return
	}

	key := state.UserKey(tc.Activity.ChannelID, tc.Activity.From.ID)
	if err := state.Put(ctx, b.store, key, domain.UserProfile{Name: name}); err != nil {
		log.Printf("failed to save user profile: %v", err)
	}
}

// record persists the turn pair as transcript records when a recorder is
// configured.
func (b *Bot) record(ctx context.Context, tc *TurnContext, turns ...domain.Turn) {
	if b.transcripts == nil {
		return
	}

	records := make([]domain.TurnRecord, 0, len(turns))
	for _, turn := range turns {
		records = append(records, domain.TurnRecord{
			ID:             uuid.NewString(),
			ConversationID: tc.Activity.ConversationID(),
			ChannelID:      tc.Activity.ChannelID,
			UserID:         tc.Activity.From.ID,
			Role:           turn.Role,
			Content:        turn.Content,
			ToolUsage:      turn.ToolUsage,
			CreatedAt:      time.Now().UTC(),
		})
	}

	if err := b.transcripts.Record(ctx, records...); err != nil {
		log.Printf("failed to record transcript: %v", err)
	}
}
