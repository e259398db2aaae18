// Package dialogs implements multi-turn conversation flows. The login
// dialog walks a user through OAuth sign-in via the user token service.
package dialogs

import (
	"context"
	"errors"
	"time"

	"github.com/kernelworks/kernelbot/internal/activity"
	"github.com/kernelworks/kernelbot/internal/domain"
)

// OAuthCardContentType is the attachment content type channels render as a
// sign-in card.
const OAuthCardContentType = "application/vnd.microsoft.card.oauth"

// TokensResponseEvent is the event activity channels send once the user
// completes sign-in.
const TokensResponseEvent = "tokens/response"

// DefaultPromptTimeout is how long a sign-in prompt stays valid.
const DefaultPromptTimeout = 5 * time.Minute

// TokenService is the subset of the user token client the dialog needs.
type TokenService interface {
	GetUserToken(ctx context.Context, userID, connectionName, channelID string) (string, error)
	SignInURL(ctx context.Context, connectionName, channelID, conversationID, userID string) (string, error)
}

// Responder sends activities back to the user mid-dialog.
type Responder interface {
	Send(ctx context.Context, a *activity.Activity) error
}

// State is the persisted position within the login dialog.
type State struct {
	Active     bool      `json:"active"`
	PromptedAt time.Time `json:"promptedAt"`
}

// Options configures the login dialog's prompt and outcome messages.
type Options struct {
	ConnectionName string
	Title          string
	Prompt         string
	SuccessMessage string
	FailedMessage  string
	Timeout        time.Duration
}

// LoginDialog prompts for OAuth sign-in and resolves the user token.
type LoginDialog struct {
	tokens TokenService
	opts   Options
}

// NewLoginDialog creates a login dialog over the given token service.
func NewLoginDialog(tokens TokenService, opts Options) *LoginDialog {
	if opts.ConnectionName == "" {
		opts.ConnectionName = "default"
	}
	if opts.SuccessMessage == "" {
		opts.SuccessMessage = "Login success"
	}
	if opts.FailedMessage == "" {
		opts.FailedMessage = "Login failed"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPromptTimeout
	}
	return &LoginDialog{tokens: tokens, opts: opts}
}

// Begin sends the sign-in card and returns the active dialog state.
func (d *LoginDialog) Begin(ctx context.Context, turn *activity.Activity, respond Responder) (State, error) {
	link, err := d.tokens.SignInURL(ctx, d.opts.ConnectionName, turn.ChannelID, turn.ConversationID(), turn.From.ID)
	if err != nil {
		return State{}, err
	}

	card := activity.NewMessage("")
	card.Attachments = []activity.Attachment{{
		ContentType: OAuthCardContentType,
		Content: map[string]any{
			"connectionName": d.opts.ConnectionName,
			"text":           d.opts.Title,
			"buttons": []map[string]any{{
				"type":  "signin",
				"title": d.buttonTitle(),
				"value": link,
			}},
		},
	}}

	if err := respond.Send(ctx, card); err != nil {
		return State{}, err
	}
	return State{Active: true, PromptedAt: time.Now().UTC()}, nil
}

// Continue resumes an active dialog with the user's next activity. It
// returns the resolved token when sign-in succeeded and the updated state.
// The dialog ends on success, failure, and prompt expiry alike.
func (d *LoginDialog) Continue(ctx context.Context, st State, turn *activity.Activity, respond Responder) (State, string, error) {
	if !st.Active {
		return st, "", nil
	}

	if time.Since(st.PromptedAt) > d.opts.Timeout {
		if err := respond.Send(ctx, activity.NewMessage(d.opts.FailedMessage)); err != nil {
			return st, "", err
		}
		return State{}, "", nil
	}

	token, err := d.resolveToken(ctx, turn)
	if err != nil {
		if errors.Is(err, domain.ErrUserTokenNotFound) {
			if err := respond.Send(ctx, activity.NewMessage(d.opts.FailedMessage)); err != nil {
				return st, "", err
			}
			return State{}, "", nil
		}
		return st, "", err
	}

	if err := respond.Send(ctx, activity.NewMessage(d.opts.SuccessMessage)); err != nil {
		return st, "", err
	}
	return State{}, token, nil
}

// resolveToken extracts the token from a tokens/response event, or polls
// the token service when the channel does not deliver the event.
func (d *LoginDialog) resolveToken(ctx context.Context, turn *activity.Activity) (string, error) {
	if turn.Type == activity.TypeEvent && turn.Name == TokensResponseEvent {
		if value, ok := turn.Value.(map[string]any); ok {
			if token, ok := value["token"].(string); ok && token != "" {
				return token, nil
			}
		}
		return "", domain.ErrUserTokenNotFound
	}
	return d.tokens.GetUserToken(ctx, turn.From.ID, d.opts.ConnectionName, turn.ChannelID)
}

func (d *LoginDialog) buttonTitle() string {
	if d.opts.Prompt != "" {
		return d.opts.Prompt
	}
	return "Sign in"
}
