package bot

import (
	"context"

	"github.com/kernelworks/kernelbot/internal/activity"
)

// Connector delivers outbound activities to the channel.
type Connector interface {
	ReplyToActivity(ctx context.Context, serviceURL string, reply *activity.Activity) (string, error)
}

// TurnContext binds an inbound activity to the connector so handlers can
// reply within the same conversation.
type TurnContext struct {
	Activity  *activity.Activity
	connector Connector
}

// NewTurnContext creates a turn context for the inbound activity.
func NewTurnContext(a *activity.Activity, connector Connector) *TurnContext {
	return &TurnContext{Activity: a, connector: connector}
}

// Send addresses the outbound activity to the sender of the inbound one
// and delivers it over the connector.
func (tc *TurnContext) Send(ctx context.Context, out *activity.Activity) error {
	out.ChannelID = tc.Activity.ChannelID
	out.Conversation = tc.Activity.Conversation
	out.From = tc.Activity.Recipient
	out.Recipient = tc.Activity.From
	out.ReplyToID = tc.Activity.ID

	_, err := tc.connector.ReplyToActivity(ctx, tc.Activity.ServiceURL, out)
	return err
}

// SendText is shorthand for sending a plain message reply.
func (tc *TurnContext) SendText(ctx context.Context, text string) error {
	return tc.Send(ctx, activity.NewMessage(text))
}
