package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kernelworks/kernelbot/internal/activity"
	"github.com/kernelworks/kernelbot/internal/api"
	"github.com/kernelworks/kernelbot/internal/bot"
)

// TurnHandler processes one incoming activity.
type TurnHandler interface {
	OnTurn(ctx context.Context, tc *bot.TurnContext) error
	OnTurnError(ctx context.Context, tc *bot.TurnContext, turnErr error)
}

// MessagesHandler receives activities from the channel service
type MessagesHandler struct {
	bot       TurnHandler
	connector bot.Connector
}

func NewMessagesHandler(turnHandler TurnHandler, connector bot.Connector) *MessagesHandler {
	return &MessagesHandler{bot: turnHandler, connector: connector}
}

// Post handles an incoming activity. Replies are delivered out of band to
// the activity's service URL; the HTTP response itself carries no content.
func (h *MessagesHandler) Post(w http.ResponseWriter, r *http.Request) {
	var incoming activity.Activity
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if incoming.Type == "" {
		api.Error(w, http.StatusBadRequest, "activity type is required")
		return
	}
	if incoming.ConversationID() == "" {
		api.Error(w, http.StatusBadRequest, "conversation is required")
		return
	}

	tc := bot.NewTurnContext(&incoming, h.connector)
	if err := h.bot.OnTurn(r.Context(), tc); err != nil {
		h.bot.OnTurnError(r.Context(), tc, err)
		api.Error(w, api.DomainErrorToHTTP(err), err.Error())
		return
	}

	api.JSON(w, http.StatusCreated, nil)
}
