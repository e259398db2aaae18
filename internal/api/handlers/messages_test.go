package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kernelworks/kernelbot/internal/activity"
	"github.com/kernelworks/kernelbot/internal/bot"
	"github.com/kernelworks/kernelbot/internal/domain"
)

// MockTurnHandler is a mock implementation of TurnHandler
type MockTurnHandler struct {
	mock.Mock
}

func (m *MockTurnHandler) OnTurn(ctx context.Context, tc *bot.TurnContext) error {
	args := m.Called(ctx, tc)
	return args.Error(0)
}

func (m *MockTurnHandler) OnTurnError(ctx context.Context, tc *bot.TurnContext, turnErr error) {
	m.Called(ctx, tc, turnErr)
}

func postActivity(t *testing.T, handler *MessagesHandler, a *activity.Activity) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(a)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.Post(w, req)
	return w
}

func TestMessagesHandler_Post_Success(t *testing.T) {
	mockBot := new(MockTurnHandler)
	mockBot.On("OnTurn", mock.Anything, mock.MatchedBy(func(tc *bot.TurnContext) bool {
		return tc.Activity.Text == "hello"
	})).Return(nil)

	handler := NewMessagesHandler(mockBot, nil)
	incoming := activity.NewUserMessage("conv-1", "user-1", "hello")

	w := postActivity(t, handler, incoming)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockBot.AssertExpectations(t)
}

func TestMessagesHandler_Post_InvalidBody(t *testing.T) {
	mockBot := new(MockTurnHandler)
	handler := NewMessagesHandler(mockBot, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	handler.Post(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockBot.AssertNotCalled(t, "OnTurn", mock.Anything, mock.Anything)
}

func TestMessagesHandler_Post_MissingType(t *testing.T) {
	mockBot := new(MockTurnHandler)
	handler := NewMessagesHandler(mockBot, nil)

	incoming := activity.NewUserMessage("conv-1", "user-1", "hello")
	incoming.Type = ""

	w := postActivity(t, handler, incoming)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "activity type is required")
}

func TestMessagesHandler_Post_MissingConversation(t *testing.T) {
	mockBot := new(MockTurnHandler)
	handler := NewMessagesHandler(mockBot, nil)

	incoming := activity.NewMessage("hello")

	w := postActivity(t, handler, incoming)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "conversation is required")
}

func TestMessagesHandler_Post_TurnError(t *testing.T) {
	turnErr := domain.NewDomainError(domain.ErrCodeLLM, "completion failed")

	mockBot := new(MockTurnHandler)
	mockBot.On("OnTurn", mock.Anything, mock.Anything).Return(turnErr)
	mockBot.On("OnTurnError", mock.Anything, mock.Anything, turnErr).Return()

	handler := NewMessagesHandler(mockBot, nil)
	incoming := activity.NewUserMessage("conv-1", "user-1", "hello")

	w := postActivity(t, handler, incoming)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	mockBot.AssertExpectations(t)
}
