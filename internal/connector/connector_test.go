package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelworks/kernelbot/internal/activity"
	"github.com/kernelworks/kernelbot/internal/domain"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func TestClient_ReplyToActivity(t *testing.T) {
	var gotPath, gotAuth string
	var gotActivity activity.Activity

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotActivity))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "activity-42"}`))
	}))
	defer server.Close()

	client := NewClient(staticToken("secret"))
	reply := activity.NewMessage("hello back")
	reply.Conversation = &activity.ConversationAccount{ID: "conv-1"}
	reply.ReplyToID = "msg-7"
	reply.ChannelID = activity.ChannelEmulator

	id, err := client.ReplyToActivity(context.Background(), server.URL, reply)

	require.NoError(t, err)
	assert.Equal(t, "activity-42", id)
	assert.Equal(t, "/v3/conversations/conv-1/activities/msg-7", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "hello back", gotActivity.Text)
}

func TestClient_SendToConversation_Anonymous(t *testing.T) {
	var gotPath, gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(AnonymousCredentials{})
	msg := activity.NewMessage("no thread")
	msg.Conversation = &activity.ConversationAccount{ID: "conv-2"}

	_, err := client.SendToConversation(context.Background(), server.URL, msg)

	require.NoError(t, err)
	assert.Equal(t, "/v3/conversations/conv-2/activities", gotPath)
	assert.Empty(t, gotAuth)
}

func TestClient_DeliveryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(AnonymousCredentials{})
	msg := activity.NewMessage("rejected")
	msg.Conversation = &activity.ConversationAccount{ID: "conv-3"}

	_, err := client.SendToConversation(context.Background(), server.URL, msg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestUserTokenClient_GetUserToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/usertoken/GetToken", r.URL.Path)
		assert.Equal(t, "user-1", r.URL.Query().Get("userId"))
		assert.Equal(t, "default", r.URL.Query().Get("connectionName"))
		assert.Equal(t, "emulator", r.URL.Query().Get("channelId"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token": "user-jwt"}`))
	}))
	defer server.Close()

	client := NewUserTokenClient(server.URL, "app-1", staticToken("secret"))
	token, err := client.GetUserToken(context.Background(), "user-1", "default", "emulator")

	require.NoError(t, err)
	assert.Equal(t, "user-jwt", token)
}

func TestUserTokenClient_GetUserToken_NotSignedIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewUserTokenClient(server.URL, "app-1", AnonymousCredentials{})
	_, err := client.GetUserToken(context.Background(), "user-1", "default", "emulator")

	assert.ErrorIs(t, err, domain.ErrUserTokenNotFound)
}

func TestUserTokenClient_SignOut(t *testing.T) {
	var gotMethod, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewUserTokenClient(server.URL, "app-1", AnonymousCredentials{})
	err := client.SignOut(context.Background(), "user-1", "default", "emulator")

	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/usertoken/SignOut", gotPath)
}

func TestUserTokenClient_SignInURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/botsignin/GetSignInUrl", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("state"))
		w.Write([]byte("https://login.example.com/signin?code=abc"))
	}))
	defer server.Close()

	client := NewUserTokenClient(server.URL, "app-1", AnonymousCredentials{})
	link, err := client.SignInURL(context.Background(), "default", "emulator", "conv-1", "user-1")

	require.NoError(t, err)
	assert.Equal(t, "https://login.example.com/signin?code=abc", link)
}

func TestEncodeTokenExchangeState(t *testing.T) {
	state, err := encodeTokenExchangeState("app-1", "default", "emulator", "conv-1", "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, state)
}
