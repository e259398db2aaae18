//go:build e2e

package e2e

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelworks/kernelbot/internal/activity"
)

func assistantReply(content string) goopenai.ChatCompletionResponse {
	return goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{
			Message: goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleAssistant,
				Content: content,
			},
		}},
	}
}

func toolCallReply(name, arguments string) goopenai.ChatCompletionResponse {
	return goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{
			Message: goopenai.ChatCompletionMessage{
				Role: goopenai.ChatMessageRoleAssistant,
				ToolCalls: []goopenai.ToolCall{{
					ID:   "call-" + uuid.NewString(),
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      name,
						Arguments: arguments,
					},
				}},
			},
		}},
	}
}

// textReplies filters out typing indicators and traces.
func textReplies(all []activity.Activity) []activity.Activity {
	var out []activity.Activity
	for _, a := range all {
		if a.Type == activity.TypeMessage {
			out = append(out, a)
		}
	}
	return out
}

func TestE2E_Conversation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	convID := uuid.NewString()

	t.Run("welcome on members added", func(t *testing.T) {
		update := &activity.Activity{
			Type:         activity.TypeConversationUpdate,
			ID:           uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			ChannelID:    activity.ChannelEmulator,
			From:         activity.Account{ID: "user-1", Role: "user"},
			Recipient:    activity.Account{ID: "kernelbot", Role: "bot"},
			Conversation: &activity.ConversationAccount{ID: convID},
			MembersAdded: []activity.Account{{ID: "user-1"}, {ID: "kernelbot"}},
		}

		resp, err := env.PostActivity(update)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		messages := textReplies(env.Replies())
		require.Len(t, messages, 1, "the bot itself must not be welcomed")
		assert.Equal(t, "Welcome to the e2e bot!", messages[0].Text)
	})

	t.Run("math question through the tool loop", func(t *testing.T) {
		env.ResetReplies()
		env.ScriptLLM(
			toolCallReply("Multiply", `{"x": 21, "y": 2}`),
			assistantReply("21 times 2 is 42."),
		)

		resp, err := env.SendMessage(convID, "user-1", "What is 21 * 2?")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		messages := textReplies(env.Replies())
		require.Len(t, messages, 1)
		assert.Equal(t, "21 times 2 is 42.", messages[0].Text)
	})

	t.Run("transcript recorded", func(t *testing.T) {
		var ids []string
		status, err := env.AdminRequest(http.MethodGet, "/transcripts", nil, &ids)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		require.Contains(t, ids, convID)

		var page struct {
			Items []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"items"`
			HasMore bool `json:"has_more"`
		}
		status, err = env.AdminRequest(http.MethodGet, "/transcripts/"+convID, nil, &page)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "user", page.Items[0].Role)
		assert.Equal(t, "What is 21 * 2?", page.Items[0].Content)
		assert.Equal(t, "assistant", page.Items[1].Role)
		assert.False(t, page.HasMore)
	})
}

func TestE2E_Research(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("seed a knowledge source", func(t *testing.T) {
		var created struct {
			ID string `json:"id"`
		}
		status, err := env.AdminRequest(http.MethodPost, "/sources", map[string]string{
			"title":   "Dragon breeds",
			"url":     "https://example.com/dragons",
			"content": "The Hungarian Horntail is considered the most dangerous breed.",
		}, &created)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, status)
		assert.NotEmpty(t, created.ID)
	})

	t.Run("research answer carries citations card", func(t *testing.T) {
		env.ScriptLLM(
			toolCallReply("Research", `{"query": "most dangerous dragon breed"}`),
			assistantReply("The Hungarian Horntail is the most dangerous breed."),
		)

		resp, err := env.SendMessage(uuid.NewString(), "user-1", "Which dragon breed is the most dangerous?")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		messages := textReplies(env.Replies())
		require.Len(t, messages, 1)
		assert.Equal(t, "The Hungarian Horntail is the most dangerous breed.", messages[0].Text)
		require.Len(t, messages[0].Attachments, 1, "citations render as an adaptive card")
		assert.Equal(t, activity.AdaptiveCardContentType, messages[0].Attachments[0].ContentType)
	})
}

func TestE2E_Surface(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("healthz", func(t *testing.T) {
		resp, err := env.HTTPClient.Get(env.Server.URL + "/healthz")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("metrics exposed", func(t *testing.T) {
		resp, err := env.HTTPClient.Get(env.Server.URL + "/metrics")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("admin requires key", func(t *testing.T) {
		resp, err := env.HTTPClient.Get(env.Server.URL + "/api/admin/sources")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
