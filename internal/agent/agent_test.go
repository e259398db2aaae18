package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/tools"
)

// fakeCompletionServer replays scripted chat completion responses in order.
func fakeCompletionServer(t *testing.T, responses []openai.ChatCompletionResponse) (*httptest.Server, *openai.Client) {
	t.Helper()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		if calls >= len(responses) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := responses[calls]
		calls++

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	return server, openai.NewClientWithConfig(cfg)
}

func assistantMessage(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			},
		}},
	}
}

func toolCallMessage(name, arguments string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   "call_1",
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      name,
						Arguments: arguments,
					},
				}},
			},
		}},
	}
}

func mathConversation(text string) *domain.Conversation {
	conversation := domain.NewConversation(10)
	conversation.ThreadID = "thread-1"
	conversation.AddTurn(domain.NewTurn(domain.RoleUser, text))
	return conversation
}

func newTestAgent(t *testing.T, responses []openai.ChatCompletionResponse) *OpenAIAgent {
	t.Helper()
	_, client := fakeCompletionServer(t, responses)
	cfg := NewMathAgentConfig(tools.StaticMediaLibrary{}, tools.StaticResearcher{}, 3)
	return NewOpenAIAgent(cfg, client, "gpt-4o")
}

func TestOpenAIAgent_Process_PlainAnswer(t *testing.T) {
	agent := newTestAgent(t, []openai.ChatCompletionResponse{
		assistantMessage("Hello there!"),
	})

	turn, err := agent.Process(context.Background(), mathConversation("hi"))

	require.NoError(t, err)
	assert.Equal(t, domain.RoleAssistant, turn.Role)
	assert.Equal(t, "Hello there!", turn.Content)
	assert.Empty(t, turn.ToolUsage)
	assert.Empty(t, turn.Attachments)
}

func TestOpenAIAgent_Process_ToolRound(t *testing.T) {
	agent := newTestAgent(t, []openai.ChatCompletionResponse{
		toolCallMessage("Add", `{"x": 2, "y": 3}`),
		assistantMessage("The answer is 5."),
	})

	turn, err := agent.Process(context.Background(), mathConversation("what is 2 + 3?"))

	require.NoError(t, err)
	assert.Equal(t, "The answer is 5.", turn.Content)
	require.Len(t, turn.ToolUsage, 1)
	assert.Equal(t, "Add", turn.ToolUsage[0].ToolName)
	assert.Equal(t, "5", turn.ToolUsage[0].Result)
	assert.Empty(t, turn.ToolUsage[0].Error)
}

func TestOpenAIAgent_Process_ToolErrorFedBack(t *testing.T) {
	agent := newTestAgent(t, []openai.ChatCompletionResponse{
		toolCallMessage("Divide", `{"x": 1, "y": 0}`),
		assistantMessage("Division by zero is undefined."),
	})

	turn, err := agent.Process(context.Background(), mathConversation("what is 1 / 0?"))

	require.NoError(t, err)
	assert.Equal(t, "Division by zero is undefined.", turn.Content)
	require.Len(t, turn.ToolUsage, 1)
	assert.Contains(t, turn.ToolUsage[0].Error, "division by zero")
}

func TestOpenAIAgent_Process_UnknownTool(t *testing.T) {
	agent := newTestAgent(t, []openai.ChatCompletionResponse{
		toolCallMessage("Teleport", `{}`),
		assistantMessage("I cannot do that."),
	})

	turn, err := agent.Process(context.Background(), mathConversation("teleport me"))

	require.NoError(t, err)
	assert.Equal(t, "I cannot do that.", turn.Content)
	require.Len(t, turn.ToolUsage, 1)
	assert.Contains(t, turn.ToolUsage[0].Error, "tool not found")
}

func TestOpenAIAgent_Process_CollectsAttachments(t *testing.T) {
	agent := newTestAgent(t, []openai.ChatCompletionResponse{
		toolCallMessage("Research", `{"query": "harry potter"}`),
		assistantMessage("Here is what I found."),
	})

	turn, err := agent.Process(context.Background(), mathConversation("research harry potter"))

	require.NoError(t, err)
	require.Len(t, turn.Attachments, 3)
	citation, ok := turn.Attachments[0].(domain.Citation)
	require.True(t, ok)
	assert.Equal(t, "Harry Potter", citation.Title)
}

func TestOpenAIAgent_Process_RoundBudgetForcesTextAnswer(t *testing.T) {
	// The model asks for tools on every round. After the budget is spent
	// the request goes out without tool declarations and the model has to
	// answer in text.
	var requests []openai.ChatCompletionRequest
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		resp := toolCallMessage("Add", `{"x": 1, "y": 1}`)
		if len(req.Tools) == 0 {
			resp = assistantMessage("I kept adding and got 3.")
		}
		calls++

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	agent := NewOpenAIAgent(
		NewMathAgentConfig(tools.StaticMediaLibrary{}, tools.StaticResearcher{}, 3),
		openai.NewClientWithConfig(cfg), "gpt-4o")

	turn, err := agent.Process(context.Background(), mathConversation("loop forever"))

	require.NoError(t, err)
	assert.Equal(t, "I kept adding and got 3.", turn.Content)
	assert.Len(t, turn.ToolUsage, 3)

	// Three tool rounds plus the final text-only completion.
	require.Equal(t, 4, calls)
	assert.NotEmpty(t, requests[0].Tools)
	assert.Empty(t, requests[3].Tools)
}

func TestOpenAIAgent_Process_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "boom"}}`, http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	agent := NewOpenAIAgent(
		NewMathAgentConfig(tools.StaticMediaLibrary{}, tools.StaticResearcher{}, 3),
		openai.NewClientWithConfig(cfg), "gpt-4o")

	_, err := agent.Process(context.Background(), mathConversation("hi"))

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeLLM, domainErr.Code)
}

func TestNewMathAgentConfig(t *testing.T) {
	cfg := NewMathAgentConfig(tools.StaticMediaLibrary{}, tools.StaticResearcher{}, 5)

	assert.Equal(t, "math_agent", cfg.AgentID)
	assert.Equal(t, []string{
		"Add", "CreateLineChart", "CreatePieChart", "CreateVerticalBarChart",
		"Divide", "GetImage", "GetVideo", "Multiply", "Research", "Subtract",
	}, cfg.Toolset.Names())
}

func TestConfig_MaxRoundsDefault(t *testing.T) {
	assert.Equal(t, DefaultMaxToolRounds, Config{}.maxRounds())
	assert.Equal(t, 2, Config{MaxToolRounds: 2}.maxRounds())
}

func TestToGeminiSchema(t *testing.T) {
	schema := toGeminiSchema(map[string]any{
		"type":        "object",
		"description": "chart arguments",
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"data": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"x": map[string]any{"type": "string"},
						"y": map[string]any{"type": "number"},
					},
					"required": []string{"x", "y"},
				},
			},
		},
		"required": []string{"title", "data"},
	})

	require.NotNil(t, schema)
	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, "chart arguments", schema.Description)
	assert.Equal(t, []string{"title", "data"}, schema.Required)
	assert.Equal(t, genai.TypeString, schema.Properties["title"].Type)

	data := schema.Properties["data"]
	require.NotNil(t, data)
	assert.Equal(t, genai.TypeArray, data.Type)
	require.NotNil(t, data.Items)
	assert.Equal(t, genai.TypeNumber, data.Items.Properties["y"].Type)

	assert.Nil(t, toGeminiSchema(nil))
}
