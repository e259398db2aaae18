package agent

import (
	"context"
	"encoding/json"

	"github.com/sashabaranov/go-openai"

	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/telemetry"
	"github.com/kernelworks/kernelbot/internal/tools"
)

// OpenAIAgent answers turns with an OpenAI chat model and auto-invokes
// tools requested by the model.
type OpenAIAgent struct {
	cfg    Config
	client *openai.Client
	model  string
}

// NewOpenAIAgent creates an agent backed by the given OpenAI client.
func NewOpenAIAgent(cfg Config, client *openai.Client, model string) *OpenAIAgent {
	return &OpenAIAgent{cfg: cfg, client: client, model: model}
}

func (a *OpenAIAgent) ID() string           { return a.cfg.AgentID }
func (a *OpenAIAgent) Name() string         { return a.cfg.AgentName }
func (a *OpenAIAgent) Description() string  { return a.cfg.Description }
func (a *OpenAIAgent) Instructions() string { return a.cfg.Instructions }
func (a *OpenAIAgent) Tools() tools.Toolset { return a.cfg.Toolset }

// Process sends the conversation to the model, resolving tool calls for up
// to MaxToolRounds rounds, and returns the final assistant turn.
func (a *OpenAIAgent) Process(ctx context.Context, conversation *domain.Conversation) (domain.Turn, error) {
	ctx, span := telemetry.StartSpan(ctx, "agent.process", telemetry.SpanAttributes{
		ConversationID: conversation.ThreadID,
		AgentID:        a.cfg.AgentID,
	})
	defer span.End()

	messages := a.buildMessages(conversation)
	declarations := a.toolDeclarations()
	recorder := &invocationRecorder{}

	for round := 0; ; round++ {
		req := openai.ChatCompletionRequest{
			Model:    a.model,
			Messages: messages,
		}
		// Once the round budget is spent the model has to answer in text,
		// so the final request carries no tool declarations.
		if round < a.cfg.maxRounds() {
			req.Tools = declarations
		}

		resp, err := a.client.CreateChatCompletion(ctx, req)
		if err != nil {
			span.SetError(err)
			return domain.Turn{}, domain.NewDomainErrorWithCause(domain.ErrCodeLLM, "chat completion failed", err)
		}
		if len(resp.Choices) == 0 {
			return domain.Turn{}, domain.NewDomainError(domain.ErrCodeLLM, "chat completion returned no choices")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 || round >= a.cfg.maxRounds() {
			return recorder.finish(msg.Content), nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			result, err := recorder.invoke(ctx, a.cfg.Toolset, call.Function.Name, json.RawMessage(call.Function.Arguments))
			if err != nil {
				result = toolErrorResult(err)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
}

func (a *OpenAIAgent) buildMessages(conversation *domain.Conversation) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(conversation.History)+1)
	if a.cfg.Instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: a.cfg.Instructions,
		})
	}
	for _, turn := range conversation.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	return messages
}

func (a *OpenAIAgent) toolDeclarations() []openai.Tool {
	ordered := a.cfg.Toolset.Ordered()
	declarations := make([]openai.Tool, 0, len(ordered))
	for _, tool := range ordered {
		declarations = append(declarations, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return declarations
}
