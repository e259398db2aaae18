package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/telemetry"
	"github.com/kernelworks/kernelbot/internal/tools"
)

// GeminiAgent answers turns with a Gemini model and auto-invokes tools via
// the function calling API.
type GeminiAgent struct {
	cfg    Config
	client *genai.Client
	model  string
}

// NewGeminiAgent creates an agent backed by the given Gemini client.
func NewGeminiAgent(cfg Config, client *genai.Client, model string) *GeminiAgent {
	return &GeminiAgent{cfg: cfg, client: client, model: model}
}

func (a *GeminiAgent) ID() string           { return a.cfg.AgentID }
func (a *GeminiAgent) Name() string         { return a.cfg.AgentName }
func (a *GeminiAgent) Description() string  { return a.cfg.Description }
func (a *GeminiAgent) Instructions() string { return a.cfg.Instructions }
func (a *GeminiAgent) Tools() tools.Toolset { return a.cfg.Toolset }

// Process sends the conversation to the model, resolving function calls for
// up to MaxToolRounds rounds, and returns the final assistant turn.
func (a *GeminiAgent) Process(ctx context.Context, conversation *domain.Conversation) (domain.Turn, error) {
	ctx, span := telemetry.StartSpan(ctx, "agent.process", telemetry.SpanAttributes{
		ConversationID: conversation.ThreadID,
		AgentID:        a.cfg.AgentID,
	})
	defer span.End()

	last := conversation.LastTurn()
	if last == nil || last.Role != domain.RoleUser {
		return domain.Turn{}, domain.NewDomainError(domain.ErrCodeLLM, "conversation has no pending user turn")
	}

	model := a.client.GenerativeModel(a.model)
	if a.cfg.Instructions != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(a.cfg.Instructions)},
		}
	}
	model.Tools = a.toolDeclarations()

	session := model.StartChat()
	session.History = a.buildHistory(conversation)

	recorder := &invocationRecorder{}
	parts := []genai.Part{genai.Text(last.Content)}

	for round := 0; ; round++ {
		// Once the round budget is spent the model has to answer in text,
		// so the final request carries no function declarations.
		if round >= a.cfg.maxRounds() {
			model.Tools = nil
		}

		resp, err := session.SendMessage(ctx, parts...)
		if err != nil {
			span.SetError(err)
			return domain.Turn{}, domain.NewDomainErrorWithCause(domain.ErrCodeLLM, "gemini request failed", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return domain.Turn{}, domain.NewDomainError(domain.ErrCodeLLM, "gemini returned no candidates")
		}

		calls := functionCalls(resp.Candidates[0].Content.Parts)
		if len(calls) == 0 || round >= a.cfg.maxRounds() {
			return recorder.finish(textContent(resp.Candidates[0].Content.Parts)), nil
		}

		parts = parts[:0]
		for _, call := range calls {
			args, err := json.Marshal(call.Args)
			if err != nil {
				return domain.Turn{}, domain.NewDomainErrorWithCause(domain.ErrCodeLLM, "failed to encode function args", err)
			}

			result, err := recorder.invoke(ctx, a.cfg.Toolset, call.Name, args)
			if err != nil {
				result = toolErrorResult(err)
			}
			parts = append(parts, genai.FunctionResponse{
				Name:     call.Name,
				Response: map[string]any{"result": result},
			})
		}
	}
}

// buildHistory converts all turns before the last user turn into chat
// history. Gemini uses "model" where OpenAI uses "assistant".
func (a *GeminiAgent) buildHistory(conversation *domain.Conversation) []*genai.Content {
	if len(conversation.History) < 2 {
		return nil
	}

	history := make([]*genai.Content, 0, len(conversation.History)-1)
	for _, turn := range conversation.History[:len(conversation.History)-1] {
		role := "user"
		if turn.Role == domain.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}
	return history
}

func (a *GeminiAgent) toolDeclarations() []*genai.Tool {
	ordered := a.cfg.Toolset.Ordered()
	if len(ordered) == 0 {
		return nil
	}

	declarations := make([]*genai.FunctionDeclaration, 0, len(ordered))
	for _, tool := range ordered {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  toGeminiSchema(tool.Parameters()),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func functionCalls(parts []genai.Part) []genai.FunctionCall {
	var calls []genai.FunctionCall
	for _, part := range parts {
		if call, ok := part.(genai.FunctionCall); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

func textContent(parts []genai.Part) string {
	var sb strings.Builder
	for _, part := range parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

// toGeminiSchema converts a JSON schema map into the genai schema type.
// Only the subset used by tool parameter schemas is handled.
func toGeminiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	out := &genai.Schema{}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}

	switch schema["type"] {
	case "object":
		out.Type = genai.TypeObject
		if props, ok := schema["properties"].(map[string]any); ok {
			out.Properties = make(map[string]*genai.Schema, len(props))
			for name, raw := range props {
				if sub, ok := raw.(map[string]any); ok {
					out.Properties[name] = toGeminiSchema(sub)
				}
			}
		}
		if required, ok := schema["required"].([]string); ok {
			out.Required = required
		}
	case "array":
		out.Type = genai.TypeArray
		if items, ok := schema["items"].(map[string]any); ok {
			out.Items = toGeminiSchema(items)
		}
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	}
	return out
}
