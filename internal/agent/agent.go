// Package agent implements LLM-backed agents that answer conversation turns
// and may call tools while doing so.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/tools"
)

// DefaultMaxToolRounds bounds tool auto-invoke rounds per turn.
const DefaultMaxToolRounds = 5

// Agent processes a conversation and produces the next assistant turn.
type Agent interface {
	ID() string
	Name() string
	Description() string
	Instructions() string
	Tools() tools.Toolset
	Process(ctx context.Context, conversation *domain.Conversation) (domain.Turn, error)
}

// Config carries the identity and toolset shared by agent implementations.
type Config struct {
	AgentID       string
	AgentName     string
	Description   string
	Instructions  string
	Toolset       tools.Toolset
	MaxToolRounds int
}

func (c Config) maxRounds() int {
	if c.MaxToolRounds <= 0 {
		return DefaultMaxToolRounds
	}
	return c.MaxToolRounds
}

// invocationRecorder accumulates tool usage and attachments over one
// agent turn.
type invocationRecorder struct {
	usage       []domain.ToolUsage
	attachments []domain.Attachment
}

// invoke runs a tool, records its usage, and harvests any attachments from
// the result. Tool failures become error results for the model rather than
// turn failures.
func (r *invocationRecorder) invoke(ctx context.Context, set tools.Toolset, name string, args json.RawMessage) (string, error) {
	usage := domain.ToolUsage{
		ToolName:  name,
		Arguments: string(args),
		StartedAt: time.Now().UTC(),
	}

	tool, err := set.Get(name)
	if err != nil {
		usage.Error = err.Error()
		r.usage = append(r.usage, usage)
		return "", err
	}

	result, err := tool.Invoke(ctx, args)
	usage.DurationMS = time.Since(usage.StartedAt).Milliseconds()

	if err != nil {
		usage.Error = err.Error()
		r.usage = append(r.usage, usage)
		log.Printf("tool %s failed: %v", name, err)
		return "", err
	}

	encoded, err := encodeToolResult(result)
	if err != nil {
		usage.Error = err.Error()
		r.usage = append(r.usage, usage)
		return "", err
	}

	usage.Result = encoded
	r.usage = append(r.usage, usage)
	r.attachments = append(r.attachments, tools.ExtractAttachments(result)...)
	return encoded, nil
}

// finish builds the assistant turn carrying the collected usage and
// attachments.
func (r *invocationRecorder) finish(content string) domain.Turn {
	turn := domain.NewTurn(domain.RoleAssistant, content)
	turn.ToolUsage = r.usage
	turn.Attachments = r.attachments
	return turn
}

func encodeToolResult(result any) (string, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(raw), nil
}

// toolErrorResult is what the model sees when a tool invocation fails.
func toolErrorResult(err error) string {
	raw, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(raw)
}
