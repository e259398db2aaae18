//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kernelworks/kernelbot/internal/activity"
	"github.com/kernelworks/kernelbot/internal/agent"
	"github.com/kernelworks/kernelbot/internal/api/handlers"
	"github.com/kernelworks/kernelbot/internal/api/middleware"
	"github.com/kernelworks/kernelbot/internal/bot"
	"github.com/kernelworks/kernelbot/internal/connector"
	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/openai"
	"github.com/kernelworks/kernelbot/internal/repository"
	"github.com/kernelworks/kernelbot/internal/server"
	"github.com/kernelworks/kernelbot/internal/service"
	"github.com/kernelworks/kernelbot/internal/state"
	"github.com/kernelworks/kernelbot/internal/testutil"
	"github.com/kernelworks/kernelbot/internal/tools"
)

const adminKey = "e2e-admin-key"

// E2EEnv holds all resources needed for end to end tests: a postgres
// container, a scripted LLM server, a channel callback server capturing the
// bot's replies, and the full HTTP surface served in process.
type E2EEnv struct {
	T   *testing.T
	Ctx context.Context

	PostgresC *testutil.PostgresContainer
	Pool      *pgxpool.Pool

	Server   *httptest.Server
	Callback *httptest.Server
	LLM      *httptest.Server

	HTTPClient *http.Client

	mu          sync.Mutex
	replies     []activity.Activity
	completions []goopenai.ChatCompletionResponse
}

// SetupE2EEnv wires the whole service against fakes for everything external:
// postgres in a container, the LLM and the channel as local HTTP servers.
func SetupE2EEnv(t *testing.T) *E2EEnv {
	ctx := context.Background()

	env := &E2EEnv{
		T:          t,
		Ctx:        ctx,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}

	env.PostgresC = testutil.NewPostgresContainer(ctx, t)
	env.Pool = testutil.NewTestPool(ctx, t, env.PostgresC, "../../migrations")

	env.LLM = httptest.NewServer(http.HandlerFunc(env.serveLLM))
	env.Callback = httptest.NewServer(http.HandlerFunc(env.serveCallback))

	llmCfg := goopenai.DefaultConfig("e2e-key")
	llmCfg.BaseURL = env.LLM.URL + "/v1"
	llmClient := goopenai.NewClientWithConfig(llmCfg)

	embedder := openai.NewClient(llmClient)

	sourceRepo := repository.NewSourceRepository(env.Pool)
	transcriptRepo := repository.NewTranscriptRepository(env.Pool)

	knowledgeSvc := service.NewKnowledgeService(sourceRepo, embedder)
	transcriptSvc := service.NewTranscriptService(transcriptRepo)

	agentCfg := agent.NewMathAgentConfig(tools.StaticMediaLibrary{}, knowledgeSvc, 0)
	chatAgent := agent.NewOpenAIAgent(agentCfg, llmClient, "gpt-test")

	b := bot.New(chatAgent, state.NewPostgresStore(env.Pool), nil, nil,
		&dbRecorder{repo: transcriptRepo}, bot.Options{
			WelcomeMessage: "Welcome to the e2e bot!",
		})

	registry := prometheus.NewRegistry()
	metrics, err := middleware.NewMetrics(registry)
	if err != nil {
		t.Fatalf("failed to create metrics middleware: %v", err)
	}
	router := server.NewRouter(server.RouterConfig{
		AdminKey:           adminKey,
		MessagesHandler:    handlers.NewMessagesHandler(b, connector.NewClient(connector.AnonymousCredentials{})),
		SourcesHandler:     handlers.NewSourcesHandler(knowledgeSvc),
		TranscriptsHandler: handlers.NewTranscriptsHandler(transcriptSvc),
		Metrics:            metrics,
		MetricsGatherer:    registry,
	})

	env.Server = httptest.NewServer(router)
	return env
}

// Cleanup tears the environment down in reverse order.
func (env *E2EEnv) Cleanup() {
	env.Server.Close()
	env.Callback.Close()
	env.LLM.Close()
	env.Pool.Close()
	_ = env.PostgresC.Terminate(env.Ctx)
}

// dbRecorder writes turn records straight to the repository.
type dbRecorder struct {
	repo *repository.TranscriptRepository
}

func (r *dbRecorder) Record(ctx context.Context, records ...domain.TurnRecord) error {
	return r.repo.Insert(ctx, records...)
}

// ScriptLLM queues chat completion responses to be replayed in order.
func (env *E2EEnv) ScriptLLM(responses ...goopenai.ChatCompletionResponse) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.completions = append(env.completions, responses...)
}

// serveLLM answers chat completions from the scripted queue and embeddings
// deterministically from the input text.
func (env *E2EEnv) serveLLM(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/v1/chat/completions":
		env.mu.Lock()
		if len(env.completions) == 0 {
			env.mu.Unlock()
			http.Error(w, "no scripted completion left", http.StatusInternalServerError)
			return
		}
		resp := env.completions[0]
		env.completions = env.completions[1:]
		env.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)

	case r.URL.Path == "/v1/embeddings":
		var req goopenai.EmbeddingRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)

		var text string
		if inputs, ok := req.Input.([]interface{}); ok && len(inputs) > 0 {
			text, _ = inputs[0].(string)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(goopenai.EmbeddingResponse{
			Data: []goopenai.Embedding{{Embedding: deterministicEmbedding(text)}},
		})

	default:
		http.NotFound(w, r)
	}
}

// deterministicEmbedding derives a stable 1536-dim vector from text so
// semantic search ranks identical texts highest.
func deterministicEmbedding(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, 1536)
	vec[0] = 1
	for i, b := range sum {
		vec[i+1] = float32(b) / 255
	}
	return vec
}

// serveCallback plays the channel: it accepts the bot's outbound activities
// and records them for assertions.
func (env *E2EEnv) serveCallback(w http.ResponseWriter, r *http.Request) {
	var a activity.Activity
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	env.mu.Lock()
	env.replies = append(env.replies, a)
	env.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"id": uuid.NewString()})
}

// Replies returns a copy of all activities the bot has sent so far.
func (env *E2EEnv) Replies() []activity.Activity {
	env.mu.Lock()
	defer env.mu.Unlock()
	out := make([]activity.Activity, len(env.replies))
	copy(out, env.replies)
	return out
}

// ResetReplies clears the captured replies between test steps.
func (env *E2EEnv) ResetReplies() {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.replies = nil
}

// PostActivity delivers an inbound activity to the messages endpoint.
func (env *E2EEnv) PostActivity(a *activity.Activity) (*http.Response, error) {
	a.ServiceURL = env.Callback.URL
	body, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return env.HTTPClient.Post(env.Server.URL+"/api/messages", "application/json", bytes.NewReader(body))
}

// SendMessage posts a user message activity and returns the HTTP response.
func (env *E2EEnv) SendMessage(conversationID, userID, text string) (*http.Response, error) {
	return env.PostActivity(activity.NewUserMessage(conversationID, userID, text))
}

// AdminRequest performs an authenticated admin API call and decodes the
// data envelope into out.
func (env *E2EEnv) AdminRequest(method, path string, payload, out interface{}) (int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, env.Server.URL+"/api/admin"+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+adminKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := env.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return resp.StatusCode, fmt.Errorf("decode envelope: %w", err)
		}
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode data: %w", err)
		}
	}
	return resp.StatusCode, nil
}
