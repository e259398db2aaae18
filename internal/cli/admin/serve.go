package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/generative-ai-go/genai"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/api/option"

	"github.com/kernelworks/kernelbot/internal/agent"
	"github.com/kernelworks/kernelbot/internal/api/handlers"
	"github.com/kernelworks/kernelbot/internal/api/middleware"
	"github.com/kernelworks/kernelbot/internal/bot"
	"github.com/kernelworks/kernelbot/internal/config"
	"github.com/kernelworks/kernelbot/internal/connector"
	"github.com/kernelworks/kernelbot/internal/database"
	"github.com/kernelworks/kernelbot/internal/dialogs"
	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/events"
	"github.com/kernelworks/kernelbot/internal/jobs"
	"github.com/kernelworks/kernelbot/internal/openai"
	"github.com/kernelworks/kernelbot/internal/pagination"
	"github.com/kernelworks/kernelbot/internal/repository"
	"github.com/kernelworks/kernelbot/internal/server"
	"github.com/kernelworks/kernelbot/internal/service"
	"github.com/kernelworks/kernelbot/internal/state"
	"github.com/kernelworks/kernelbot/internal/storage"
	"github.com/kernelworks/kernelbot/internal/telemetry"
	"github.com/kernelworks/kernelbot/internal/tools"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bot server",
		Long:  "Start the activity endpoint and admin API on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "3978", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if cfg.SentryDSN != "" {
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	// OTel tracing is driven entirely by OTEL_* env vars
	if shutdownTracing, err := telemetry.InitTracing(ctx); err != nil {
		log.Printf("otel init failed (continuing without tracing): %v", err)
	} else if shutdownTracing != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(shutdownCtx)
		}()
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "3978" {
		cfg.Port = portFlag
	}

	// Database is optional; without it state lives in memory and the
	// research tool serves canned answers.
	var pool *pgxpool.Pool
	var sourceRepo *repository.SourceRepository
	var transcriptRepo *repository.TranscriptRepository
	if cfg.HasDatabase() {
		pool, err = database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		log.Println("connected to database")

		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			if err := runMigrations(cfg.DatabaseURL); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		sourceRepo = repository.NewSourceRepository(pool)
		transcriptRepo = repository.NewTranscriptRepository(pool)
	}

	// Conversation state: redis, then postgres, then in-memory.
	var stateStore state.Store
	switch {
	case cfg.HasRedis():
		redisClient, err := state.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		stateStore = state.NewRedisStore(redisClient, 0)
		log.Println("using redis state store")
	case pool != nil:
		stateStore = state.NewPostgresStore(pool)
		log.Println("using postgres state store")
	default:
		stateStore = state.NewMemoryStore()
		log.Println("using in-memory state store")
	}

	var embeddingClient *openai.Client
	if cfg.HasOpenAI() {
		embeddingClient = openai.NewClient(newOpenAIAPI(cfg))
	}

	// Media library: S3-compatible object storage, or static samples.
	var mediaLibrary tools.MediaLibrary = tools.StaticMediaLibrary{}
	if cfg.HasS3() {
		mediaStore, err := storage.NewMediaStore(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create media store: %w", err)
		}
		if err := mediaStore.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure media bucket: %w", err)
		}
		log.Printf("media bucket '%s' ready", cfg.S3Bucket)
		mediaLibrary = mediaStore
	}

	// Research tool: vector search over stored sources, or static answers.
	var researcher tools.Researcher = tools.StaticResearcher{}
	var knowledgeSvc *service.KnowledgeService
	if sourceRepo != nil && embeddingClient != nil {
		knowledgeSvc = service.NewKnowledgeService(sourceRepo, embeddingClient)
		researcher = knowledgeSvc
		log.Println("research tool backed by vector search")
	}

	agentCfg := agent.NewMathAgentConfig(mediaLibrary, researcher, cfg.MaxToolRounds)
	chatAgent, err := newAgent(ctx, cfg, agentCfg)
	if err != nil {
		return err
	}

	// Channel connector and user token service.
	var credentials connector.TokenProvider = connector.AnonymousCredentials{}
	if cfg.AuthEnabled() {
		credentials = connector.NewAppCredentials(cfg.AppID, cfg.AppPassword, cfg.AppTenantID)
	}
	channelConnector := connector.NewClient(credentials)

	var loginDialog *dialogs.LoginDialog
	var tokenClient bot.TokenClient
	if cfg.SSOEnabled {
		userTokens := connector.NewUserTokenClient(cfg.TokenServiceURL, cfg.AppID, credentials)
		loginDialog = dialogs.NewLoginDialog(userTokens, dialogs.Options{
			ConnectionName: cfg.SSOConnectionName,
			Title:          cfg.SSOMessageTitle,
			Prompt:         cfg.SSOMessagePrompt,
			SuccessMessage: cfg.SSOMessageSuccess,
			FailedMessage:  cfg.SSOMessageFailed,
		})
		tokenClient = userTokens
	}

	// Transcript recording: queue when a broker is configured, otherwise
	// write straight to the database.
	var recorder bot.TranscriptRecorder
	var persistWorker *jobs.TranscriptPersistWorker
	if cfg.HasAMQP() {
		amqpConn, err := events.NewConnection(ctx, cfg.AMQPURL)
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		defer amqpConn.Close()

		recorder = events.NewTranscriptPublisher(amqpConn, cfg.AMQPQueue)
		log.Println("transcripts published to queue")

		if transcriptRepo != nil {
			persistWorker = jobs.NewTranscriptPersistWorker(amqpConn, transcriptRepo, cfg.AMQPQueue)
			if err := persistWorker.Start(ctx); err != nil {
				return fmt.Errorf("failed to start transcript worker: %w", err)
			}
			log.Println("transcript persist worker started")
		}
	} else if transcriptRepo != nil {
		recorder = &repoRecorder{repo: transcriptRepo}
		log.Println("transcripts written directly to database")
	}

	var embeddingWorker *jobs.Worker
	if sourceRepo != nil && embeddingClient != nil {
		embeddingWorker = jobs.NewWorker("embedding", jobs.NewEmbeddingWorker(sourceRepo, embeddingClient), 10*time.Second)
		go embeddingWorker.Start(ctx)
		log.Println("embedding backfill worker started")
	}

	chatBot := bot.New(chatAgent, stateStore, loginDialog, tokenClient, recorder, bot.Options{
		WelcomeMessage: cfg.WelcomeMessage,
		MaxTurns:       cfg.MaxTurns,
		SSOEnabled:     cfg.SSOEnabled,
		SSOConnection:  cfg.SSOConnectionName,
	})

	messagesHandler := handlers.NewMessagesHandler(chatBot, channelConnector)

	var sourcesHandler *handlers.SourcesHandler
	if knowledgeSvc != nil {
		sourcesHandler = handlers.NewSourcesHandler(knowledgeSvc)
	} else {
		sourcesHandler = handlers.NewSourcesHandler(&NoOpKnowledgeService{})
	}

	var transcriptsHandler *handlers.TranscriptsHandler
	if transcriptRepo != nil {
		transcriptsHandler = handlers.NewTranscriptsHandler(service.NewTranscriptService(transcriptRepo))
	} else {
		transcriptsHandler = handlers.NewTranscriptsHandler(&NoOpTranscriptService{})
	}

	registry := prometheus.NewRegistry()
	metrics, err := middleware.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	router := server.NewRouter(server.RouterConfig{
		AppID:              cfg.AppID,
		ChannelAuthEnabled: cfg.AuthEnabled(),
		AdminKey:           cfg.AdminAPIKey,
		MessagesHandler:    messagesHandler,
		SourcesHandler:     sourcesHandler,
		TranscriptsHandler: transcriptsHandler,
		Metrics:            metrics,
		MetricsGatherer:    registry,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: otelhttp.NewHandler(router, "kernelbot"),
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if embeddingWorker != nil {
		embeddingWorker.Stop()
	}
	if persistWorker != nil {
		persistWorker.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// newOpenAIAPI builds the upstream client, honoring a custom base URL for
// Azure OpenAI or local gateways.
func newOpenAIAPI(cfg *config.Config) *goopenai.Client {
	if cfg.OpenAIBaseURL != "" {
		apiCfg := goopenai.DefaultConfig(cfg.OpenAIAPIKey)
		apiCfg.BaseURL = cfg.OpenAIBaseURL
		return goopenai.NewClientWithConfig(apiCfg)
	}
	return goopenai.NewClient(cfg.OpenAIAPIKey)
}

func newAgent(ctx context.Context, cfg *config.Config, agentCfg agent.Config) (agent.Agent, error) {
	switch cfg.LLMProvider {
	case "gemini":
		if !cfg.HasGemini() {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return agent.NewGeminiAgent(agentCfg, client, cfg.GeminiChatModel), nil
	default:
		if !cfg.HasOpenAI() {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		return agent.NewOpenAIAgent(agentCfg, newOpenAIAPI(cfg), cfg.OpenAIChatModel), nil
	}
}

// repoRecorder writes turn records synchronously when no broker is configured.
type repoRecorder struct {
	repo *repository.TranscriptRepository
}

func (r *repoRecorder) Record(ctx context.Context, records ...domain.TurnRecord) error {
	return r.repo.Insert(ctx, records...)
}

// NoOpKnowledgeService rejects source management when no database is configured.
type NoOpKnowledgeService struct{}

func (s *NoOpKnowledgeService) Create(ctx context.Context, input service.CreateSourceInput) (*domain.Source, error) {
	return nil, fmt.Errorf("knowledge service not configured: DATABASE_URL and OPENAI_API_KEY required")
}

func (s *NoOpKnowledgeService) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	return nil, fmt.Errorf("knowledge service not configured: DATABASE_URL and OPENAI_API_KEY required")
}

func (s *NoOpKnowledgeService) List(ctx context.Context) ([]*domain.Source, error) {
	return nil, fmt.Errorf("knowledge service not configured: DATABASE_URL and OPENAI_API_KEY required")
}

func (s *NoOpKnowledgeService) Update(ctx context.Context, input service.UpdateSourceInput) (*domain.Source, error) {
	return nil, fmt.Errorf("knowledge service not configured: DATABASE_URL and OPENAI_API_KEY required")
}

func (s *NoOpKnowledgeService) Delete(ctx context.Context, id string) error {
	return fmt.Errorf("knowledge service not configured: DATABASE_URL and OPENAI_API_KEY required")
}

// NoOpTranscriptService rejects transcript reads when no database is configured.
type NoOpTranscriptService struct{}

func (s *NoOpTranscriptService) ListByConversation(ctx context.Context, conversationID string, limit int, cursor string) (*pagination.PageResult[domain.TurnRecord], error) {
	return nil, fmt.Errorf("transcript service not configured: DATABASE_URL required")
}

func (s *NoOpTranscriptService) ListConversations(ctx context.Context, limit int) ([]string, error) {
	return nil, fmt.Errorf("transcript service not configured: DATABASE_URL required")
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
