package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"3978"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// Bot Framework app credentials. When AppID is empty the activity
	// endpoint accepts unauthenticated requests (emulator local mode).
	AppID       string `envconfig:"APP_ID"`
	AppPassword string `envconfig:"APP_PASSWORD"`
	AppTenantID string `envconfig:"APP_TENANT_ID"`
	AppType     string `envconfig:"APP_TYPE" default:"MultiTenant"`

	WelcomeMessage string `envconfig:"WELCOME_MESSAGE" default:"Hello and welcome to kernelbot!"`
	MaxTurns       int    `envconfig:"MAX_TURNS" default:"10"`

	LLMProvider     string `envconfig:"LLM_PROVIDER" default:"openai"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envconfig:"OPENAI_BASE_URL"`
	OpenAIChatModel string `envconfig:"OPENAI_CHAT_MODEL" default:"gpt-4o"`
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
	GeminiChatModel string `envconfig:"GEMINI_CHAT_MODEL" default:"gemini-1.5-flash-latest"`

	// Max tool auto-invoke rounds per agent turn.
	MaxToolRounds int `envconfig:"MAX_TOOL_ROUNDS" default:"5"`

	SSOEnabled        bool   `envconfig:"SSO_ENABLED" default:"false"`
	SSOConnectionName string `envconfig:"SSO_CONNECTION_NAME" default:"default"`
	SSOMessageTitle   string `envconfig:"SSO_MESSAGE_TITLE" default:"Please sign in"`
	SSOMessagePrompt  string `envconfig:"SSO_MESSAGE_PROMPT" default:"Sign in"`
	SSOMessageSuccess string `envconfig:"SSO_MESSAGE_SUCCESS" default:"Login success"`
	SSOMessageFailed  string `envconfig:"SSO_MESSAGE_FAILED" default:"Login failed"`
	TokenServiceURL   string `envconfig:"TOKEN_SERVICE_URL" default:"https://api.botframework.com"`

	// Optional backends. Each one degrades to an in-process fallback
	// when unset.
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	AMQPURL       string `envconfig:"AMQP_URL"`
	AMQPQueue     string `envconfig:"AMQP_QUEUE" default:"kernelbot.turns"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"kernelbot-media"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	AdminAPIKey string `envconfig:"ADMIN_API_KEY"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("BOT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.LLMProvider != "openai" && cfg.LLMProvider != "gemini" {
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.LLMProvider)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) AuthEnabled() bool {
	return c.AppID != ""
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

func (c *Config) HasAMQP() bool {
	return c.AMQPURL != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasGemini() bool {
	return c.GeminiAPIKey != ""
}
