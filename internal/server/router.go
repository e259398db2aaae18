package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kernelworks/kernelbot/internal/api"
	"github.com/kernelworks/kernelbot/internal/api/handlers"
	"github.com/kernelworks/kernelbot/internal/api/middleware"
)

type RouterConfig struct {
	AppID              string
	ChannelAuthEnabled bool
	AdminKey           string

	MessagesHandler    *handlers.MessagesHandler
	SourcesHandler     *handlers.SourcesHandler
	TranscriptsHandler *handlers.TranscriptsHandler

	Metrics         *middleware.Metrics
	MetricsGatherer prometheus.Gatherer
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.ChannelAuth(cfg.AppID, cfg.ChannelAuthEnabled))
		r.Post("/api/messages", cfg.MessagesHandler.Post)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.AdminKeyAuth(cfg.AdminKey))

		r.Route("/sources", func(r chi.Router) {
			r.Post("/", cfg.SourcesHandler.Create)
			r.Get("/", cfg.SourcesHandler.List)
			r.Get("/{id}", cfg.SourcesHandler.Get)
			r.Put("/{id}", cfg.SourcesHandler.Update)
			r.Delete("/{id}", cfg.SourcesHandler.Delete)
		})

		r.Route("/transcripts", func(r chi.Router) {
			r.Get("/", cfg.TranscriptsHandler.ListConversations)
			r.Get("/{conversationID}", cfg.TranscriptsHandler.ListByConversation)
		})
	})

	return r
}
