package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kernelworks/kernelbot/internal/api"
	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/service"
)

type KnowledgeService interface {
	Create(ctx context.Context, input service.CreateSourceInput) (*domain.Source, error)
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	List(ctx context.Context) ([]*domain.Source, error)
	Update(ctx context.Context, input service.UpdateSourceInput) (*domain.Source, error)
	Delete(ctx context.Context, id string) error
}

// SourcesHandler manages the knowledge sources the research tool answers from
type SourcesHandler struct {
	svc KnowledgeService
}

func NewSourcesHandler(svc KnowledgeService) *SourcesHandler {
	return &SourcesHandler{svc: svc}
}

type SourceRequest struct {
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

type SourceResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	URL       string            `json:"url"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

func sourceToResponse(s *domain.Source) *SourceResponse {
	return &SourceResponse{
		ID:        s.ID,
		Title:     s.Title,
		URL:       s.URL,
		Content:   s.Content,
		Metadata:  s.Metadata,
		CreatedAt: s.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: s.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *SourcesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.URL == "" {
		api.Error(w, http.StatusBadRequest, "url is required")
		return
	}

	source, err := h.svc.Create(r.Context(), service.CreateSourceInput{
		Title:    req.Title,
		URL:      req.URL,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, sourceToResponse(source))
}

func (h *SourcesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	source, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, sourceToResponse(source))
}

func (h *SourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.svc.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SourceResponse, 0, len(sources))
	for _, source := range sources {
		responses = append(responses, sourceToResponse(source))
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *SourcesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	source, err := h.svc.Update(r.Context(), service.UpdateSourceInput{
		SourceID: id,
		Title:    req.Title,
		URL:      req.URL,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, sourceToResponse(source))
}

func (h *SourcesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
