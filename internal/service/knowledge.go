package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/repository"
	"github.com/kernelworks/kernelbot/internal/telemetry"
)

// SourceRepositoryInterface defines the repository interface for knowledge source persistence
type SourceRepositoryInterface interface {
	Create(ctx context.Context, s *domain.Source, embedding []float32) error
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	List(ctx context.Context) ([]*domain.Source, error)
	Update(ctx context.Context, s *domain.Source, embedding []float32) error
	Delete(ctx context.Context, id string) error
	SearchByEmbedding(ctx context.Context, embedding []float32, limit int) ([]repository.ScoredSource, error)
}

// EmbedderInterface defines the interface for generating embeddings
type EmbedderInterface interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// DefaultSearchLimit is how many sources back a research answer
const DefaultSearchLimit = 3

// KnowledgeService handles business logic for knowledge sources and serves
// retrieval queries for the research tool.
type KnowledgeService struct {
	sourceRepo SourceRepositoryInterface
	embedder   EmbedderInterface
	uuidGen    UUIDGenerator
}

// NewKnowledgeService creates a new KnowledgeService instance
func NewKnowledgeService(sourceRepo SourceRepositoryInterface, embedder EmbedderInterface) *KnowledgeService {
	return &KnowledgeService{
		sourceRepo: sourceRepo,
		embedder:   embedder,
		uuidGen:    &DefaultUUIDGenerator{},
	}
}

// NewKnowledgeServiceWithUUIDGen creates a new KnowledgeService with custom UUID generator (for testing)
func NewKnowledgeServiceWithUUIDGen(sourceRepo SourceRepositoryInterface, embedder EmbedderInterface, uuidGen UUIDGenerator) *KnowledgeService {
	return &KnowledgeService{
		sourceRepo: sourceRepo,
		embedder:   embedder,
		uuidGen:    uuidGen,
	}
}

// CreateSourceInput represents the input for creating a knowledge source
type CreateSourceInput struct {
	Title    string
	URL      string
	Content  string
	Metadata map[string]string
}

// UpdateSourceInput represents the input for updating a knowledge source
type UpdateSourceInput struct {
	SourceID string
	Title    string
	URL      string
	Content  string
	Metadata map[string]string
}

// Create creates a new knowledge source and embeds it. When embedding fails
// the source is still created; the backfill worker retries later.
func (s *KnowledgeService) Create(ctx context.Context, input CreateSourceInput) (*domain.Source, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Create", telemetry.SpanAttributes{
		Operation: "create",
	})
	defer span.End()

	now := time.Now().UTC()
	source := domain.NewSource(s.uuidGen.NewString(), input.Title, input.URL, input.Content, input.Metadata, now)

	if err := domain.ValidateSource(source); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid knowledge source", err)
	}

	embedding := s.tryEmbed(ctx, source)

	if err := s.sourceRepo.Create(ctx, source, embedding); err != nil {
		span.SetError(err)
		return nil, err
	}

	return source, nil
}

// GetByID retrieves a knowledge source by ID
func (s *KnowledgeService) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	return s.sourceRepo.GetByID(ctx, id)
}

// List retrieves all knowledge sources
func (s *KnowledgeService) List(ctx context.Context) ([]*domain.Source, error) {
	return s.sourceRepo.List(ctx)
}

// Update updates a knowledge source and re-embeds it
func (s *KnowledgeService) Update(ctx context.Context, input UpdateSourceInput) (*domain.Source, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Update", telemetry.SpanAttributes{
		Operation: "update",
	})
	defer span.End()

	source, err := s.sourceRepo.GetByID(ctx, input.SourceID)
	if err != nil {
		return nil, err
	}

	if input.Title != "" {
		source.Title = input.Title
	}
	if input.URL != "" {
		source.URL = input.URL
	}
	if input.Content != "" {
		source.Content = input.Content
	}
	if input.Metadata != nil {
		source.Metadata = input.Metadata
	}
	source.UpdatedAt = time.Now().UTC()

	if err := domain.ValidateSource(source); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid knowledge source", err)
	}

	embedding := s.tryEmbed(ctx, source)

	if err := s.sourceRepo.Update(ctx, source, embedding); err != nil {
		span.SetError(err)
		return nil, err
	}

	return source, nil
}

// Delete removes a knowledge source
func (s *KnowledgeService) Delete(ctx context.Context, id string) error {
	return s.sourceRepo.Delete(ctx, id)
}

// Research answers a query from the stored sources. It implements the
// agent's research tool: the query is embedded, the nearest sources are
// retrieved and returned as an answer with citations.
func (s *KnowledgeService) Research(ctx context.Context, query string) (string, []domain.Citation, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Research", telemetry.SpanAttributes{
		Operation: "research",
	})
	defer span.End()

	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		span.SetError(err)
		return "", nil, domain.NewDomainErrorWithCause(domain.ErrCodeLLM, "failed to embed research query", err)
	}

	scored, err := s.sourceRepo.SearchByEmbedding(ctx, embedding, DefaultSearchLimit)
	if err != nil {
		span.SetError(err)
		return "", nil, err
	}

	if len(scored) == 0 {
		return "No relevant sources found.", nil, nil
	}

	var parts []string
	citations := make([]domain.Citation, 0, len(scored))
	for _, result := range scored {
		parts = append(parts, result.Source.Content)
		citations = append(citations, result.Source.Citation())
	}

	return strings.Join(parts, "\n\n"), citations, nil
}

// tryEmbed generates an embedding for a source, returning nil on failure so
// the write can proceed without one.
func (s *KnowledgeService) tryEmbed(ctx context.Context, source *domain.Source) []float32 {
	embedding, err := s.embedder.GenerateEmbedding(ctx, source.EmbeddingText())
	if err != nil {
		log.Printf("Embedding for source %s failed, leaving for backfill: %v", source.ID, err)
		return nil
	}
	return embedding
}
