package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/kernelworks/kernelbot/internal/domain"
)

const (
	// DefaultBatchSize is the number of sources claimed per poll
	DefaultBatchSize = 10
)

// SourceStore defines the persistence operations the backfill needs
type SourceStore interface {
	// ListMissingEmbeddings returns sources without an embedding
	ListMissingEmbeddings(ctx context.Context, limit int) ([]*domain.Source, error)

	// UpdateEmbedding stores a generated embedding for a source
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}

// Embedder defines the interface for generating embeddings
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingWorker backfills embeddings for knowledge sources that were
// created without one, so retrieval can find them.
type EmbeddingWorker struct {
	store     SourceStore
	embedder  Embedder
	batchSize int
}

// NewEmbeddingWorker creates a new EmbeddingWorker instance
func NewEmbeddingWorker(store SourceStore, embedder Embedder) *EmbeddingWorker {
	return &EmbeddingWorker{
		store:     store,
		embedder:  embedder,
		batchSize: DefaultBatchSize,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *EmbeddingWorker) ProcessJobs(ctx context.Context) error {
	sources, err := w.store.ListMissingEmbeddings(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list sources missing embeddings: %w", err)
	}

	if len(sources) == 0 {
		return nil
	}

	log.Printf("Backfilling embeddings for %d sources", len(sources))

	for _, source := range sources {
		if err := w.processSource(ctx, source); err != nil {
			log.Printf("Error backfilling source %s: %v", source.ID, err)
		}
	}

	return nil
}

func (w *EmbeddingWorker) processSource(ctx context.Context, source *domain.Source) error {
	embedding, err := w.embedder.GenerateEmbedding(ctx, source.EmbeddingText())
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	if err := w.store.UpdateEmbedding(ctx, source.ID, embedding); err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}

	log.Printf("Source %s embedded", source.ID)
	return nil
}
