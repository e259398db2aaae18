package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/kernelworks/kernelbot/internal/domain"
)

// SourceRepository handles persistence of knowledge sources and their
// embeddings.
type SourceRepository struct {
	db dbtx
}

func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{db: pool}
}

func NewSourceRepositoryWithTx(tx pgx.Tx) *SourceRepository {
	return &SourceRepository{db: tx}
}

func (r *SourceRepository) Create(ctx context.Context, s *domain.Source, embedding []float32) error {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO sources (id, title, url, content, metadata, embedding, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.Title, s.URL, s.Content, s.Metadata, nullableVector(embedding), createdAt, updatedAt,
	)
	return err
}

func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	var s domain.Source
	err := r.db.QueryRow(ctx,
		`SELECT id, title, url, content, metadata, created_at, updated_at
		 FROM sources WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Title, &s.URL, &s.Content, &s.Metadata, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *SourceRepository) List(ctx context.Context) ([]*domain.Source, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, title, url, content, metadata, created_at, updated_at
		 FROM sources ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSourceRows(rows)
}

func (r *SourceRepository) Update(ctx context.Context, s *domain.Source, embedding []float32) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sources
		 SET title = $2, url = $3, content = $4, metadata = $5, embedding = $6, updated_at = $7
		 WHERE id = $1`,
		s.ID, s.Title, s.URL, s.Content, s.Metadata, nullableVector(embedding), time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

func (r *SourceRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

// ListMissingEmbeddings returns sources that have no embedding yet, oldest
// first, so the backfill worker can pick them up in batches.
func (r *SourceRepository) ListMissingEmbeddings(ctx context.Context, limit int) ([]*domain.Source, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, title, url, content, metadata, created_at, updated_at
		 FROM sources WHERE embedding IS NULL
		 ORDER BY updated_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSourceRows(rows)
}

// UpdateEmbedding stores a freshly generated embedding for a source.
func (r *SourceRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sources SET embedding = $2, updated_at = $3 WHERE id = $1`,
		id, nullableVector(embedding), time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

// ScoredSource is a source with its similarity score for a query embedding.
type ScoredSource struct {
	Source *domain.Source
	Score  float64
}

// SearchByEmbedding returns the sources nearest to the query embedding by
// cosine distance.
func (r *SourceRepository) SearchByEmbedding(ctx context.Context, embedding []float32, limit int) ([]ScoredSource, error) {
	if limit <= 0 {
		limit = 3
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx,
		`SELECT id, title, url, content, metadata, created_at, updated_at,
		        1.0 / (1.0 + (embedding <=> $1)) AS score
		 FROM sources
		 WHERE embedding IS NOT NULL
		 ORDER BY score DESC
		 LIMIT $2`,
		vec, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]ScoredSource, 0, limit)
	for rows.Next() {
		var s domain.Source
		var score float64
		if err := rows.Scan(&s.ID, &s.Title, &s.URL, &s.Content, &s.Metadata, &s.CreatedAt, &s.UpdatedAt, &score); err != nil {
			return nil, err
		}
		results = append(results, ScoredSource{Source: &s, Score: score})
	}
	return results, rows.Err()
}

func scanSourceRows(rows pgx.Rows) ([]*domain.Source, error) {
	var sources []*domain.Source
	for rows.Next() {
		var s domain.Source
		if err := rows.Scan(&s.ID, &s.Title, &s.URL, &s.Content, &s.Metadata, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, &s)
	}
	return sources, rows.Err()
}

func nullableVector(embedding []float32) *pgvector.Vector {
	if len(embedding) == 0 {
		return nil
	}
	vec := pgvector.NewVector(embedding)
	return &vec
}
