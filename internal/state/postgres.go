package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists state documents in the bot_state table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a postgres-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Read(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	if len(keys) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT key, document FROM bot_state WHERE key = ANY($1)`,
		keys,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make(map[string]json.RawMessage, len(keys))
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		docs[key] = json.RawMessage(raw)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) Write(ctx context.Context, changes map[string]json.RawMessage) error {
	for key, raw := range changes {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO bot_state (key, document, updated_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (key) DO UPDATE SET document = $2, updated_at = $3`,
			key, []byte(raw), time.Now().UTC(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM bot_state WHERE key = ANY($1)`, keys)
	return err
}
