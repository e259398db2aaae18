package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/pagination"
)

// TranscriptRepository handles persistence of conversation turn records.
type TranscriptRepository struct {
	db dbtx
}

func NewTranscriptRepository(pool *pgxpool.Pool) *TranscriptRepository {
	return &TranscriptRepository{db: pool}
}

func NewTranscriptRepositoryWithTx(tx pgx.Tx) *TranscriptRepository {
	return &TranscriptRepository{db: tx}
}

func (r *TranscriptRepository) Insert(ctx context.Context, records ...domain.TurnRecord) error {
	for _, record := range records {
		createdAt := record.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO transcripts (id, conversation_id, channel_id, user_id, role, content, tool_usage, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			record.ID, record.ConversationID, record.ChannelID, record.UserID,
			string(record.Role), record.Content, record.ToolUsage, createdAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListByConversation pages through a conversation's transcript in insertion
// order using a cursor.
func (r *TranscriptRepository) ListByConversation(ctx context.Context, conversationID string, limit int, cursor string) (*pagination.PageResult[domain.TurnRecord], error) {
	if limit <= 0 {
		limit = 50
	}

	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, conversation_id, channel_id, user_id, role, content, tool_usage, created_at
	          FROM transcripts
	          WHERE conversation_id = $1`
	args := []any{conversationID}

	if decoded != nil {
		query += ` AND (created_at, id) > ($2, $3) ORDER BY created_at, id LIMIT $4`
		args = append(args, decoded.Timestamp, decoded.LastID, limit)
	} else {
		query += ` ORDER BY created_at, id LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := scanTurnRecords(rows)
	if err != nil {
		return nil, err
	}

	next := pagination.CreateNextCursor(records, limit,
		func(rec domain.TurnRecord) string { return rec.ID },
		func(rec domain.TurnRecord) time.Time { return rec.CreatedAt },
	)

	return &pagination.PageResult[domain.TurnRecord]{
		Items:   records,
		Cursor:  next,
		HasMore: next != "",
	}, nil
}

// ListConversations returns the distinct conversation ids with transcripts,
// most recently active first.
func (r *TranscriptRepository) ListConversations(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT conversation_id
		 FROM transcripts
		 GROUP BY conversation_id
		 ORDER BY MAX(created_at) DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanTurnRecords(rows pgx.Rows) ([]domain.TurnRecord, error) {
	var records []domain.TurnRecord
	for rows.Next() {
		var record domain.TurnRecord
		var role string
		if err := rows.Scan(&record.ID, &record.ConversationID, &record.ChannelID, &record.UserID,
			&role, &record.Content, &record.ToolUsage, &record.CreatedAt); err != nil {
			return nil, err
		}
		record.Role = domain.Role(role)
		records = append(records, record)
	}
	return records, rows.Err()
}
