package service

import (
	"context"

	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/pagination"
	"github.com/kernelworks/kernelbot/internal/telemetry"
)

// TranscriptRepositoryInterface defines the repository interface for transcript reads
type TranscriptRepositoryInterface interface {
	ListByConversation(ctx context.Context, conversationID string, limit int, cursor string) (*pagination.PageResult[domain.TurnRecord], error)
	ListConversations(ctx context.Context, limit int) ([]string, error)
}

// TranscriptService serves recorded conversation transcripts
type TranscriptService struct {
	transcriptRepo TranscriptRepositoryInterface
}

// NewTranscriptService creates a new TranscriptService instance
func NewTranscriptService(transcriptRepo TranscriptRepositoryInterface) *TranscriptService {
	return &TranscriptService{transcriptRepo: transcriptRepo}
}

// ListByConversation returns one page of turn records for a conversation
func (s *TranscriptService) ListByConversation(ctx context.Context, conversationID string, limit int, cursor string) (*pagination.PageResult[domain.TurnRecord], error) {
	ctx, span := telemetry.StartSpan(ctx, "TranscriptService.ListByConversation", telemetry.SpanAttributes{
		ConversationID: conversationID,
		Operation:      "list",
	})
	defer span.End()

	page, err := s.transcriptRepo.ListByConversation(ctx, conversationID, limit, cursor)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return page, nil
}

// ListConversations returns the IDs of recently active conversations
func (s *TranscriptService) ListConversations(ctx context.Context, limit int) ([]string, error) {
	return s.transcriptRepo.ListConversations(ctx, limit)
}
