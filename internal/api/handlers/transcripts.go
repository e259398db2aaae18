package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kernelworks/kernelbot/internal/api"
	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/pagination"
)

type TranscriptService interface {
	ListByConversation(ctx context.Context, conversationID string, limit int, cursor string) (*pagination.PageResult[domain.TurnRecord], error)
	ListConversations(ctx context.Context, limit int) ([]string, error)
}

// TranscriptsHandler serves recorded conversation history
type TranscriptsHandler struct {
	svc TranscriptService
}

func NewTranscriptsHandler(svc TranscriptService) *TranscriptsHandler {
	return &TranscriptsHandler{svc: svc}
}

type TurnRecordResponse struct {
	ID        string             `json:"id"`
	ChannelID string             `json:"channel_id,omitempty"`
	UserID    string             `json:"user_id,omitempty"`
	Role      string             `json:"role"`
	Content   string             `json:"content"`
	ToolUsage []domain.ToolUsage `json:"tool_usage,omitempty"`
	CreatedAt string             `json:"created_at"`
}

type TranscriptPageResponse struct {
	Items      []TurnRecordResponse `json:"items"`
	NextCursor string               `json:"next_cursor,omitempty"`
	HasMore    bool                 `json:"has_more"`
}

func (h *TranscriptsHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)

	conversations, err := h.svc.ListConversations(r.Context(), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if conversations == nil {
		conversations = []string{}
	}
	api.Success(w, http.StatusOK, conversations)
}

func (h *TranscriptsHandler) ListByConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	limit := parseLimit(r, 50)
	cursor := r.URL.Query().Get("cursor")

	page, err := h.svc.ListByConversation(r.Context(), conversationID, limit, cursor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]TurnRecordResponse, 0, len(page.Items))
	for _, record := range page.Items {
		items = append(items, TurnRecordResponse{
			ID:        record.ID,
			ChannelID: record.ChannelID,
			UserID:    record.UserID,
			Role:      string(record.Role),
			Content:   record.Content,
			ToolUsage: record.ToolUsage,
			CreatedAt: record.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	api.Success(w, http.StatusOK, TranscriptPageResponse{
		Items:      items,
		NextCursor: page.Cursor,
		HasMore:    page.HasMore,
	})
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
