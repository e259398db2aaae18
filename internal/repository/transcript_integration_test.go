//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/testutil"
)

func newTurnRecord(conversationID string, role domain.Role, content string, at time.Time) domain.TurnRecord {
	return domain.TurnRecord{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		ChannelID:      "emulator",
		UserID:         "user-1",
		Role:           role,
		Content:        content,
		CreatedAt:      at.UTC().Truncate(time.Microsecond),
	}
}

func TestTranscriptRepository_Insert(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTranscriptRepository(pool)

	convID := uuid.NewString()
	now := time.Now()

	user := newTurnRecord(convID, domain.RoleUser, "What is 21 * 2?", now)
	assistant := newTurnRecord(convID, domain.RoleAssistant, "21 * 2 is 42.", now.Add(time.Second))
	assistant.ToolUsage = []domain.ToolUsage{{
		ToolName:   "multiply",
		Arguments:  `{"a": 21, "b": 2}`,
		Result:     "42",
		StartedAt:  now.UTC().Truncate(time.Microsecond),
		DurationMS: 3,
	}}

	err := repo.Insert(ctx, user, assistant)
	require.NoError(t, err)

	page, err := repo.ListByConversation(ctx, convID, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	assert.Equal(t, user.ID, page.Items[0].ID)
	assert.Equal(t, domain.RoleUser, page.Items[0].Role)
	assert.Equal(t, assistant.ID, page.Items[1].ID)
	assert.Equal(t, domain.RoleAssistant, page.Items[1].Role)

	require.Len(t, page.Items[1].ToolUsage, 1)
	assert.Equal(t, "multiply", page.Items[1].ToolUsage[0].ToolName)
	assert.Equal(t, "42", page.Items[1].ToolUsage[0].Result)
}

func TestTranscriptRepository_ListByConversation_Pagination(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTranscriptRepository(pool)

	convID := uuid.NewString()
	base := time.Now().Add(-time.Minute)

	var inserted []domain.TurnRecord
	for i := 0; i < 5; i++ {
		rec := newTurnRecord(convID, domain.RoleUser, fmt.Sprintf("message %d", i), base.Add(time.Duration(i)*time.Second))
		inserted = append(inserted, rec)
	}
	require.NoError(t, repo.Insert(ctx, inserted...))

	page1, err := repo.ListByConversation(ctx, convID, 2, "")
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	assert.True(t, page1.HasMore)
	assert.NotEmpty(t, page1.Cursor)
	assert.Equal(t, inserted[0].ID, page1.Items[0].ID)
	assert.Equal(t, inserted[1].ID, page1.Items[1].ID)

	page2, err := repo.ListByConversation(ctx, convID, 2, page1.Cursor)
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	assert.True(t, page2.HasMore)
	assert.Equal(t, inserted[2].ID, page2.Items[0].ID)
	assert.Equal(t, inserted[3].ID, page2.Items[1].ID)

	page3, err := repo.ListByConversation(ctx, convID, 2, page2.Cursor)
	require.NoError(t, err)
	require.Len(t, page3.Items, 1)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.Cursor)
	assert.Equal(t, inserted[4].ID, page3.Items[0].ID)
}

func TestTranscriptRepository_ListByConversation_Empty(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTranscriptRepository(pool)

	page, err := repo.ListByConversation(ctx, uuid.NewString(), 10, "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.Cursor)
}

func TestTranscriptRepository_ListByConversation_InvalidCursor(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTranscriptRepository(pool)

	_, err := repo.ListByConversation(ctx, uuid.NewString(), 10, "not-a-cursor")
	assert.Error(t, err)
}

func TestTranscriptRepository_ListConversations(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTranscriptRepository(pool)

	older := uuid.NewString()
	newer := uuid.NewString()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, repo.Insert(ctx,
		newTurnRecord(older, domain.RoleUser, "hello", base),
		newTurnRecord(older, domain.RoleAssistant, "hi", base.Add(time.Second)),
		newTurnRecord(newer, domain.RoleUser, "hello again", base.Add(time.Minute)),
	))

	ids, err := repo.ListConversations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, newer, ids[0], "most recently active conversation comes first")
	assert.Equal(t, older, ids[1])
}

func TestTranscriptRepository_ListConversations_Limit(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTranscriptRepository(pool)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := newTurnRecord(uuid.NewString(), domain.RoleUser, "hi", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.Insert(ctx, rec))
	}

	ids, err := repo.ListConversations(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}
