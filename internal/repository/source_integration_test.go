//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelworks/kernelbot/internal/domain"
	"github.com/kernelworks/kernelbot/internal/testutil"
)

// testEmbedding builds a 1536-dim vector whose direction is controlled by
// seed, so similarity ordering in tests is predictable.
func testEmbedding(seed float32) []float32 {
	vec := make([]float32, 1536)
	vec[0] = 1
	vec[1] = seed
	return vec
}

func newTestSource(title string) *domain.Source {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.NewSource(uuid.NewString(), title, "https://example.com/"+uuid.NewString(),
		"Content about "+title, map[string]string{"kind": "test"}, now)
}

func TestSourceRepository_Create(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSourceRepository(pool)

	src := newTestSource("Hogwarts founders")
	err := repo.Create(ctx, src, testEmbedding(0.5))
	require.NoError(t, err)

	retrieved, err := repo.GetByID(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, src.ID, retrieved.ID)
	assert.Equal(t, src.Title, retrieved.Title)
	assert.Equal(t, src.URL, retrieved.URL)
	assert.Equal(t, src.Content, retrieved.Content)
	assert.Equal(t, src.Metadata, retrieved.Metadata)
}

func TestSourceRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSourceRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestSourceRepository_List(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSourceRepository(pool)

	older := newTestSource("Older source")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	older.UpdatedAt = older.CreatedAt
	require.NoError(t, repo.Create(ctx, older, nil))

	newer := newTestSource("Newer source")
	require.NoError(t, repo.Create(ctx, newer, nil))

	sources, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, newer.ID, sources[0].ID)
	assert.Equal(t, older.ID, sources[1].ID)
}

func TestSourceRepository_Update(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSourceRepository(pool)

	src := newTestSource("Original title")
	require.NoError(t, repo.Create(ctx, src, testEmbedding(0.1)))

	src.Title = "Updated title"
	src.Content = "Rewritten content."
	err := repo.Update(ctx, src, testEmbedding(0.9))
	require.NoError(t, err)

	retrieved, err := repo.GetByID(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated title", retrieved.Title)
	assert.Equal(t, "Rewritten content.", retrieved.Content)
	assert.True(t, retrieved.UpdatedAt.After(retrieved.CreatedAt))
}

func TestSourceRepository_Update_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSourceRepository(pool)

	src := newTestSource("Never created")
	err := repo.Update(ctx, src, nil)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestSourceRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSourceRepository(pool)

	src := newTestSource("Doomed source")
	require.NoError(t, repo.Create(ctx, src, nil))

	require.NoError(t, repo.Delete(ctx, src.ID))

	_, err := repo.GetByID(ctx, src.ID)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)

	err = repo.Delete(ctx, src.ID)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestSourceRepository_SearchByEmbedding(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSourceRepository(pool)

	near := newTestSource("Near match")
	require.NoError(t, repo.Create(ctx, near, testEmbedding(0.1)))

	far := newTestSource("Far match")
	require.NoError(t, repo.Create(ctx, far, testEmbedding(10)))

	unembedded := newTestSource("No embedding yet")
	require.NoError(t, repo.Create(ctx, unembedded, nil))

	results, err := repo.SearchByEmbedding(ctx, testEmbedding(0.1), 5)
	require.NoError(t, err)
	require.Len(t, results, 2, "unembedded sources must not appear in search results")

	assert.Equal(t, near.ID, results[0].Source.ID)
	assert.Equal(t, far.ID, results[1].Source.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSourceRepository_SearchByEmbedding_Limit(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSourceRepository(pool)

	for i := 0; i < 5; i++ {
		src := newTestSource("Source")
		require.NoError(t, repo.Create(ctx, src, testEmbedding(float32(i))))
	}

	results, err := repo.SearchByEmbedding(ctx, testEmbedding(0), 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSourceRepository_ListMissingEmbeddings(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSourceRepository(pool)

	embedded := newTestSource("Already embedded")
	require.NoError(t, repo.Create(ctx, embedded, testEmbedding(0.2)))

	first := newTestSource("Pending first")
	first.CreatedAt = time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Microsecond)
	first.UpdatedAt = first.CreatedAt
	require.NoError(t, repo.Create(ctx, first, nil))

	second := newTestSource("Pending second")
	require.NoError(t, repo.Create(ctx, second, nil))

	pending, err := repo.ListMissingEmbeddings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID, "oldest pending source comes first")
	assert.Equal(t, second.ID, pending[1].ID)
}

func TestSourceRepository_UpdateEmbedding(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSourceRepository(pool)

	src := newTestSource("Backfill target")
	require.NoError(t, repo.Create(ctx, src, nil))

	require.NoError(t, repo.UpdateEmbedding(ctx, src.ID, testEmbedding(0.3)))

	pending, err := repo.ListMissingEmbeddings(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	results, err := repo.SearchByEmbedding(ctx, testEmbedding(0.3), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, src.ID, results[0].Source.ID)
}

func TestSourceRepository_UpdateEmbedding_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSourceRepository(pool)

	err := repo.UpdateEmbedding(ctx, uuid.NewString(), testEmbedding(0.3))
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}
