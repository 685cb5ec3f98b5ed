package memory

import (
	"context"
	"testing"
	"time"

	"video-rag-be/internal/entity"
	"video-rag-be/internal/repository/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionRepository_NewestFirstAndCapped(t *testing.T) {
	repo := NewInteractionRepository(time.Hour, 3)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &entity.Interaction{
			VideoId:   "vid",
			Answer:    string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &entity.Interaction{VideoId: "other", Answer: "x"}))

	got, err := repo.FindRecentByVideo(ctx, "vid", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e", got[0].Answer)
	assert.Equal(t, "c", got[2].Answer)

	got, err = repo.FindRecentByVideo(ctx, "vid", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestInteractionRepository_AssignsIdentity(t *testing.T) {
	repo := NewInteractionRepository(time.Hour, 0)
	in := &entity.Interaction{VideoId: "vid"}

	require.NoError(t, repo.Create(context.Background(), in))

	assert.NotEmpty(t, in.Id.String())
	assert.False(t, in.CreatedAt.IsZero())

	got, err := repo.FindRecentByVideo(context.Background(), "missing", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInteractionRepository_RejectsDuplicateSession(t *testing.T) {
	repo := NewInteractionRepository(time.Hour, 10)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.Interaction{SessionId: "abc123", VideoId: "vid"}))
	err := repo.Create(ctx, &entity.Interaction{SessionId: "abc123", VideoId: "other"})
	assert.ErrorIs(t, err, contract.ErrDuplicateSession)

	list, err := repo.FindRecentByVideo(ctx, "other", 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
