package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/tutor-billing-api/pkg/errors"
)

func TestCacheRepositoryWithoutClientFailsOpen(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	assert.False(t, repo.Enabled())

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "billing:summary", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "billing:summary", map[string]int{"a": 1}, time.Minute))

	stored, err := repo.SetNX(ctx, "reminder:e1:due_soon", time.Hour)
	require.NoError(t, err)
	assert.True(t, stored)

	generation, err := repo.Incr(ctx, "billing-generation")
	require.NoError(t, err)
	assert.Zero(t, generation)

	assert.NoError(t, repo.Delete(ctx, "k"))
	assert.NoError(t, repo.DeleteByPattern(ctx, "billing:*"))
	assert.NoError(t, repo.Close())
}
