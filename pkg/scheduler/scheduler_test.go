package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterRejectsInvalidSpec(t *testing.T) {
	s := New(time.UTC, zap.NewNop())

	err := s.Register("sweep", "every day please", func(context.Context, time.Time) error { return nil })

	require.Error(t, err)
	assert.Equal(t, 0, s.Entries())
}

func TestRegisterAcceptsStandardSpec(t *testing.T) {
	s := New(nil, nil)

	require.NoError(t, s.Register("sweep", "0 9 * * *", func(context.Context, time.Time) error { return nil }))
	assert.Equal(t, 1, s.Entries())
}

func TestStopCancelsJobContext(t *testing.T) {
	s := New(time.UTC, zap.NewNop())
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	assert.Error(t, s.ctx.Err())
}
