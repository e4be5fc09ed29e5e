package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"batch_transfer/internal/domain/entity"
	"batch_transfer/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openJournal(t *testing.T, dir string) *Journal {
	t.Helper()
	j, err := Open(dir, logger.NewNop())
	require.NoError(t, err)
	return j
}

func TestRecordAndRecent(t *testing.T) {
	dir := t.TempDir()
	j := openJournal(t, dir)

	base := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, j.Record(context.Background(), entity.Attempt{
			ID:         fmt.Sprintf("attempt-%d", i),
			Mode:       entity.ModeBatch,
			Account:    "0x1111111111111111111111111111111111111111",
			ChainID:    "0x1",
			TokenCount: i + 1,
			State:      entity.StateSucceeded,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
		}))
	}

	recent, err := j.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "attempt-2", recent[0].ID)
	assert.Equal(t, "attempt-1", recent[1].ID)
	assert.Equal(t, 3, recent[0].TokenCount)
	assert.Equal(t, entity.StateSucceeded, recent[0].State)
	assert.True(t, recent[0].StartedAt.Equal(base.Add(2*time.Minute)))
	require.NoError(t, j.Close())

	reopened := openJournal(t, dir)
	defer reopened.Close()
	all, err := reopened.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "attempt-0", all[2].ID)
}

func TestRecordKeepsSameInstantApart(t *testing.T) {
	j := openJournal(t, t.TempDir())
	defer j.Close()

	at := time.Now().UTC()
	for _, mode := range []entity.AttemptMode{entity.ModeBatch, entity.ModeFallback} {
		require.NoError(t, j.Record(context.Background(), entity.Attempt{ID: "same", Mode: mode, FinishedAt: at}))
	}
	recent, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, entity.ModeFallback, recent[0].Mode)
}

func TestRecordCancelled(t *testing.T) {
	j := openJournal(t, t.TempDir())
	defer j.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, j.Record(ctx, entity.Attempt{ID: "x"}), context.Canceled)
}
