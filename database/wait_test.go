package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForDBRetriesUntilReady(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	connect := func() (Database, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection refused")
		}
		return NewPebbleDatabase(&PebbleConfig{DataDir: dir})
	}

	db, err := WaitForDB(context.Background(), connect, 5, time.Millisecond)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, 3, calls)
}

func TestWaitForDBGivesUp(t *testing.T) {
	calls := 0
	connect := func() (Database, error) {
		calls++
		return nil, errors.New("connection refused")
	}

	_, err := WaitForDB(context.Background(), connect, 3, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestWaitForDBHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WaitForDB(ctx, func() (Database, error) {
		return nil, errors.New("down")
	}, 10, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
