package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─────────────────────────────────────────────────────────────
// runningJobsGuard tests
// ─────────────────────────────────────────────────────────────

func TestRunningGuard_TryLock(t *testing.T) {
	var g runningJobsGuard

	require.True(t, g.TryLock("purge"))
	assert.False(t, g.TryLock("purge"), "second TryLock for same key must fail")
	assert.True(t, g.Running("purge"))
	require.True(t, g.TryLock("/tmp/a.csv"))

	g.Unlock("purge")
	g.Unlock("/tmp/a.csv")
	assert.False(t, g.Running("purge"))
	require.True(t, g.TryLock("purge"), "TryLock must succeed after Unlock")
	g.Unlock("purge")
}

func TestRunningGuard_WaitAll(t *testing.T) {
	var g runningJobsGuard
	require.True(t, g.TryLock("job-a"))

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()
	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Unlock("job-a")
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitAll timed out")
	}
}

// ─────────────────────────────────────────────────────────────
// MockEmitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_Changes(t *testing.T) {
	m := &MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "other", "ignored")
	m.Emit(ctx, EventDatabaseChanged, DatabaseChange{DatabaseID: "d1", Operation: "addRow", RowIDs: []string{"r1"}})

	require.Len(t, m.Events, 2)
	changes := m.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, "d1", changes[0].DatabaseID)
	assert.Equal(t, []string{"r1"}, changes[0].RowIDs)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultRowLimit, ClampLimit(0))
	assert.Equal(t, DefaultRowLimit, ClampLimit(-3))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxRowLimit, ClampLimit(1000))
}
