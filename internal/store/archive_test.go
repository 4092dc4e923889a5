package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlmoi/chipster/internal/pipeline"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	arch, err := OpenArchive(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { arch.Close() })
	return arch
}

func finishedRun(query string, terminal pipeline.Terminal) *pipeline.RunState {
	st := pipeline.NewRunState(query, 10)
	st.Terminal = terminal
	st.FinishedAt = time.Now()
	return st
}

func TestArchiveSaveAndList(t *testing.T) {
	arch := openTestArchive(t)
	ctx := context.Background()

	st := finishedRun("an 8-bit ALU", pipeline.TerminalSucceeded)
	st.RetryCount = 2
	st.ValidationLog = ""
	st.StorageDir = "/tmp/out"
	st.Changes.Record("alu.v", "a", "b")
	st.Changes.Record("alu_tb.v", "same", "same")

	require.NoError(t, arch.SaveRun(ctx, st))

	runs, err := arch.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, st.ID, got.ID)
	assert.Equal(t, "an 8-bit ALU", got.Query)
	assert.Equal(t, "SUCCEEDED", got.Terminal)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, 10, got.RetryBudget)
	// No-op corrections count too; the archive mirrors the full audit trail.
	assert.Equal(t, 2, got.Corrections)
}

func TestArchiveSaveIsIdempotent(t *testing.T) {
	arch := openTestArchive(t)
	ctx := context.Background()

	st := finishedRun("a uart", pipeline.TerminalBudgetExceeded)
	st.Changes.Record("uart.v", "x", "y")

	require.NoError(t, arch.SaveRun(ctx, st))
	require.NoError(t, arch.SaveRun(ctx, st))

	runs, err := arch.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Corrections)
}

func TestArchiveListsMostRecentFirst(t *testing.T) {
	arch := openTestArchive(t)
	ctx := context.Background()

	older := finishedRun("first", pipeline.TerminalSucceeded)
	older.StartedAt = time.Now().Add(-time.Hour)
	newer := finishedRun("second", pipeline.TerminalSucceeded)

	require.NoError(t, arch.SaveRun(ctx, older))
	require.NoError(t, arch.SaveRun(ctx, newer))

	runs, err := arch.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "second", runs[0].Query)
	assert.Equal(t, "first", runs[1].Query)
}

func TestArchiveConcurrentSaves(t *testing.T) {
	arch := openTestArchive(t)
	ctx := context.Background()

	// Concurrent runs share one archive handle; every save must land, with
	// no write dropped to lock contention.
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := finishedRun("query", pipeline.TerminalSucceeded)
			st.Changes.Record("alu.v", "a", "b")
			errs[i] = arch.SaveRun(ctx, st)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	runs, err := arch.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 8)
}

func TestArchiveEmptyList(t *testing.T) {
	arch := openTestArchive(t)

	runs, err := arch.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}
