package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/musiclip/internal/config"
	"github.com/timmy/musiclip/internal/domain"
)

func newTestRunRepo(t *testing.T) *RunRepository {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{Driver: "sqlite", DSN: "file:" + t.Name() + "?mode=memory&cache=shared"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewRunRepository(db)
}

func report(runID string, states ...domain.TrackState) *domain.IngestionReport {
	r := domain.NewIngestionReport(runID, "pl."+runID)
	for i, s := range states {
		o := domain.NewTrackOutcome(i, domain.TrackDescriptor{ID: fmt.Sprint(i)})
		if s.IsFailed() {
			o.Fail(domain.Errorf(domain.KindDownload, "download", "status 404"))
		} else {
			o.Advance(s)
		}
		r.Record(o)
	}
	r.Finish()
	return r
}

func TestRunRepositoryRecordAndGet(t *testing.T) {
	repo := newTestRunRepo(t)
	ctx := context.Background()

	rep := report("run-1", domain.StateIndexed, domain.StateFailedDownload, domain.StateSkippedNoPreview)
	require.NoError(t, repo.RecordRun(ctx, rep))

	run, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 1, run.Indexed)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.Skipped)
	require.Len(t, run.Tracks, 3)
	assert.Equal(t, "failed_download", run.Tracks[1].State)
	assert.Equal(t, "download", run.Tracks[1].ErrorKind)

	_, err = repo.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRunRepositoryListRuns(t *testing.T) {
	repo := newTestRunRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RecordRun(ctx, report(fmt.Sprintf("run-%d", i), domain.StateIndexed)))
	}
	failed := report("run-fatal")
	failed.SetError(domain.Errorf(domain.KindResolution, "resolve", "playlist not found"))
	require.NoError(t, repo.RecordRun(ctx, failed))

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	assert.Equal(t, "run-fatal", runs[0].ID)
	assert.Equal(t, domain.RunStatusFailed, runs[0].Status)
	assert.Empty(t, runs[0].Tracks)

	runs, err = repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
