package domain

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("ingest track 42: %w", NewError(KindDownload, "materialize", base))

	assert.Equal(t, KindDownload, KindOf(err))
	assert.True(t, errors.Is(err, ErrDownload))
	assert.False(t, errors.Is(err, ErrConversion))
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, KindUnknown, KindOf(base))

	nf := Errorf(KindNotFound, "query.similar", "track %q is not indexed", "7")
	assert.Equal(t, "query.similar: track \"7\" is not indexed", nf.Error())
	assert.Equal(t, "track \"7\" is not indexed", PublicMessage(nf))
}

func TestTrackOutcomeFail(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want TrackState
	}{
		{KindDownload, StateFailedDownload},
		{KindConversion, StateFailedConversion},
		{KindUpload, StateFailedUpload},
		{KindEmbedding, StateFailedEmbedding},
		{KindIndexWrite, StateFailedEmbedding},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			o := NewTrackOutcome(0, TrackDescriptor{ID: "1"})
			o.Advance(StateResolved)
			o.Fail(NewError(tt.kind, "op", errors.New("boom")))

			assert.Equal(t, tt.want, o.State)
			assert.True(t, o.State.IsTerminal())
			assert.True(t, o.State.IsFailed())
			assert.Equal(t, []TrackState{StatePending, StateResolved, tt.want}, o.Path)
			assert.Equal(t, tt.kind, o.ErrorKind)
		})
	}
}

func TestReportConcurrentRecord(t *testing.T) {
	r := NewIngestionReport("run", "pl")
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := NewTrackOutcome(i, TrackDescriptor{ID: fmt.Sprint(i)})
			switch i % 3 {
			case 0:
				o.Advance(StateIndexed)
			case 1:
				o.Advance(StateSkippedExisting)
			default:
				o.Advance(StateFailedUpload)
			}
			r.Record(o)
		}(i)
	}
	wg.Wait()
	r.Finish()

	require.Equal(t, 100, r.Total())
	assert.Equal(t, 34, r.Count(StateIndexed))
	assert.Equal(t, 33, r.Skipped())
	assert.Equal(t, 33, r.Failed())
	for i, e := range r.Entries {
		assert.Equal(t, i, e.Position)
	}

	run := NewIngestRun(r)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Len(t, run.Tracks, 100)
	assert.Equal(t, 34, run.Indexed)
}
