package domain

import (
	"sort"
	"sync"
	"time"
)

// IngestionReport tallies the terminal state of every track processed by one run.
// Record is safe for concurrent use.
type IngestionReport struct {
	RunID      string             `json:"run_id"`
	PlaylistID string             `json:"playlist_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Counts     map[TrackState]int `json:"counts"`
	Entries    []*TrackOutcome    `json:"entries"`
	Error      string             `json:"error,omitempty"`

	Err error `json:"-"`

	mu sync.Mutex
}

// NewIngestionReport creates an empty report for one run.
func NewIngestionReport(runID, playlistID string) *IngestionReport {
	return &IngestionReport{
		RunID:      runID,
		PlaylistID: playlistID,
		StartedAt:  time.Now(),
		Counts:     make(map[TrackState]int),
	}
}

// Record adds a terminal outcome to the tally.
func (r *IngestionReport) Record(o *TrackOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counts[o.State]++
	r.Entries = append(r.Entries, o)
}

// SetError attaches the top-level run error.
func (r *IngestionReport) SetError(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
	r.Error = err.Error()
}

// Finish stamps the end time and puts entries back in playlist order.
func (r *IngestionReport) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
	sort.SliceStable(r.Entries, func(i, j int) bool {
		return r.Entries[i].Position < r.Entries[j].Position
	})
}

// Count returns the number of tracks that ended in state s.
func (r *IngestionReport) Count(s TrackState) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Counts[s]
}

// Total returns the number of tracks that reached a terminal state.
func (r *IngestionReport) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Entries)
}

// Skipped returns the number of skipped tracks of either kind.
func (r *IngestionReport) Skipped() int {
	return r.Count(StateSkippedExisting) + r.Count(StateSkippedNoPreview)
}

// Failed returns the number of failed tracks.
func (r *IngestionReport) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for s, c := range r.Counts {
		if s.IsFailed() {
			n += c
		}
	}
	return n
}

// Duration returns the wall time of the run.
func (r *IngestionReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
