package domain

import "time"

// RunStatus represents the status of an ingestion run in the ledger.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IngestRun is the ledger row for one ingestion run.
type IngestRun struct {
	ID          string     `gorm:"type:text;primaryKey" json:"id"`
	PlaylistID  string     `gorm:"type:text;not null;index" json:"playlist_id"`
	Status      RunStatus  `gorm:"type:text;default:completed" json:"status"`
	Total       int        `gorm:"default:0" json:"total"`
	Indexed     int        `gorm:"default:0" json:"indexed"`
	Skipped     int        `gorm:"default:0" json:"skipped"`
	Failed      int        `gorm:"default:0" json:"failed"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Tracks []IngestRunTrack `gorm:"foreignKey:RunID" json:"tracks,omitempty"`
}

func (IngestRun) TableName() string {
	return "ingest_runs"
}

// IngestRunTrack is the ledger row for one track outcome of a run.
type IngestRunTrack struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID      string    `gorm:"type:text;not null;index" json:"run_id"`
	Position   int       `json:"position"`
	TrackID    string    `gorm:"type:text;not null;index" json:"track_id"`
	State      string    `gorm:"type:text;not null" json:"state"`
	ErrorKind  string    `gorm:"type:text" json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

func (IngestRunTrack) TableName() string {
	return "ingest_run_tracks"
}

// NewIngestRun builds the ledger rows for a finished report.
func NewIngestRun(r *IngestionReport) *IngestRun {
	status := RunStatusCompleted
	if r.Err != nil {
		status = RunStatusFailed
	}
	run := &IngestRun{
		ID:         r.RunID,
		PlaylistID: r.PlaylistID,
		Status:     status,
		Total:      r.Total(),
		Indexed:    r.Count(StateIndexed),
		Skipped:    r.Skipped(),
		Failed:     r.Failed(),
		Error:      r.Error,
		StartedAt:  r.StartedAt,
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		run.CompletedAt = &finished
	}
	for _, e := range r.Entries {
		run.Tracks = append(run.Tracks, IngestRunTrack{
			RunID:      r.RunID,
			Position:   e.Position,
			TrackID:    e.TrackID,
			State:      string(e.State),
			ErrorKind:  string(e.ErrorKind),
			Error:      e.Error,
			DurationMs: e.Duration.Milliseconds(),
		})
	}
	return run
}
