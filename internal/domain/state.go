package domain

import "time"

// TrackState is a node of the per-track ingestion state machine.
type TrackState string

const (
	StatePending      TrackState = "pending"
	StateResolved     TrackState = "resolved"
	StateMaterialized TrackState = "materialized"
	StateNormalized   TrackState = "normalized"
	StateUploaded     TrackState = "uploaded"
	StateEmbedded     TrackState = "embedded"

	StateSkippedExisting  TrackState = "skipped_existing"
	StateSkippedNoPreview TrackState = "skipped_no_preview"
	StateFailedDownload   TrackState = "failed_download"
	StateFailedConversion TrackState = "failed_conversion"
	StateFailedUpload     TrackState = "failed_upload"
	StateFailedEmbedding  TrackState = "failed_embedding"
	StateIndexed          TrackState = "indexed"
)

// TerminalStates lists the terminal states in report order.
var TerminalStates = []TrackState{
	StateIndexed,
	StateSkippedExisting,
	StateSkippedNoPreview,
	StateFailedDownload,
	StateFailedConversion,
	StateFailedUpload,
	StateFailedEmbedding,
}

// IsTerminal reports whether no further transition leaves s.
func (s TrackState) IsTerminal() bool {
	for _, t := range TerminalStates {
		if s == t {
			return true
		}
	}
	return false
}

// IsSkipped reports whether s is one of the skip outcomes.
func (s TrackState) IsSkipped() bool {
	return s == StateSkippedExisting || s == StateSkippedNoPreview
}

// IsFailed reports whether s is one of the failure outcomes.
func (s TrackState) IsFailed() bool {
	switch s {
	case StateFailedDownload, StateFailedConversion, StateFailedUpload, StateFailedEmbedding:
		return true
	}
	return false
}

// FailedStateFor maps a per-track error kind to its terminal failure state.
// Vector-store write failures land in the embedding failure class.
func FailedStateFor(kind ErrorKind) TrackState {
	switch kind {
	case KindDownload:
		return StateFailedDownload
	case KindConversion:
		return StateFailedConversion
	case KindUpload:
		return StateFailedUpload
	default:
		return StateFailedEmbedding
	}
}

// TrackOutcome is the report entry for one track.
type TrackOutcome struct {
	Position   int           `json:"position"`
	TrackID    string        `json:"track_id"`
	SongName   string        `json:"song_name"`
	ArtistName string        `json:"artist_name"`
	State      TrackState    `json:"state"`
	Path       []TrackState  `json:"path"`
	ErrorKind  ErrorKind     `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`

	Err error `json:"-"`
}

// NewTrackOutcome starts an outcome for d in the Pending state.
func NewTrackOutcome(position int, d TrackDescriptor) *TrackOutcome {
	return &TrackOutcome{
		Position:   position,
		TrackID:    d.ID,
		SongName:   d.Metadata.SongName,
		ArtistName: d.Metadata.ArtistName,
		State:      StatePending,
		Path:       []TrackState{StatePending},
	}
}

// Advance moves the outcome to s and records the transition.
func (o *TrackOutcome) Advance(s TrackState) {
	o.State = s
	o.Path = append(o.Path, s)
}

// Fail moves the outcome to the terminal failure state matching err.
func (o *TrackOutcome) Fail(err error) {
	kind := KindOf(err)
	o.Advance(FailedStateFor(kind))
	o.ErrorKind = kind
	o.Err = err
	o.Error = err.Error()
}
