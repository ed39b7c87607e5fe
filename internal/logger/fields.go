package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldRunID is the ingestion run ID
	FieldRunID = "run_id"

	// FieldPlaylistID is the playlist being ingested
	FieldPlaylistID = "playlist_id"

	// FieldTrackID is the external id of the track being processed
	FieldTrackID = "track_id"

	// FieldStage is the pipeline stage (download, convert, upload, embed, index)
	FieldStage = "stage"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// Metric fields, attached through the Entry API for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)
