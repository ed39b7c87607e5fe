package domain

import "time"

// TrackMetadata is the display metadata copied from the provider onto the catalogue record.
type TrackMetadata struct {
	SongName    string   `json:"song_name"`
	ArtistName  string   `json:"artist_name"`
	AlbumName   string   `json:"album_name"`
	Genres      []string `json:"genres"`
	ReleaseDate string   `json:"release_date,omitempty"`
}

// TrackDescriptor identifies one catalogue candidate before ingestion.
type TrackDescriptor struct {
	ID         string        `json:"id"`
	Metadata   TrackMetadata `json:"metadata"`
	PreviewURL string        `json:"preview_url,omitempty"`
}

// HasPreview reports whether the descriptor carries a preview-audio locator.
func (d TrackDescriptor) HasPreview() bool {
	return d.PreviewURL != ""
}

// MaterializedAudio is a normalized audio buffer ready for upload and embedding.
type MaterializedAudio struct {
	Data        []byte
	SampleRate  int
	Channels    int
	Key         string
	ContentType string
}

// Size returns the buffer length in bytes.
func (a *MaterializedAudio) Size() int64 {
	return int64(len(a.Data))
}

// IndexedTrack is the durable catalogue record held by the vector store.
type IndexedTrack struct {
	ID         string        `json:"id"`
	Vector     []float32     `json:"-"`
	Metadata   TrackMetadata `json:"metadata"`
	StorageKey string        `json:"storage_key"`
	IndexedAt  time.Time     `json:"indexed_at"`
}

// VectorHit is one nearest-neighbor candidate as returned by the vector store.
// Score is the store's cosine score, higher is closer.
type VectorHit struct {
	ID         string
	Score      float32
	Metadata   TrackMetadata
	StorageKey string
	IndexedAt  time.Time
}

// QueryResult is one ranked match returned to callers.
type QueryResult struct {
	ID               string        `json:"id"`
	Distance         float64       `json:"distance"`
	CosineSimilarity float64       `json:"cosine_similarity"`
	Metadata         TrackMetadata `json:"metadata"`
	AudioURL         string        `json:"audio_url"`
}

// CollectionInfo describes the vector collection backing the catalogue.
type CollectionInfo struct {
	Name      string `json:"name"`
	Count     uint64 `json:"count"`
	Dimension int    `json:"dimension"`
}
