package service

import (
	"context"

	"github.com/timmy/musiclip/internal/domain"
)

// AudioMaterializer turns a descriptor into a normalized clip.
type AudioMaterializer interface {
	Materialize(ctx context.Context, d domain.TrackDescriptor) (*domain.MaterializedAudio, error)
}

// AudioStore persists clips. Put overwrites an existing key.
type AudioStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// URLResolver maps a storage key to a fetchable URL.
type URLResolver interface {
	ResolveURL(key string) (string, error)
}

// AudioEmbedder embeds a clip.
type AudioEmbedder interface {
	EmbedAudio(ctx context.Context, filename string, wav []byte) ([]float32, error)
}

// TextEmbedder embeds a free-text query. Dimension is 0 when unknown.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// VectorStore is the vector index keyed by track id.
type VectorStore interface {
	Upsert(ctx context.Context, track *domain.IndexedTrack) error
	Exists(ctx context.Context, trackID string) (bool, error)
	GetVector(ctx context.Context, trackID string) ([]float32, error)
	Search(ctx context.Context, vector []float32, topK int, excludeID string) ([]domain.VectorHit, error)
	Delete(ctx context.Context, trackID string) error
	Info(ctx context.Context) (*domain.CollectionInfo, error)
}

// RunRecorder persists finished ingestion reports.
type RunRecorder interface {
	RecordRun(ctx context.Context, report *domain.IngestionReport) error
}

// TextEmbeddingCache caches query embeddings by text.
type TextEmbeddingCache interface {
	Get(ctx context.Context, text string) ([]float32, bool, error)
	Set(ctx context.Context, text string, vector []float32) error
}
