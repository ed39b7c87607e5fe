package service

import (
	"context"
	"sort"
	"strings"

	"github.com/timmy/musiclip/internal/domain"
	"github.com/timmy/musiclip/internal/logger"
)

const (
	DefaultTopK = 10
	MaxTopK     = 100
)

// Query types reported alongside results.
const (
	QueryTypeText       = "text"
	QueryTypeSimilarity = "similarity"
)

// SearchConfig holds configuration for the query engine.
type SearchConfig struct {
	DefaultTopK int
	MaxTopK     int
}

// SearchService answers text and similarity queries over the catalogue.
type SearchService struct {
	embedder TextEmbedder
	vectors  VectorStore
	urls     URLResolver
	cache    TextEmbeddingCache
	logger   *logger.Logger
	cfg      SearchConfig
}

// NewSearchService creates a new search service.
// Parameters:
//   - embedder: text embedding client.
//   - vectors: vector store holding indexed tracks.
//   - urls: object storage used to build playback URLs.
//   - log: logger instance.
//   - cfg: topK bounds; zero values take the package defaults.
//
// Returns:
//   - *SearchService: initialized search service.
func NewSearchService(
	embedder TextEmbedder,
	vectors VectorStore,
	urls URLResolver,
	log *logger.Logger,
	cfg *SearchConfig,
) *SearchService {
	c := SearchConfig{DefaultTopK: DefaultTopK, MaxTopK: MaxTopK}
	if cfg != nil {
		if cfg.DefaultTopK > 0 {
			c.DefaultTopK = cfg.DefaultTopK
		}
		if cfg.MaxTopK > 0 {
			c.MaxTopK = cfg.MaxTopK
		}
	}
	if c.DefaultTopK > c.MaxTopK {
		c.DefaultTopK = c.MaxTopK
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &SearchService{
		embedder: embedder,
		vectors:  vectors,
		urls:     urls,
		logger:   log,
		cfg:      c,
	}
}

// SetCache enables caching of text embeddings.
func (s *SearchService) SetCache(c TextEmbeddingCache) {
	s.cache = c
}

// DefaultTopK returns the topK used when a caller does not pick one.
func (s *SearchService) DefaultTopK() int {
	return s.cfg.DefaultTopK
}

func (s *SearchService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

func (s *SearchService) checkTopK(op string, topK int) error {
	if topK <= 0 {
		return domain.Errorf(domain.KindInvalidArgument, op, "top_k must be positive, got %d", topK)
	}
	if topK > s.cfg.MaxTopK {
		return domain.Errorf(domain.KindInvalidArgument, op, "top_k must be at most %d, got %d", s.cfg.MaxTopK, topK)
	}
	return nil
}

// QueryByText embeds text and returns the topK nearest tracks.
func (s *SearchService) QueryByText(ctx context.Context, text string, topK int) ([]domain.QueryResult, error) {
	const op = "search.text"
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.Errorf(domain.KindInvalidArgument, op, "query text is empty")
	}
	if err := s.checkTopK(op, topK); err != nil {
		return nil, err
	}
	ctx = logger.SetComponent(ctx, "search")

	vector, err := s.embedText(ctx, text)
	if err != nil {
		return nil, ensureKind(domain.KindEmbedding, op, err)
	}

	hits, err := s.vectors.Search(ctx, vector, topK, "")
	if err != nil {
		return nil, err
	}
	results := s.rank(ctx, hits, "")

	logger.With(logger.Fields{
		logger.FieldCount: len(results),
		"top_k":           topK,
	}).Info(ctx, "Text query: query=%q", text)
	return results, nil
}

// QueryBySimilarity returns the topK tracks nearest to an indexed track,
// never including the track itself.
func (s *SearchService) QueryBySimilarity(ctx context.Context, trackID string, topK int) ([]domain.QueryResult, error) {
	const op = "search.similar"
	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return nil, domain.Errorf(domain.KindInvalidArgument, op, "song id is empty")
	}
	if err := s.checkTopK(op, topK); err != nil {
		return nil, err
	}
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "search",
		logger.FieldTrackID:   trackID,
	})

	vector, err := s.vectors.GetVector(ctx, trackID)
	if err != nil {
		return nil, err
	}

	hits, err := s.vectors.Search(ctx, vector, topK+1, trackID)
	if err != nil {
		return nil, err
	}
	results := s.rank(ctx, hits, trackID)
	if len(results) > topK {
		results = results[:topK]
	}

	logger.With(logger.Fields{
		logger.FieldCount: len(results),
		"top_k":           topK,
	}).Info(ctx, "Similarity query")
	return results, nil
}

// CollectionInfo reports the vector collection's name, size and dimension.
func (s *SearchService) CollectionInfo(ctx context.Context) (*domain.CollectionInfo, error) {
	return s.vectors.Info(ctx)
}

func (s *SearchService) embedText(ctx context.Context, text string) ([]float32, error) {
	if s.cache != nil {
		vec, ok, err := s.cache.Get(ctx, text)
		if err != nil {
			logger.CtxWarn(ctx, "Embedding cache read failed: error=%v", err)
		} else if ok {
			if dim := s.embedder.Dimension(); dim == 0 || len(vec) == dim {
				return vec, nil
			}
			logger.CtxWarn(ctx, "Ignoring cached embedding of dimension %d", len(vec))
		}
	}

	vec, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, text, vec); err != nil {
			logger.CtxWarn(ctx, "Embedding cache write failed: error=%v", err)
		}
	}
	return vec, nil
}

// rank converts store hits to results ordered by ascending distance. Hits
// whose storage key cannot be resolved are dropped.
func (s *SearchService) rank(ctx context.Context, hits []domain.VectorHit, excludeID string) []domain.QueryResult {
	type ranked struct {
		result domain.QueryResult
		hit    domain.VectorHit
	}
	items := make([]ranked, 0, len(hits))
	for _, hit := range hits {
		if excludeID != "" && hit.ID == excludeID {
			continue
		}
		url, err := s.urls.ResolveURL(hit.StorageKey)
		if err != nil {
			s.log(ctx).WithFields(logger.Fields{
				logger.FieldTrackID: hit.ID,
				"storage_key":       hit.StorageKey,
			}).WithError(err).Warn("Dropping result with unusable storage key")
			continue
		}
		d := Distance(hit.Score)
		items = append(items, ranked{
			result: domain.QueryResult{
				ID:               hit.ID,
				Distance:         d,
				CosineSimilarity: Similarity(d),
				Metadata:         hit.Metadata,
				AudioURL:         url,
			},
			hit: hit,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].result.Distance != items[j].result.Distance {
			return items[i].result.Distance < items[j].result.Distance
		}
		return items[i].hit.IndexedAt.Before(items[j].hit.IndexedAt)
	})

	results := make([]domain.QueryResult, len(items))
	for i, it := range items {
		results[i] = it.result
	}
	return results
}

// Distance converts a cosine score from the store into cosine distance.
func Distance(score float32) float64 {
	return 1 - float64(score)
}

// Similarity reports the cosine similarity 1-d, clamped to [0, 1].
func Similarity(d float64) float64 {
	sim := 1 - d
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
