package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/musiclip/internal/domain"
)

func seedVectors(t *testing.T, vectors *fakeVectors, tracks map[string][]float32, order []string) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range order {
		require.NoError(t, vectors.Upsert(context.Background(), &domain.IndexedTrack{
			ID:         id,
			Vector:     tracks[id],
			Metadata:   domain.TrackMetadata{SongName: "Song " + id, ArtistName: "Artist"},
			StorageKey: key(id),
			IndexedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func newSearchFixture(t *testing.T) (*SearchService, *fakeEmbedder, *fakeVectors) {
	t.Helper()
	vectors := newFakeVectors()
	seedVectors(t, vectors, map[string][]float32{
		"a": {1, 0, 0, 0},
		"b": {0.9, 0.1, 0, 0},
		"c": {0, 1, 0, 0},
		"d": {-1, 0, 0, 0},
	}, []string{"a", "b", "c", "d"})
	embedder := &fakeEmbedder{text: map[string][]float32{
		"bright": {1, 0, 0, 0},
	}}
	svc := NewSearchService(embedder, vectors, newFakeStore(), nil, &SearchConfig{MaxTopK: 50})
	return svc, embedder, vectors
}

func TestQueryByText(t *testing.T) {
	svc, _, _ := newSearchFixture(t)

	results, err := svc.QueryByText(context.Background(), "  bright ", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"a", "b", "c"}, []string{results[0].ID, results[1].ID, results[2].ID})
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
	assert.InDelta(t, 1.0, results[0].CosineSimilarity, 1e-6)
	assert.InDelta(t, 0.0, results[2].CosineSimilarity, 1e-6)
	assert.Equal(t, "https://cdn.example.com/music/"+key("a"), results[0].AudioURL)
	assert.Equal(t, "Song a", results[0].Metadata.SongName)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
		assert.GreaterOrEqual(t, results[i-1].CosineSimilarity, results[i].CosineSimilarity)
	}
}

func TestQueryByTextOppositeVectorIsZeroSimilarity(t *testing.T) {
	svc, _, _ := newSearchFixture(t)

	results, err := svc.QueryByText(context.Background(), "bright", 4)
	require.NoError(t, err)
	require.Len(t, results, 4)
	last := results[3]
	assert.Equal(t, "d", last.ID)
	assert.InDelta(t, 2.0, last.Distance, 1e-6)
	assert.InDelta(t, 0.0, last.CosineSimilarity, 1e-6)
}

func TestQueryInvalidArguments(t *testing.T) {
	svc, embedder, _ := newSearchFixture(t)
	ctx := context.Background()

	testCases := []struct {
		name string
		run  func() error
	}{
		{"empty text", func() error { _, err := svc.QueryByText(ctx, "   ", 5); return err }},
		{"zero top_k", func() error { _, err := svc.QueryByText(ctx, "bright", 0); return err }},
		{"negative top_k", func() error { _, err := svc.QueryByText(ctx, "bright", -1); return err }},
		{"top_k above max", func() error { _, err := svc.QueryByText(ctx, "bright", 51); return err }},
		{"empty id", func() error { _, err := svc.QueryBySimilarity(ctx, "", 5); return err }},
		{"similar zero top_k", func() error { _, err := svc.QueryBySimilarity(ctx, "a", 0); return err }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
		})
	}
	assert.Equal(t, 0, embedder.textCalls)
}

func TestQueryByTextEmbeddingFailure(t *testing.T) {
	svc, embedder, _ := newSearchFixture(t)
	embedder.textErr = errors.New("connection refused")

	_, err := svc.QueryByText(context.Background(), "bright", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbedding))
}

func TestQueryBySimilarityExcludesSelf(t *testing.T) {
	svc, _, _ := newSearchFixture(t)

	results, err := svc.QueryBySimilarity(context.Background(), "a", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	for _, r := range results {
		assert.NotEqual(t, "a", r.ID)
	}

	all, err := svc.QueryBySimilarity(context.Background(), "a", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestQueryBySimilarityNotFound(t *testing.T) {
	svc, _, _ := newSearchFixture(t)

	_, err := svc.QueryBySimilarity(context.Background(), "zzz", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestQueryDropsMalformedStorageKey(t *testing.T) {
	svc, _, vectors := newSearchFixture(t)
	require.NoError(t, vectors.Upsert(context.Background(), &domain.IndexedTrack{
		ID:         "bad",
		Vector:     []float32{1, 0, 0, 0},
		StorageKey: "",
	}))

	results, err := svc.QueryByText(context.Background(), "bright", 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "bad", r.ID)
	}
	assert.Len(t, results, 4)
}

func TestRankBreaksTiesByIndexedAt(t *testing.T) {
	svc, _, _ := newSearchFixture(t)
	early := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	results := svc.rank(context.Background(), []domain.VectorHit{
		{ID: "late", Score: 0.5, StorageKey: key("late"), IndexedAt: late},
		{ID: "first", Score: 0.9, StorageKey: key("first"), IndexedAt: late},
		{ID: "early", Score: 0.5, StorageKey: key("early"), IndexedAt: early},
	}, "")

	require.Len(t, results, 3)
	assert.Equal(t, []string{"first", "early", "late"}, []string{results[0].ID, results[1].ID, results[2].ID})
}

func TestQueryByTextUsesCache(t *testing.T) {
	svc, embedder, _ := newSearchFixture(t)
	cache := &fakeCache{}
	svc.SetCache(cache)
	ctx := context.Background()

	_, err := svc.QueryByText(ctx, "bright", 3)
	require.NoError(t, err)
	_, err = svc.QueryByText(ctx, "bright", 3)
	require.NoError(t, err)

	assert.Equal(t, 1, embedder.textCalls)
	assert.Equal(t, 1, cache.hits)
}

func TestQueryByTextIgnoresCachedVectorOfWrongDimension(t *testing.T) {
	svc, embedder, _ := newSearchFixture(t)
	embedder.dim = 4
	cache := &fakeCache{data: map[string][]float32{"bright": {1, 0}}}
	svc.SetCache(cache)

	results, err := svc.QueryByText(context.Background(), "bright", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, 1, embedder.textCalls)
	assert.Equal(t, []float32{1, 0, 0, 0}, cache.data["bright"])
}

func TestSimilarityTransform(t *testing.T) {
	testCases := []struct {
		score float32
		want  float64
	}{
		{1, 1},
		{0.5, 0.5},
		{0, 0},
		{-1, 0},
	}
	for _, tc := range testCases {
		assert.InDelta(t, tc.want, Similarity(Distance(tc.score)), 1e-9)
	}
	assert.Equal(t, 0.0, Similarity(3))
	assert.Equal(t, 1.0, Similarity(-0.5))
}

func TestSearchServiceTopKDefaults(t *testing.T) {
	svc := NewSearchService(nil, nil, nil, nil, nil)
	assert.Equal(t, DefaultTopK, svc.DefaultTopK())

	svc = NewSearchService(nil, nil, nil, nil, &SearchConfig{DefaultTopK: 20, MaxTopK: 5})
	assert.Equal(t, 5, svc.DefaultTopK())
}
