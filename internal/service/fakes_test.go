package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/timmy/musiclip/internal/audio"
	"github.com/timmy/musiclip/internal/domain"
	"github.com/timmy/musiclip/internal/source"
)

type fakeResolver struct {
	playlists map[string][]domain.TrackDescriptor
	pageSize  int
	failPage  int
}

func (r *fakeResolver) GetSourceID() string { return "fake" }

func (r *fakeResolver) Resolve(ctx context.Context, playlistID string) (*source.TrackStream, error) {
	items, ok := r.playlists[playlistID]
	if !ok {
		return nil, domain.Errorf(domain.KindResolution, "fake.resolve", "playlist %s not found", playlistID)
	}
	if r.pageSize == 0 {
		return source.NewStaticStream(items), nil
	}
	return source.NewTrackStream(ctx, func(ctx context.Context, cursor string) ([]domain.TrackDescriptor, string, error) {
		page := 0
		if cursor != "" {
			fmt.Sscanf(cursor, "%d", &page)
		}
		if r.failPage > 0 && page == r.failPage {
			return nil, "", errors.New("upstream hiccup")
		}
		start := page * r.pageSize
		end := start + r.pageSize
		if end >= len(items) {
			return items[start:], "", nil
		}
		return items[start:end], fmt.Sprint(page + 1), nil
	})
}

func (r *fakeResolver) ResolveTrack(ctx context.Context, trackID string) (domain.TrackDescriptor, error) {
	for _, items := range r.playlists {
		for _, d := range items {
			if d.ID == trackID {
				return d, nil
			}
		}
	}
	return domain.TrackDescriptor{}, domain.Errorf(domain.KindResolution, "fake.resolve_track", "track %s not found", trackID)
}

type fakeMaterializer struct {
	mu    sync.Mutex
	errs  map[string]error
	calls int
}

func (m *fakeMaterializer) Materialize(ctx context.Context, d domain.TrackDescriptor) (*domain.MaterializedAudio, error) {
	m.mu.Lock()
	m.calls++
	err := m.errs[d.ID]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &domain.MaterializedAudio{
		Data:        []byte("RIFF" + d.ID),
		SampleRate:  24000,
		Channels:    1,
		Key:         audio.StorageKey("clips/", d.ID),
		ContentType: audio.WAVContentType,
	}, nil
}

func (m *fakeMaterializer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  map[string]error
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte), putErr: make(map[string]error)}
}

func (s *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putErr[key]; err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStore) ResolveURL(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return "https://cdn.example.com/music/" + key, nil
}

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

type fakeEmbedder struct {
	mu        sync.Mutex
	audioErr  map[string]error
	textErr   error
	text      map[string][]float32
	textCalls int
	dim       int
}

func (e *fakeEmbedder) Dimension() int { return e.dim }

// vectorFor derives a stable unit-ish vector from an id.
func vectorFor(id string) []float32 {
	v := make([]float32, 4)
	for i, r := range id {
		v[i%4] += float32(r % 7)
	}
	v[3] += 1
	return v
}

func (e *fakeEmbedder) EmbedAudio(ctx context.Context, filename string, wav []byte) ([]float32, error) {
	e.mu.Lock()
	err := e.audioErr[filename]
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return vectorFor(strings.TrimPrefix(string(wav), "RIFF")), nil
}

func (e *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.textCalls++
	if e.textErr != nil {
		return nil, e.textErr
	}
	if v, ok := e.text[text]; ok {
		return v, nil
	}
	return vectorFor(text), nil
}

type fakeVectors struct {
	mu        sync.Mutex
	tracks    map[string]*domain.IndexedTrack
	order     []string
	upsertErr map[string]error
	existsErr error
	deleteErr error
	invisible map[string]bool
	upserts   int

	// failExistsOn fails only the n-th Exists call (1-based) when set.
	failExistsOn int
	existsCalls  int
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{
		tracks:    make(map[string]*domain.IndexedTrack),
		upsertErr: make(map[string]error),
		invisible: make(map[string]bool),
	}
}

func (v *fakeVectors) Upsert(ctx context.Context, track *domain.IndexedTrack) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.upsertErr[track.ID]; err != nil {
		return err
	}
	v.upserts++
	if v.invisible[track.ID] {
		return nil
	}
	if _, ok := v.tracks[track.ID]; !ok {
		v.order = append(v.order, track.ID)
	}
	cp := *track
	v.tracks[track.ID] = &cp
	return nil
}

func (v *fakeVectors) Exists(ctx context.Context, trackID string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.existsCalls++
	if v.existsErr != nil {
		return false, v.existsErr
	}
	if v.failExistsOn > 0 && v.existsCalls == v.failExistsOn {
		return false, errors.New("read timeout")
	}
	_, ok := v.tracks[trackID]
	return ok, nil
}

func (v *fakeVectors) GetVector(ctx context.Context, trackID string) ([]float32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	t, ok := v.tracks[trackID]
	if !ok {
		return nil, domain.Errorf(domain.KindNotFound, "fake.get_vector", "track %s not found", trackID)
	}
	return t.Vector, nil
}

func (v *fakeVectors) Search(ctx context.Context, vector []float32, topK int, excludeID string) ([]domain.VectorHit, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var hits []domain.VectorHit
	for _, id := range v.order {
		if id == excludeID {
			continue
		}
		t := v.tracks[id]
		hits = append(hits, domain.VectorHit{
			ID:         t.ID,
			Score:      cosine(vector, t.Vector),
			Metadata:   t.Metadata,
			StorageKey: t.StorageKey,
			IndexedAt:  t.IndexedAt,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (v *fakeVectors) Delete(ctx context.Context, trackID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.deleteErr != nil {
		return v.deleteErr
	}
	delete(v.tracks, trackID)
	return nil
}

func (v *fakeVectors) Info(ctx context.Context) (*domain.CollectionInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return &domain.CollectionInfo{Name: "fake", Count: uint64(len(v.tracks)), Dimension: 4}, nil
}

func (v *fakeVectors) get(id string) (*domain.IndexedTrack, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	t, ok := v.tracks[id]
	return t, ok
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

type fakeRecorder struct {
	mu      sync.Mutex
	reports []*domain.IngestionReport
}

func (r *fakeRecorder) RecordRun(ctx context.Context, report *domain.IngestionReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]float32
	hits int
}

func (c *fakeCache) Get(ctx context.Context, text string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[text]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, text string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string][]float32)
	}
	c.data[text] = vector
	return nil
}

func track(id, song string, preview bool) domain.TrackDescriptor {
	d := domain.TrackDescriptor{
		ID: id,
		Metadata: domain.TrackMetadata{
			SongName:   song,
			ArtistName: "Artist " + id,
			AlbumName:  "Album",
			Genres:     []string{"Pop"},
		},
	}
	if preview {
		d.PreviewURL = "https://audio.example.com/" + id + ".m4a"
	}
	return d
}
