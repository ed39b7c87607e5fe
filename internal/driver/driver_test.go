package driver

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/musiclip/internal/domain"
	"github.com/timmy/musiclip/internal/service"
)

type stubIngester struct {
	playlists []string
	songs     []string
	opts      []service.IngestOptions
	err       error
	// reverse emits outcomes last track first, as a worker pool might.
	reverse   bool
}

func (s *stubIngester) report(id string, opts service.IngestOptions) *domain.IngestionReport {
	r := domain.NewIngestionReport("run-1", id)
	outcomes := []*domain.TrackOutcome{
		domain.NewTrackOutcome(0, domain.TrackDescriptor{ID: "1", Metadata: domain.TrackMetadata{SongName: "Alpha", ArtistName: "A"}}),
		domain.NewTrackOutcome(1, domain.TrackDescriptor{ID: "2", Metadata: domain.TrackMetadata{SongName: "Beta", ArtistName: "B"}}),
		domain.NewTrackOutcome(2, domain.TrackDescriptor{ID: "3", Metadata: domain.TrackMetadata{SongName: "Gamma", ArtistName: "C"}}),
	}
	outcomes[0].Advance(domain.StateIndexed)
	outcomes[1].Advance(domain.StateSkippedNoPreview)
	outcomes[2].Fail(domain.Errorf(domain.KindDownload, "audio.download", "status 404"))
	for i := range outcomes {
		o := outcomes[i]
		if s.reverse {
			o = outcomes[len(outcomes)-1-i]
		}
		r.Record(o)
		if opts.OnOutcome != nil {
			opts.OnOutcome(o)
		}
	}
	r.Finish()
	return r
}

func (s *stubIngester) Ingest(ctx context.Context, playlistID string, opts service.IngestOptions) (*domain.IngestionReport, error) {
	s.playlists = append(s.playlists, playlistID)
	s.opts = append(s.opts, opts)
	if s.err != nil {
		r := domain.NewIngestionReport("run-err", playlistID)
		r.SetError(s.err)
		r.Finish()
		return r, s.err
	}
	return s.report(playlistID, opts), nil
}

func (s *stubIngester) IngestTrack(ctx context.Context, trackID string, opts service.IngestOptions) (*domain.IngestionReport, error) {
	s.songs = append(s.songs, trackID)
	r := domain.NewIngestionReport("run-song", "")
	o := domain.NewTrackOutcome(0, domain.TrackDescriptor{ID: trackID, Metadata: domain.TrackMetadata{SongName: "Solo"}})
	o.Advance(domain.StateSkippedExisting)
	r.Record(o)
	if opts.OnOutcome != nil {
		opts.OnOutcome(o)
	}
	r.Finish()
	return r, nil
}

func TestSymbol(t *testing.T) {
	testCases := []struct {
		state domain.TrackState
		want  string
	}{
		{domain.StateIndexed, SymbolIndexed},
		{domain.StateSkippedExisting, SymbolSkipped},
		{domain.StateSkippedNoPreview, SymbolSkipped},
		{domain.StateFailedDownload, SymbolFailed},
		{domain.StateFailedEmbedding, SymbolFailed},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, Symbol(tc.state), string(tc.state))
	}
}

func TestRunPlaylistPrintsOutcomesAndTally(t *testing.T) {
	var out bytes.Buffer
	ing := &stubIngester{}

	report, err := RunPlaylist(context.Background(), &out, ing, "pl.1", service.DefaultIngestOptions())
	require.NoError(t, err)
	require.NotNil(t, report)

	text := out.String()
	assert.Contains(t, text, "[1] Alpha - A")
	assert.Contains(t, text, "✓ Indexed")
	assert.Contains(t, text, "⊙ No preview available, skipped")
	assert.Contains(t, text, "✗ failed_download: status 404")
	assert.Contains(t, text, "PROCESSING SUMMARY")
	assert.Contains(t, text, "Total tracks: 3")
	assert.Contains(t, text, "Successfully processed: 1")
	assert.Contains(t, text, "Failed: 1")
	assert.NotContains(t, text, "audio.download")
}

func TestIngestShell(t *testing.T) {
	var out bytes.Buffer
	ing := &stubIngester{}
	opts := service.IngestOptions{SkipExisting: true, OverrideExisting: true}
	in := strings.NewReader("x\n1\n\n1\npl.abc\n2\n1441164430\nquit\n")

	err := NewIngestShell(in, &out, ing, opts).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"pl.abc"}, ing.playlists)
	assert.Equal(t, []string{"1441164430"}, ing.songs)
	require.Len(t, ing.opts, 1)
	assert.True(t, ing.opts[0].OverrideExisting)

	text := out.String()
	assert.Contains(t, text, "Invalid choice")
	assert.Contains(t, text, "Please enter a valid playlist ID.")
	assert.Contains(t, text, "Playlist indexed successfully!")
	assert.Contains(t, text, "⊙ Already indexed, skipped")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(text), "Goodbye!"))
}

func TestIngestShellReportsResolutionError(t *testing.T) {
	var out bytes.Buffer
	ing := &stubIngester{err: domain.Errorf(domain.KindResolution, "applemusic.resolve", "playlist pl.x not found")}

	err := NewIngestShell(strings.NewReader("1\npl.x\n"), &out, ing, service.DefaultIngestOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Error: playlist pl.x not found")
	assert.NotContains(t, out.String(), "indexed successfully")
}

func TestParseQuery(t *testing.T) {
	testCases := []struct {
		line     string
		wantText string
		wantID   string
	}{
		{"calm piano", "calm piano", ""},
		{"[1441164430]", "", "1441164430"},
		{"  [ 42 ]  ", "", "42"},
		{"[unclosed", "[unclosed", ""},
	}
	for _, tc := range testCases {
		text, id := ParseQuery(tc.line)
		assert.Equal(t, tc.wantText, text, tc.line)
		assert.Equal(t, tc.wantID, id, tc.line)
	}
}

type stubQuerier struct {
	texts []string
	ids   []string
	topK  int
}

func (q *stubQuerier) QueryByText(ctx context.Context, text string, topK int) ([]domain.QueryResult, error) {
	q.texts = append(q.texts, text)
	q.topK = topK
	return []domain.QueryResult{{
		ID:               "7",
		CosineSimilarity: 0.91234,
		Metadata:         domain.TrackMetadata{SongName: "Seven", ArtistName: "Band", Genres: []string{"Rock", "Indie"}},
		AudioURL:         "https://cdn.example.com/music/7.wav",
	}}, nil
}

func (q *stubQuerier) QueryBySimilarity(ctx context.Context, trackID string, topK int) ([]domain.QueryResult, error) {
	q.ids = append(q.ids, trackID)
	if trackID == "missing" {
		return nil, domain.Errorf(domain.KindNotFound, "qdrant.get_vector", "track missing not found")
	}
	return nil, nil
}

func TestQueryShell(t *testing.T) {
	var out bytes.Buffer
	q := &stubQuerier{}
	in := strings.NewReader("\nupbeat guitar\n[8]\n[missing]\nexit\n")

	err := NewQueryShell(in, &out, q, 5).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"upbeat guitar"}, q.texts)
	assert.Equal(t, []string{"8", "missing"}, q.ids)
	assert.Equal(t, 5, q.topK)

	text := out.String()
	assert.Contains(t, text, "Please enter a valid query.")
	assert.Contains(t, text, "1. Seven - Band")
	assert.Contains(t, text, "Genres: Rock, Indie")
	assert.Contains(t, text, "Cosine Similarity: 0.9123")
	assert.Contains(t, text, "Searching for songs similar to ID: 8")
	assert.Contains(t, text, "No results found.")
	assert.Contains(t, text, "Error (not_found): track missing not found")
}

func TestQueryShellEndsOnEOF(t *testing.T) {
	var out bytes.Buffer
	err := NewQueryShell(strings.NewReader(""), &out, &stubQuerier{}, 10).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestPrintReportShowsRunError(t *testing.T) {
	var out bytes.Buffer
	r := domain.NewIngestionReport("run-9", "pl")
	r.SetError(errors.New("page 3 unavailable"))
	r.Finish()

	PrintReport(&out, r)
	assert.Contains(t, out.String(), "Run stopped early: page 3 unavailable")
}

func TestRunPlaylistPrintsInPlaylistOrder(t *testing.T) {
	ing := &stubIngester{reverse: true}
	var out bytes.Buffer

	_, err := RunPlaylist(context.Background(), &out, ing, "pl.1", service.DefaultIngestOptions())
	require.NoError(t, err)

	text := out.String()
	first := strings.Index(text, "[1] Alpha - A")
	second := strings.Index(text, "[2] Beta - B")
	third := strings.Index(text, "[3] Gamma - C")
	require.True(t, first >= 0 && second >= 0 && third >= 0, text)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

func TestOrderedPrinterFlushesGaps(t *testing.T) {
	var out bytes.Buffer
	p := newOrderedPrinter(&out)

	late := domain.NewTrackOutcome(2, domain.TrackDescriptor{ID: "3", Metadata: domain.TrackMetadata{SongName: "Gamma"}})
	late.Advance(domain.StateIndexed)
	p.add(late)
	assert.Empty(t, out.String())

	p.flush()
	assert.Contains(t, out.String(), "[3] Gamma")
}
