package applemusic

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/musiclip/internal/domain"
	"github.com/timmy/musiclip/internal/logger"
	"github.com/timmy/musiclip/internal/source"
)

const (
	SourceID       = "applemusic"
	DefaultBaseURL = "https://api.music.apple.com/v1"

	unknownField = "Unknown"
)

// Config configures the Apple Music catalog resolver.
type Config struct {
	BaseURL    string
	Storefront string
	Timeout    time.Duration
}

// Resolver implements source.Resolver over the Apple Music catalog API.
type Resolver struct {
	client     *resty.Client
	tokens     *TokenSource
	baseURL    *url.URL
	storefront string
}

var _ source.Resolver = (*Resolver)(nil)

// NewResolver creates a catalog resolver authenticated by tokens.
func NewResolver(cfg Config, tokens *TokenSource) (*Resolver, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Storefront == "" {
		cfg.Storefront = "us"
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid apple music base url: %w", err)
	}

	client := resty.New().
		SetBaseURL(base.String()).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Resolver{
		client:     client,
		tokens:     tokens,
		baseURL:    base,
		storefront: cfg.Storefront,
	}, nil
}

// GetSourceID returns the unique identifier for this source
func (r *Resolver) GetSourceID() string {
	return SourceID
}

// catalog API response structures
type songAttributes struct {
	Name        string   `json:"name"`
	ArtistName  string   `json:"artistName"`
	AlbumName   string   `json:"albumName"`
	GenreNames  []string `json:"genreNames"`
	ReleaseDate string   `json:"releaseDate"`
	Previews    []struct {
		URL string `json:"url"`
	} `json:"previews"`
}

type songResource struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes songAttributes `json:"attributes"`
}

type trackPage struct {
	Next string         `json:"next"`
	Data []songResource `json:"data"`
}

type playlistResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Relationships struct {
			Tracks trackPage `json:"tracks"`
		} `json:"relationships"`
	} `json:"data"`
}

type songResponse struct {
	Data []songResource `json:"data"`
}

type errorResponse struct {
	Errors []struct {
		Status string `json:"status"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// Resolve opens a paged stream over the tracks of a catalog playlist.
func (r *Resolver) Resolve(ctx context.Context, playlistID string) (*source.TrackStream, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, domain.Errorf(domain.KindResolution, "applemusic.resolve", "playlist id is empty")
	}
	return source.NewTrackStream(ctx, func(ctx context.Context, cursor string) ([]domain.TrackDescriptor, string, error) {
		if cursor == "" {
			return r.fetchPlaylist(ctx, playlistID)
		}
		return r.fetchTracks(ctx, cursor)
	})
}

// ResolveTrack fetches a single catalog song.
func (r *Resolver) ResolveTrack(ctx context.Context, trackID string) (domain.TrackDescriptor, error) {
	const op = "applemusic.resolve_track"
	if strings.TrimSpace(trackID) == "" {
		return domain.TrackDescriptor{}, domain.Errorf(domain.KindResolution, op, "song id is empty")
	}

	var resp songResponse
	if err := r.get(ctx, op, "/catalog/{storefront}/songs/{id}", map[string]string{"id": trackID}, nil, &resp); err != nil {
		return domain.TrackDescriptor{}, err
	}
	if len(resp.Data) == 0 {
		return domain.TrackDescriptor{}, domain.Errorf(domain.KindResolution, op, "song %s not found", trackID)
	}
	return toDescriptor(resp.Data[0]), nil
}

func (r *Resolver) fetchPlaylist(ctx context.Context, playlistID string) ([]domain.TrackDescriptor, string, error) {
	const op = "applemusic.playlist"

	var resp playlistResponse
	query := map[string]string{"include": "tracks"}
	if err := r.get(ctx, op, "/catalog/{storefront}/playlists/{id}", map[string]string{"id": playlistID}, query, &resp); err != nil {
		return nil, "", err
	}
	if len(resp.Data) == 0 {
		return nil, "", domain.Errorf(domain.KindResolution, op, "playlist %s not found", playlistID)
	}

	tracks := resp.Data[0].Relationships.Tracks
	logger.With(logger.Fields{
		logger.FieldPlaylistID: playlistID,
		logger.FieldCount:      len(tracks.Data),
	}).Debug(ctx, "Fetched playlist first page")

	next, err := r.resolveNext(tracks.Next)
	if err != nil {
		return nil, "", domain.NewError(domain.KindResolution, op, err)
	}
	return toDescriptors(tracks.Data), next, nil
}

func (r *Resolver) fetchTracks(ctx context.Context, pageURL string) ([]domain.TrackDescriptor, string, error) {
	const op = "applemusic.tracks"

	var page trackPage
	if err := r.get(ctx, op, pageURL, nil, nil, &page); err != nil {
		return nil, "", err
	}
	next, err := r.resolveNext(page.Next)
	if err != nil {
		return nil, "", domain.NewError(domain.KindResolution, op, err)
	}
	return toDescriptors(page.Data), next, nil
}

func (r *Resolver) get(ctx context.Context, op, path string, pathParams, query map[string]string, result interface{}) error {
	token, err := r.tokens.Token()
	if err != nil {
		return domain.NewError(domain.KindResolution, op, err)
	}

	var apiErr errorResponse
	req := r.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("storefront", r.storefront).
		SetResult(result).
		SetError(&apiErr)
	if pathParams != nil {
		req.SetPathParams(pathParams)
	}
	if query != nil {
		req.SetQueryParams(query)
	}

	httpResp, err := req.Get(path)
	if err != nil {
		return domain.NewError(domain.KindResolution, op, fmt.Errorf("failed to call Apple Music API: %w", err))
	}

	switch httpResp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.Errorf(domain.KindResolution, op, "developer token rejected: status %d", httpResp.StatusCode())
	case http.StatusNotFound:
		return domain.Errorf(domain.KindResolution, op, "catalog resource not found")
	}
	if len(apiErr.Errors) > 0 && apiErr.Errors[0].Detail != "" {
		return domain.Errorf(domain.KindResolution, op, "Apple Music API error: %s", apiErr.Errors[0].Detail)
	}
	return domain.Errorf(domain.KindResolution, op, "Apple Music API error: status %d", httpResp.StatusCode())
}

// resolveNext turns the API's root-relative next link into an absolute URL.
func (r *Resolver) resolveNext(next string) (string, error) {
	if next == "" {
		return "", nil
	}
	ref, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("invalid next link %q: %w", next, err)
	}
	return r.baseURL.ResolveReference(ref).String(), nil
}

func toDescriptors(songs []songResource) []domain.TrackDescriptor {
	out := make([]domain.TrackDescriptor, 0, len(songs))
	for _, s := range songs {
		out = append(out, toDescriptor(s))
	}
	return out
}

func toDescriptor(s songResource) domain.TrackDescriptor {
	a := s.Attributes
	d := domain.TrackDescriptor{
		ID: s.ID,
		Metadata: domain.TrackMetadata{
			SongName:    orUnknown(a.Name),
			ArtistName:  orUnknown(a.ArtistName),
			AlbumName:   orUnknown(a.AlbumName),
			Genres:      a.GenreNames,
			ReleaseDate: a.ReleaseDate,
		},
	}
	if len(a.Previews) > 0 {
		d.PreviewURL = a.Previews[0].URL
	}
	return d
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownField
	}
	return s
}
