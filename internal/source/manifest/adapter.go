package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/timmy/musiclip/internal/domain"
	"github.com/timmy/musiclip/internal/source"
)

const (
	SourceID        = "manifest"
	defaultPageSize = 50
)

// File is the on-disk playlist manifest, stored as <dir>/<playlist id>.yaml.
type File struct {
	Name   string  `yaml:"name"`
	Tracks []Track `yaml:"tracks"`
}

// Track is one manifest entry.
type Track struct {
	ID          string   `yaml:"id"`
	SongName    string   `yaml:"song_name"`
	ArtistName  string   `yaml:"artist_name"`
	AlbumName   string   `yaml:"album_name"`
	Genres      []string `yaml:"genres"`
	ReleaseDate string   `yaml:"release_date"`
	PreviewURL  string   `yaml:"preview_url"`
}

// Adapter resolves playlists from YAML manifests in a directory.
type Adapter struct {
	dir      string
	pageSize int
}

var _ source.Resolver = (*Adapter)(nil)

// NewAdapter creates a manifest resolver rooted at dir.
func NewAdapter(dir string) *Adapter {
	return &Adapter{dir: dir, pageSize: defaultPageSize}
}

// GetSourceID returns the unique identifier for this source
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// Resolve streams the tracks of <dir>/<playlistID>.yaml in file order.
func (a *Adapter) Resolve(ctx context.Context, playlistID string) (*source.TrackStream, error) {
	const op = "manifest.resolve"
	if playlistID == "" || strings.ContainsAny(playlistID, `/\`) || strings.Contains(playlistID, "..") {
		return nil, domain.Errorf(domain.KindResolution, op, "invalid playlist id %q", playlistID)
	}

	f, err := a.load(filepath.Join(a.dir, playlistID+".yaml"))
	if err != nil {
		return nil, domain.NewError(domain.KindResolution, op, err)
	}
	items := f.descriptors()

	return source.NewTrackStream(ctx, func(ctx context.Context, cursor string) ([]domain.TrackDescriptor, string, error) {
		return a.page(items, cursor)
	})
}

// ResolveTrack finds a track by id across all manifests in the directory.
func (a *Adapter) ResolveTrack(ctx context.Context, trackID string) (domain.TrackDescriptor, error) {
	const op = "manifest.resolve_track"

	paths, err := filepath.Glob(filepath.Join(a.dir, "*.yaml"))
	if err != nil {
		return domain.TrackDescriptor{}, domain.NewError(domain.KindResolution, op, err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return domain.TrackDescriptor{}, err
		}
		f, err := a.load(path)
		if err != nil {
			return domain.TrackDescriptor{}, domain.NewError(domain.KindResolution, op, err)
		}
		for _, d := range f.descriptors() {
			if d.ID == trackID {
				return d, nil
			}
		}
	}
	return domain.TrackDescriptor{}, domain.Errorf(domain.KindResolution, op, "track %s not found in any manifest", trackID)
}

func (a *Adapter) page(items []domain.TrackDescriptor, cursor string) ([]domain.TrackDescriptor, string, error) {
	// Parse cursor (index)
	start := 0
	if cursor != "" {
		var err error
		start, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
	}
	if start >= len(items) {
		return nil, "", nil
	}

	end := start + a.pageSize
	if end > len(items) {
		end = len(items)
	}

	next := ""
	if end < len(items) {
		next = strconv.Itoa(end)
	}
	return items[start:end], next, nil
}

func (a *Adapter) load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("manifest does not exist: %s", path)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filepath.Base(path), err)
	}
	for i, t := range f.Tracks {
		if strings.TrimSpace(t.ID) == "" {
			return nil, fmt.Errorf("manifest %s: track %d has no id", filepath.Base(path), i)
		}
	}
	return &f, nil
}

func (f *File) descriptors() []domain.TrackDescriptor {
	out := make([]domain.TrackDescriptor, 0, len(f.Tracks))
	for _, t := range f.Tracks {
		out = append(out, domain.TrackDescriptor{
			ID: t.ID,
			Metadata: domain.TrackMetadata{
				SongName:    t.SongName,
				ArtistName:  t.ArtistName,
				AlbumName:   t.AlbumName,
				Genres:      t.Genres,
				ReleaseDate: t.ReleaseDate,
			},
			PreviewURL: t.PreviewURL,
		})
	}
	return out
}
