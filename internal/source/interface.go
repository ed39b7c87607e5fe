package source

import (
	"context"

	"github.com/timmy/musiclip/internal/domain"
)

// Resolver turns playlist and track references into track descriptors.
type Resolver interface {
	// GetSourceID returns the unique identifier for this source.
	// Parameters: none.
	// Returns:
	//   - string: stable source identifier.
	GetSourceID() string

	// Resolve opens a stream over the tracks of a playlist, in the source's order.
	// The first page is fetched before returning, so an invalid or unreachable
	// playlist fails here with a resolution error.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - playlistID: source-specific playlist identifier.
	// Returns:
	//   - *TrackStream: single-use stream of descriptors.
	//   - err: resolution error if the playlist cannot be read.
	Resolve(ctx context.Context, playlistID string) (*TrackStream, error)

	// ResolveTrack fetches the descriptor of a single track.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - trackID: source-specific track identifier.
	// Returns:
	//   - domain.TrackDescriptor: the track, possibly without a preview locator.
	//   - err: resolution error if the track cannot be read.
	ResolveTrack(ctx context.Context, trackID string) (domain.TrackDescriptor, error)
}

// PageFetcher fetches one page of descriptors starting at cursor.
// An empty cursor requests the first page; an empty nextCursor ends the stream.
type PageFetcher func(ctx context.Context, cursor string) (items []domain.TrackDescriptor, nextCursor string, err error)
