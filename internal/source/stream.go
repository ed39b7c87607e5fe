package source

import (
	"context"

	"github.com/timmy/musiclip/internal/domain"
)

// TrackStream is a lazy, finite, single-use sequence of track descriptors.
// Pages are fetched on demand. It is not safe for concurrent use.
type TrackStream struct {
	fetch  PageFetcher
	buf    []domain.TrackDescriptor
	cursor string
	done   bool
	err    error
}

// NewTrackStream fetches the first page eagerly and returns a stream over the rest.
func NewTrackStream(ctx context.Context, fetch PageFetcher) (*TrackStream, error) {
	s := &TrackStream{fetch: fetch}
	if err := s.fill(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStream returns a stream over an in-memory list.
func NewStaticStream(items []domain.TrackDescriptor) *TrackStream {
	buf := make([]domain.TrackDescriptor, len(items))
	copy(buf, items)
	return &TrackStream{buf: buf, done: true}
}

// Next returns the next descriptor. ok is false once the stream is exhausted
// or a page fetch failed; the failure is returned once and the stream then
// stays exhausted.
func (s *TrackStream) Next(ctx context.Context) (domain.TrackDescriptor, bool, error) {
	for len(s.buf) == 0 {
		if s.done || s.err != nil {
			return domain.TrackDescriptor{}, false, nil
		}
		if err := ctx.Err(); err != nil {
			return domain.TrackDescriptor{}, false, err
		}
		if err := s.fill(ctx); err != nil {
			s.err = err
			return domain.TrackDescriptor{}, false, err
		}
	}
	d := s.buf[0]
	s.buf = s.buf[1:]
	return d, true, nil
}

func (s *TrackStream) fill(ctx context.Context) error {
	items, next, err := s.fetch(ctx, s.cursor)
	if err != nil {
		if domain.KindOf(err) == domain.KindUnknown {
			err = domain.NewError(domain.KindResolution, "fetch page", err)
		}
		return err
	}
	s.buf = append(s.buf, items...)
	s.cursor = next
	if next == "" {
		s.done = true
	}
	return nil
}
