package source

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/musiclip/internal/domain"
)

func pages(n, size int, failAt int) PageFetcher {
	return func(ctx context.Context, cursor string) ([]domain.TrackDescriptor, string, error) {
		page := 0
		if cursor != "" {
			fmt.Sscanf(cursor, "%d", &page)
		}
		if page == failAt {
			return nil, "", errors.New("upstream unavailable")
		}
		var items []domain.TrackDescriptor
		for i := 0; i < size; i++ {
			items = append(items, domain.TrackDescriptor{ID: fmt.Sprintf("%d-%d", page, i)})
		}
		next := ""
		if page+1 < n {
			next = fmt.Sprint(page + 1)
		}
		return items, next, nil
	}
}

func drain(t *testing.T, ctx context.Context, s *TrackStream) ([]domain.TrackDescriptor, error) {
	t.Helper()
	var out []domain.TrackDescriptor
	for {
		d, ok, err := s.Next(ctx)
		if err != nil || !ok {
			return out, err
		}
		out = append(out, d)
	}
}

func TestTrackStreamPaging(t *testing.T) {
	ctx := context.Background()
	s, err := NewTrackStream(ctx, pages(3, 2, -1))
	require.NoError(t, err)

	items, err := drain(t, ctx, s)
	require.NoError(t, err)
	require.Len(t, items, 6)
	assert.Equal(t, "0-0", items[0].ID)
	assert.Equal(t, "2-1", items[5].ID)

	_, ok, err := s.Next(ctx)
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestTrackStreamFirstPageFailureIsResolutionError(t *testing.T) {
	_, err := NewTrackStream(context.Background(), pages(3, 2, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrResolution))
}

func TestTrackStreamLaterPageFailureStopsStream(t *testing.T) {
	ctx := context.Background()
	s, err := NewTrackStream(ctx, pages(3, 2, 1))
	require.NoError(t, err)

	items, err := drain(t, ctx, s)
	require.Error(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, domain.KindResolution, domain.KindOf(err))

	_, ok, err := s.Next(ctx)
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestStaticStream(t *testing.T) {
	s := NewStaticStream([]domain.TrackDescriptor{{ID: "a"}, {ID: "b"}})
	items, err := drain(t, context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "a", items[0].ID)
	assert.Len(t, items, 2)
}
