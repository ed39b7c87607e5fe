package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/musiclip/internal/domain"
	"github.com/timmy/musiclip/internal/logger"
)

// DefaultMaxDownloadBytes bounds a single preview download.
const DefaultMaxDownloadBytes = 20 << 20

// Config fixes the normalization parameters and download limits.
type Config struct {
	SampleRate       int
	Channels         int
	MaxDownloadBytes int64
	DownloadTimeout  time.Duration
	KeyPrefix        string
}

// Materializer downloads preview audio and normalizes it into a storable buffer.
type Materializer struct {
	client     *resty.Client
	normalizer Normalizer
	cfg        Config
}

// NewMaterializer creates a materializer using normalizer for conversion.
func NewMaterializer(cfg Config, normalizer Normalizer) *Materializer {
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = DefaultMaxDownloadBytes
	}
	client := resty.New()
	if cfg.DownloadTimeout > 0 {
		client.SetTimeout(cfg.DownloadTimeout)
	}
	return &Materializer{
		client:     client,
		normalizer: normalizer,
		cfg:        cfg,
	}
}

// Materialize fetches the descriptor's preview and returns a normalized WAV buffer.
// Download problems are KindDownload errors, conversion problems KindConversion.
func (m *Materializer) Materialize(ctx context.Context, d domain.TrackDescriptor) (*domain.MaterializedAudio, error) {
	raw, err := m.download(ctx, d)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	wav, err := m.normalizer.Normalize(ctx, raw, m.cfg.SampleRate, m.cfg.Channels)
	if err != nil {
		return nil, domain.NewError(domain.KindConversion, "normalize", err)
	}
	if len(wav) == 0 {
		return nil, domain.Errorf(domain.KindConversion, "normalize", "converter produced no output")
	}
	if err := CheckWAV(wav, m.cfg.SampleRate, m.cfg.Channels); err != nil {
		return nil, domain.NewError(domain.KindConversion, "normalize", err)
	}

	logger.With(logger.Fields{
		logger.FieldTrackID:    d.ID,
		logger.FieldSize:       len(wav),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Debug(ctx, "Normalized preview audio")

	return &domain.MaterializedAudio{
		Data:        wav,
		SampleRate:  m.cfg.SampleRate,
		Channels:    m.cfg.Channels,
		Key:         StorageKey(m.cfg.KeyPrefix, d.ID),
		ContentType: WAVContentType,
	}, nil
}

func (m *Materializer) download(ctx context.Context, d domain.TrackDescriptor) ([]byte, error) {
	const op = "download"
	if !d.HasPreview() {
		return nil, domain.Errorf(domain.KindDownload, op, "track %s has no preview locator", d.ID)
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(d.PreviewURL)
	if err != nil {
		return nil, domain.NewError(domain.KindDownload, op, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, domain.Errorf(domain.KindDownload, op, "preview returned status %d", resp.StatusCode())
	}

	limit := m.cfg.MaxDownloadBytes
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, domain.NewError(domain.KindDownload, op, fmt.Errorf("failed to read preview: %w", err))
	}
	if int64(len(data)) > limit {
		return nil, domain.NewError(domain.KindDownload, op, errors.New("preview exceeds download size limit"))
	}
	if len(data) == 0 {
		return nil, domain.Errorf(domain.KindDownload, op, "preview is empty")
	}
	return data, nil
}
