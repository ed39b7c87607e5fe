package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/musiclip/internal/domain"
)

// EmbeddingService talks to the audio/text embedding server.
// Both modalities land in the same vector space.
type EmbeddingService struct {
	client    *resty.Client
	dimension int
}

// EmbeddingConfig holds configuration for the embedding client
type EmbeddingConfig struct {
	ServerURL string
	Timeout   time.Duration
	Dimension int
}

// NewEmbeddingService creates a new embedding client
func NewEmbeddingService(cfg *EmbeddingConfig) *EmbeddingService {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.ServerURL, "/"))
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &EmbeddingService{
		client:    client,
		dimension: cfg.Dimension,
	}
}

// Dimension returns the expected vector dimension, 0 when unchecked.
func (s *EmbeddingService) Dimension() int {
	return s.dimension
}

type embedTextRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Dimension int       `json:"dimension"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// EmbeddingHealth mirrors the server's /health payload.
type EmbeddingHealth struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Device      string `json:"device"`
}

// EmbeddingInfo mirrors the server's /info payload.
type EmbeddingInfo struct {
	ModelName          string `json:"model_name"`
	Device             string `json:"device"`
	EmbeddingDimension int    `json:"embedding_dimension"`
}

// EmbedText embeds a free-text description.
func (s *EmbeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	const op = "embedding.text"

	var resp embedResponse
	var apiErr errorResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(embedTextRequest{Text: text}).
		SetResult(&resp).
		SetError(&apiErr).
		Post("/embed/text")
	if err != nil {
		return nil, domain.NewError(domain.KindEmbedding, op, fmt.Errorf("failed to call embedding server: %w", err))
	}
	if err := checkStatus(op, httpResp, apiErr); err != nil {
		return nil, err
	}
	return s.checkVector(op, resp)
}

// EmbedAudio embeds a normalized WAV clip. filename is only used as the
// multipart file name.
func (s *EmbeddingService) EmbedAudio(ctx context.Context, filename string, wav []byte) ([]float32, error) {
	const op = "embedding.audio"
	if len(wav) == 0 {
		return nil, domain.Errorf(domain.KindEmbedding, op, "empty audio payload")
	}

	var resp embedResponse
	var apiErr errorResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(wav)).
		SetResult(&resp).
		SetError(&apiErr).
		Post("/embed/audio")
	if err != nil {
		return nil, domain.NewError(domain.KindEmbedding, op, fmt.Errorf("failed to call embedding server: %w", err))
	}
	if err := checkStatus(op, httpResp, apiErr); err != nil {
		return nil, err
	}
	return s.checkVector(op, resp)
}

// Health queries the server's liveness endpoint.
func (s *EmbeddingService) Health(ctx context.Context) (*EmbeddingHealth, error) {
	const op = "embedding.health"

	var health EmbeddingHealth
	var apiErr errorResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetResult(&health).
		SetError(&apiErr).
		Get("/health")
	if err != nil {
		return nil, domain.NewError(domain.KindEmbedding, op, err)
	}
	if err := checkStatus(op, httpResp, apiErr); err != nil {
		return nil, err
	}
	return &health, nil
}

// Info returns the model name, device and output dimension.
func (s *EmbeddingService) Info(ctx context.Context) (*EmbeddingInfo, error) {
	const op = "embedding.info"

	var info EmbeddingInfo
	var apiErr errorResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetResult(&info).
		SetError(&apiErr).
		Get("/info")
	if err != nil {
		return nil, domain.NewError(domain.KindEmbedding, op, err)
	}
	if err := checkStatus(op, httpResp, apiErr); err != nil {
		return nil, err
	}
	return &info, nil
}

func checkStatus(op string, resp *resty.Response, apiErr errorResponse) error {
	if resp.StatusCode() == http.StatusOK {
		return nil
	}
	if apiErr.Detail != "" {
		return domain.Errorf(domain.KindEmbedding, op, "embedding server error (status %d): %s", resp.StatusCode(), apiErr.Detail)
	}
	return domain.Errorf(domain.KindEmbedding, op, "embedding server error: status %d", resp.StatusCode())
}

func (s *EmbeddingService) checkVector(op string, resp embedResponse) ([]float32, error) {
	if len(resp.Embedding) == 0 {
		return nil, domain.Errorf(domain.KindEmbedding, op, "no embedding returned")
	}
	if s.dimension > 0 && len(resp.Embedding) != s.dimension {
		return nil, domain.Errorf(domain.KindEmbedding, op, "unexpected embedding dimension: got %d, expected %d", len(resp.Embedding), s.dimension)
	}
	return resp.Embedding, nil
}
