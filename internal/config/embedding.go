package config

import (
	"fmt"
	"net/url"
	"time"
)

// EmbeddingConfig points at the audio/text embedding server.
type EmbeddingConfig struct {
	ServerURL string        `mapstructure:"server_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Dimension int           `mapstructure:"dimension"`
}

// Validate checks that the embedding configuration has all required fields.
func (c *EmbeddingConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("embedding: server_url is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("embedding: invalid server_url %q", c.ServerURL)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("embedding: dimension must be positive")
	}
	return nil
}

// AudioConfig fixes the normalization parameters for materialized audio.
type AudioConfig struct {
	SampleRate       int           `mapstructure:"sample_rate"`
	Channels         int           `mapstructure:"channels"`
	FFmpegPath       string        `mapstructure:"ffmpeg_path"`
	MaxDownloadBytes int64         `mapstructure:"max_download_bytes"`
	DownloadTimeout  time.Duration `mapstructure:"download_timeout"`
}

// Validate checks the normalization parameters.
func (c *AudioConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("audio: sample_rate must be positive")
	}
	if c.Channels <= 0 {
		return fmt.Errorf("audio: channels must be positive")
	}
	if c.FFmpegPath == "" {
		return fmt.Errorf("audio: ffmpeg_path is required")
	}
	if c.MaxDownloadBytes <= 0 {
		return fmt.Errorf("audio: max_download_bytes must be positive")
	}
	return nil
}
