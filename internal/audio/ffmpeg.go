package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Normalizer converts arbitrary audio bytes to WAV with fixed parameters.
type Normalizer interface {
	Normalize(ctx context.Context, input []byte, sampleRate, channels int) ([]byte, error)
}

// FFmpegNormalizer shells out to ffmpeg.
type FFmpegNormalizer struct {
	ffmpegPath string
}

// NewFFmpegNormalizer creates a normalizer using the ffmpeg binary at ffmpegPath.
func NewFFmpegNormalizer(ffmpegPath string) *FFmpegNormalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegNormalizer{ffmpegPath: ffmpegPath}
}

// Normalize writes input to a temp file and transcodes it to PCM WAV.
// Input and output go through files because AAC previews need a seekable input.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, input []byte, sampleRate, channels int) ([]byte, error) {
	dir, err := os.MkdirTemp("", "musiclip-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "preview.m4a")
	outPath := filepath.Join(dir, "preview.wav")
	if err := os.WriteFile(inPath, input, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp input: %w", err)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inPath,
		"-vn",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-c:a", "pcm_s16le",
		"-bitexact",
		"-f", "wav",
		outPath,
	}

	cmd := exec.CommandContext(ctx, n.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg execution failed: %w\nFFmpeg Error: %s", err, strings.TrimSpace(stderr.String()))
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ffmpeg output: %w", err)
	}
	return out, nil
}
