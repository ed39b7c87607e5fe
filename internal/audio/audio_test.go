package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/musiclip/internal/domain"
)

// buildWAV returns a 16-bit PCM WAV with n zero samples per channel.
func buildWAV(sampleRate, channels, n int) []byte {
	dataSize := n * channels * 2
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+dataSize))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&b, binary.LittleEndian, uint16(channels*2))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(dataSize))
	b.Write(make([]byte, dataSize))
	return b.Bytes()
}

type fakeNormalizer struct {
	out   []byte
	err   error
	calls int
}

func (f *fakeNormalizer) Normalize(ctx context.Context, input []byte, sampleRate, channels int) ([]byte, error) {
	f.calls++
	return f.out, f.err
}

func TestStorageKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, "previews/1440833098.wav", StorageKey("previews/", "1440833098"))
	assert.Equal(t, StorageKey("", "a/b c"), StorageKey("", "a/b c"))
	assert.Equal(t, "a%2Fb%20c.wav", StorageKey("", "a/b c"))
}

func TestParseWAVHeader(t *testing.T) {
	f, err := ParseWAVHeader(buildWAV(24000, 1, 100))
	require.NoError(t, err)
	assert.Equal(t, 24000, f.SampleRate)
	assert.Equal(t, 1, f.Channels)
	assert.Equal(t, 16, f.BitsPerSample)
	assert.Equal(t, 200, f.DataSize)

	_, err = ParseWAVHeader([]byte("ID3\x03 not a wav file"))
	assert.Error(t, err)

	assert.Error(t, CheckWAV(buildWAV(44100, 2, 10), 24000, 1))
	assert.Error(t, CheckWAV(buildWAV(24000, 1, 0), 24000, 1))
	assert.NoError(t, CheckWAV(buildWAV(24000, 1, 10), 24000, 1))
}

func TestMaterialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.m4a":
			w.Write([]byte("fake aac payload"))
		case "/empty.m4a":
		case "/big.m4a":
			w.Write(make([]byte, 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := Config{SampleRate: 24000, Channels: 1, MaxDownloadBytes: 32, KeyPrefix: "clips/"}
	good := buildWAV(24000, 1, 10)

	tests := []struct {
		name     string
		url      string
		norm     *fakeNormalizer
		wantKind domain.ErrorKind
	}{
		{name: "ok", url: "/ok.m4a", norm: &fakeNormalizer{out: good}},
		{name: "no preview", url: "", norm: &fakeNormalizer{out: good}, wantKind: domain.KindDownload},
		{name: "not found", url: "/missing.m4a", norm: &fakeNormalizer{out: good}, wantKind: domain.KindDownload},
		{name: "empty body", url: "/empty.m4a", norm: &fakeNormalizer{out: good}, wantKind: domain.KindDownload},
		{name: "too large", url: "/big.m4a", norm: &fakeNormalizer{out: good}, wantKind: domain.KindDownload},
		{name: "ffmpeg fails", url: "/ok.m4a", norm: &fakeNormalizer{err: errors.New("invalid data")}, wantKind: domain.KindConversion},
		{name: "empty output", url: "/ok.m4a", norm: &fakeNormalizer{}, wantKind: domain.KindConversion},
		{name: "wrong rate", url: "/ok.m4a", norm: &fakeNormalizer{out: buildWAV(44100, 2, 10)}, wantKind: domain.KindConversion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMaterializer(cfg, tt.norm)
			d := domain.TrackDescriptor{ID: "42"}
			if tt.url != "" {
				d.PreviewURL = srv.URL + tt.url
			}

			audio, err := m.Materialize(context.Background(), d)
			if tt.wantKind != domain.KindUnknown {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, domain.KindOf(err), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "clips/42.wav", audio.Key)
			assert.Equal(t, WAVContentType, audio.ContentType)
			assert.Equal(t, 24000, audio.SampleRate)
			assert.Equal(t, 1, audio.Channels)
			assert.Equal(t, good, audio.Data)
		})
	}
}

func TestFFmpegNormalizer(t *testing.T) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	n := NewFFmpegNormalizer(path)

	out, err := n.Normalize(context.Background(), buildWAV(44100, 2, 4410), 24000, 1)
	require.NoError(t, err)
	assert.NoError(t, CheckWAV(out, 24000, 1))

	_, err = n.Normalize(context.Background(), []byte("garbage"), 24000, 1)
	assert.Error(t, err)
}
