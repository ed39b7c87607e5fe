package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{key: "123.wav"},
		{key: "previews/1440833098.wav"},
		{key: "a%2Fb.wav"},
		{key: "", wantErr: true},
		{key: "/abs.wav", wantErr: true},
		{key: "../escape.wav", wantErr: true},
		{key: "a//b.wav", wantErr: true},
		{key: "with space.wav", wantErr: true},
		{key: "ctrl\x00.wav", wantErr: true},
		{key: "bad\xff.wav", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidKey))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDetectStorageType(t *testing.T) {
	assert.Equal(t, StorageTypeR2, detectStorageType("https://acct.r2.cloudflarestorage.com"))
	assert.Equal(t, StorageTypeS3, detectStorageType("s3.us-east-1.amazonaws.com"))
	assert.Equal(t, StorageTypeMinIO, detectStorageType("localhost:9000"))
	assert.Equal(t, StorageTypeS3Compatible, detectStorageType("storage.example.com"))
}

func TestResolveURL(t *testing.T) {
	minioStore, err := NewStorage(&Config{Type: StorageTypeMinIO, Endpoint: "http://localhost:9000", Bucket: "music-previews"})
	require.NoError(t, err)
	url, err := minioStore.ResolveURL("123.wav")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/music-previews/123.wav", url)

	url, err = minioStore.ResolveURL("a%2Fb.wav")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/music-previews/a%252Fb.wav", url)

	_, err = minioStore.ResolveURL("../x")
	assert.Error(t, err)

	s3Store, err := NewStorage(&Config{
		Type:      StorageTypeR2,
		Endpoint:  "https://acct.r2.cloudflarestorage.com",
		UseSSL:    true,
		Bucket:    "clips",
		PublicURL: "https://cdn.example.com/",
	})
	require.NoError(t, err)
	url, err = s3Store.ResolveURL("previews/9.wav")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/previews/9.wav", url)

	plain, err := NewS3Storage(&Config{Endpoint: "storage.example.com", UseSSL: true, Bucket: "clips"})
	require.NoError(t, err)
	url, err = plain.ResolveURL("9.wav")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.com/clips/9.wav", url)
}

func TestNewStorageRequiresBucket(t *testing.T) {
	_, err := NewStorage(&Config{Type: StorageTypeMinIO, Endpoint: "localhost:9000"})
	assert.Error(t, err)
}
