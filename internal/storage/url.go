package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// ErrInvalidKey is returned for storage references that cannot form a URL.
var ErrInvalidKey = errors.New("invalid storage key")

// ValidateKey rejects empty, absolute, traversing or non-printable keys.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %q is absolute", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q has an empty or relative segment", ErrInvalidKey, key)
		}
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == unicode.ReplacementChar {
			return fmt.Errorf("%w: %q contains unprintable characters", ErrInvalidKey, key)
		}
	}
	return nil
}

// objectURL joins base and key, escaping each key segment.
func objectURL(base, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	raw := strings.TrimSuffix(base, "/") + "/" + strings.Join(segs, "/")
	if _, err := url.Parse(raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return raw, nil
}

// normalizeEndpoint removes protocol prefix and path from endpoint
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	// Remove any path (everything after the first /)
	if idx := strings.Index(endpoint, "/"); idx != -1 {
		endpoint = endpoint[:idx]
	}
	return endpoint
}

func scheme(useSSL bool) string {
	if useSSL {
		return "https"
	}
	return "http"
}
