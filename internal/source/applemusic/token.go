package applemusic

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MaxTokenTTL is the longest lifetime Apple accepts for a developer token.
const MaxTokenTTL = 180 * 24 * time.Hour

// refresh this long before expiry
const tokenRefreshMargin = time.Minute

// TokenSource signs and caches ES256 developer tokens.
type TokenSource struct {
	keyID  string
	teamID string
	key    *ecdsa.PrivateKey
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSource parses a PEM encoded .p8 private key.
func NewTokenSource(keyID, teamID string, keyPEM []byte, ttl time.Duration) (*TokenSource, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse apple private key: %w", err)
	}
	if ttl <= 0 || ttl > MaxTokenTTL {
		ttl = MaxTokenTTL
	}
	return &TokenSource{
		keyID:  keyID,
		teamID: teamID,
		key:    key,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// LoadTokenSource reads the private key from keyPath.
func LoadTokenSource(keyID, teamID, keyPath string, ttl time.Duration) (*TokenSource, error) {
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read apple private key: %w", err)
	}
	return NewTokenSource(keyID, teamID, keyPEM, ttl)
}

// Token returns a valid developer token, signing a new one when the cached token is near expiry.
func (s *TokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Add(tokenRefreshMargin).Before(s.expires) {
		return s.token, nil
	}

	expires := now.Add(s.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Issuer:    s.teamID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	tok.Header["kid"] = s.keyID

	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign developer token: %w", err)
	}
	s.token = signed
	s.expires = expires
	return signed, nil
}
