package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "musiclip:text_embedding:"

// Options configures the Redis connection backing the cache.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration

	// Namespace separates vectors from different embedding models, e.g. "d512".
	Namespace string
}

// EmbeddingCache caches text embeddings keyed by the SHA-256 of the query text.
type EmbeddingCache struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
}

// NewEmbeddingCache connects to Redis and verifies the connection with PING.
func NewEmbeddingCache(ctx context.Context, opts Options) (*EmbeddingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &EmbeddingCache{client: client, ttl: opts.TTL, namespace: opts.Namespace}, nil
}

// Key returns the Redis key for text within namespace. Surrounding whitespace
// is not significant.
func Key(namespace, text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	if namespace == "" {
		return keyPrefix + hex.EncodeToString(sum[:])
	}
	return keyPrefix + namespace + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached embedding for text; ok is false on a miss.
func (c *EmbeddingCache) Get(ctx context.Context, text string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, Key(c.namespace, text)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached embedding: %w", err)
	}

	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached embedding: %w", err)
	}
	return vector, true, nil
}

// Set stores the embedding for text with the configured TTL.
func (c *EmbeddingCache) Set(ctx context.Context, text string, vector []float32) error {
	raw, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	if err := c.client.Set(ctx, Key(c.namespace, text), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache embedding: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *EmbeddingCache) Close() error {
	return c.client.Close()
}
