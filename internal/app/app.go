// Package app wires configuration into the collaborators shared by the
// ingest, query and api commands.
package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/timmy/musiclip/internal/audio"
	"github.com/timmy/musiclip/internal/cache"
	"github.com/timmy/musiclip/internal/config"
	"github.com/timmy/musiclip/internal/logger"
	"github.com/timmy/musiclip/internal/repository"
	"github.com/timmy/musiclip/internal/service"
	"github.com/timmy/musiclip/internal/source"
	"github.com/timmy/musiclip/internal/source/applemusic"
	"github.com/timmy/musiclip/internal/source/manifest"
	"github.com/timmy/musiclip/internal/storage"
)

// Role selects which collaborators a command needs.
type Role int

const (
	// RoleQuery wires the vector store, object storage URLs, embeddings and the cache.
	RoleQuery Role = iota
	// RoleIngest additionally ensures the bucket and opens the run ledger.
	RoleIngest
)

// App holds the collaborators built from one Config.
type App struct {
	Config    *config.Config
	Logger    *logger.Logger
	Vectors   *repository.QdrantRepository
	Storage   storage.ObjectStorage
	Embedding *service.EmbeddingService
	Cache     *cache.EmbeddingCache
	DB        *gorm.DB
	Runs      *repository.RunRepository

	closers []func() error
}

// NewLogger builds the process logger from the environment and installs it as
// the default.
func NewLogger(serviceName string) *logger.Logger {
	l := logger.NewFromEnv(logger.LoadFromEnv(serviceName))
	logger.SetDefaultLogger(l)
	return l
}

// Validate checks the configuration sections role depends on.
func Validate(cfg *config.Config, role Role) error {
	if role == RoleIngest {
		return cfg.Validate()
	}
	if cfg.Qdrant.Collection == "" {
		return fmt.Errorf("qdrant: collection is required")
	}
	if cfg.Storage.Bucket == "" {
		return fmt.Errorf("storage: bucket is required")
	}
	if err := cfg.Embedding.Validate(); err != nil {
		return err
	}
	if cfg.Embedding.Dimension != cfg.Qdrant.Dimension {
		return fmt.Errorf("embedding: dimension %d does not match qdrant dimension %d",
			cfg.Embedding.Dimension, cfg.Qdrant.Dimension)
	}
	if cfg.Search.DefaultTopK <= 0 || cfg.Search.MaxTopK < cfg.Search.DefaultTopK {
		return fmt.Errorf("search: need 0 < default_top_k <= max_top_k")
	}
	return nil
}

// New connects the collaborators for role. Redis and the run ledger are
// optional: failures there are logged and the feature is left off.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, role Role) (*App, error) {
	if err := Validate(cfg, role); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &App{Config: cfg, Logger: log}

	vectors, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Qdrant.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Qdrant repository: %w", err)
	}
	a.Vectors = vectors
	a.closers = append(a.closers, vectors.Close)

	if err := vectors.EnsureCollection(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to ensure Qdrant collection: %w", err)
	}

	objectStorage, err := storage.NewStorage(&storage.Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.Storage = objectStorage

	a.Embedding = service.NewEmbeddingService(&service.EmbeddingConfig{
		ServerURL: cfg.Embedding.ServerURL,
		Timeout:   cfg.Embedding.Timeout,
		Dimension: cfg.Embedding.Dimension,
	})

	if cfg.Redis.Addr != "" {
		c, err := cache.NewEmbeddingCache(ctx, cache.Options{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			TTL:       cfg.Redis.TTL,
			Namespace: fmt.Sprintf("d%d", cfg.Embedding.Dimension),
		})
		if err != nil {
			log.WithError(err).Warn("Embedding cache disabled")
		} else {
			a.Cache = c
			a.closers = append(a.closers, c.Close)
		}
	}

	if role == RoleIngest {
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
		}
	}

	if cfg.Database.DSN != "" {
		db, err := repository.InitDB(&cfg.Database)
		if err != nil {
			log.WithError(err).Warn("Run ledger disabled")
		} else {
			a.DB = db
			a.Runs = repository.NewRunRepository(db)
			if sqlDB, err := db.DB(); err == nil {
				a.closers = append(a.closers, sqlDB.Close)
			}
		}
	}

	return a, nil
}

// NewResolver builds the configured track resolver.
func (a *App) NewResolver() (source.Resolver, error) {
	cfg := a.Config
	switch cfg.Source.Type {
	case applemusic.SourceID:
		tokens, err := applemusic.LoadTokenSource(cfg.AppleMusic.KeyID, cfg.AppleMusic.TeamID, cfg.AppleMusic.KeyPath, cfg.AppleMusic.TokenTTL)
		if err != nil {
			return nil, err
		}
		return applemusic.NewResolver(applemusic.Config{
			BaseURL:    cfg.AppleMusic.BaseURL,
			Storefront: cfg.AppleMusic.Storefront,
			Timeout:    cfg.AppleMusic.Timeout,
		}, tokens)
	case manifest.SourceID:
		return manifest.NewAdapter(cfg.Manifest.Dir), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

// NewIngestService wires the orchestrator over the configured resolver.
func (a *App) NewIngestService() (*service.IngestService, error) {
	resolver, err := a.NewResolver()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize resolver: %w", err)
	}

	cfg := a.Config
	materializer := audio.NewMaterializer(audio.Config{
		SampleRate:       cfg.Audio.SampleRate,
		Channels:         cfg.Audio.Channels,
		MaxDownloadBytes: cfg.Audio.MaxDownloadBytes,
		DownloadTimeout:  cfg.Audio.DownloadTimeout,
		KeyPrefix:        cfg.Storage.KeyPrefix,
	}, audio.NewFFmpegNormalizer(cfg.Audio.FFmpegPath))

	svc := service.NewIngestService(resolver, materializer, a.Storage, a.Embedding, a.Vectors, a.Logger,
		&service.IngestConfig{
			Workers:      cfg.Ingest.Workers,
			VerifyWrites: cfg.Ingest.VerifyWrites,
		})
	if a.Runs != nil {
		svc.SetRunRecorder(a.Runs)
	}
	return svc, nil
}

// NewSearchService wires the query engine.
func (a *App) NewSearchService() *service.SearchService {
	svc := service.NewSearchService(a.Embedding, a.Vectors, a.Storage, a.Logger, &service.SearchConfig{
		DefaultTopK: a.Config.Search.DefaultTopK,
		MaxTopK:     a.Config.Search.MaxTopK,
	})
	if a.Cache != nil {
		svc.SetCache(a.Cache)
	}
	return svc
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.WithError(err).Warn("Failed to close resource")
		}
	}
	a.closers = nil
}
