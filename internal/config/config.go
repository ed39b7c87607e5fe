package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Source     SourceConfig     `mapstructure:"source"`
	AppleMusic AppleMusicConfig `mapstructure:"applemusic"`
	Manifest   ManifestConfig   `mapstructure:"manifest"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Qdrant     QdrantConfig     `mapstructure:"qdrant"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Search     SearchConfig     `mapstructure:"search"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// SourceConfig selects the track resolver: "applemusic" or "manifest".
type SourceConfig struct {
	Type string `mapstructure:"type"`
}

type AppleMusicConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Storefront string        `mapstructure:"storefront"`
	KeyID      string        `mapstructure:"key_id"`
	TeamID     string        `mapstructure:"team_id"`
	KeyPath    string        `mapstructure:"key_path"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ManifestConfig struct {
	Dir string `mapstructure:"dir"`
}

// StorageConfig holds object storage configuration.
// Type may be "minio", "s3", "r2" or "s3compatible".
type StorageConfig struct {
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Dimension  int    `mapstructure:"dimension"`
}

type IngestConfig struct {
	Workers      int  `mapstructure:"workers"`
	SkipExisting bool `mapstructure:"skip_existing"`
	VerifyWrites bool `mapstructure:"verify_writes"`
}

type SearchConfig struct {
	DefaultTopK int `mapstructure:"default_top_k"`
	MaxTopK     int `mapstructure:"max_top_k"`
}

// DatabaseConfig holds the run ledger database. Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Load reads configuration from configPath (or ./configs/config.yaml, ./config.yaml),
// .env and the environment.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("source.type", "applemusic")
	v.SetDefault("applemusic.base_url", "https://api.music.apple.com/v1")
	v.SetDefault("applemusic.storefront", "us")
	v.SetDefault("applemusic.key_path", "./AuthKey.p8")
	v.SetDefault("applemusic.token_ttl", 12*time.Hour)
	v.SetDefault("applemusic.timeout", 30*time.Second)
	v.SetDefault("manifest.dir", "./playlists")
	v.SetDefault("storage.type", "minio")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "music-previews")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "music_embeddings")
	v.SetDefault("qdrant.dimension", 512)
	v.SetDefault("embedding.server_url", "http://localhost:8001")
	v.SetDefault("embedding.timeout", 60*time.Second)
	v.SetDefault("embedding.dimension", 512)
	v.SetDefault("audio.sample_rate", 24000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("audio.max_download_bytes", 20<<20)
	v.SetDefault("audio.download_timeout", 30*time.Second)
	v.SetDefault("ingest.workers", 1)
	v.SetDefault("ingest.skip_existing", true)
	v.SetDefault("ingest.verify_writes", true)
	v.SetDefault("search.default_top_k", 10)
	v.SetDefault("search.max_top_k", 100)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/musiclip.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)
}

// bindEnv binds credentials and endpoints to their conventional variable names.
func bindEnv(v *viper.Viper) {
	v.BindEnv("applemusic.key_id", "APPLE_KEY_ID")
	v.BindEnv("applemusic.team_id", "APPLE_TEAM_ID")
	v.BindEnv("applemusic.key_path", "APPLE_KEY_PATH")
	v.BindEnv("applemusic.storefront", "APPLE_STOREFRONT")
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.endpoint", "MINIO_ENDPOINT", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "MINIO_ACCESS_KEY", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "MINIO_SECRET_KEY", "S3_SECRET_KEY")
	v.BindEnv("storage.use_ssl", "MINIO_USE_SSL", "S3_USE_SSL")
	v.BindEnv("storage.bucket", "MINIO_BUCKET", "S3_BUCKET")
	v.BindEnv("storage.public_url", "S3_PUBLIC_URL")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("qdrant.collection", "QDRANT_COLLECTION")
	v.BindEnv("embedding.server_url", "EMBEDDING_SERVER_URL")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("database.dsn", "DATABASE_DSN")
}

// Validate checks the fields every command depends on.
// Returns an error describing the first validation failure, or nil if valid.
func (c *Config) Validate() error {
	switch c.Source.Type {
	case "applemusic":
		if err := c.AppleMusic.Validate(); err != nil {
			return err
		}
	case "manifest":
		if c.Manifest.Dir == "" {
			return fmt.Errorf("manifest: dir is required")
		}
	default:
		return fmt.Errorf("source: unknown type %q", c.Source.Type)
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage: bucket is required")
	}
	if c.Qdrant.Collection == "" {
		return fmt.Errorf("qdrant: collection is required")
	}
	if c.Qdrant.Dimension <= 0 {
		return fmt.Errorf("qdrant: dimension must be positive")
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if c.Embedding.Dimension != c.Qdrant.Dimension {
		return fmt.Errorf("embedding: dimension %d does not match qdrant dimension %d",
			c.Embedding.Dimension, c.Qdrant.Dimension)
	}
	if err := c.Audio.Validate(); err != nil {
		return err
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest: workers must be positive")
	}
	if c.Search.DefaultTopK <= 0 || c.Search.MaxTopK < c.Search.DefaultTopK {
		return fmt.Errorf("search: need 0 < default_top_k <= max_top_k")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}
	return nil
}

// Validate checks the Apple Music credentials.
func (c *AppleMusicConfig) Validate() error {
	if c.KeyID == "" {
		return fmt.Errorf("applemusic: key_id is required (APPLE_KEY_ID)")
	}
	if c.TeamID == "" {
		return fmt.Errorf("applemusic: team_id is required (APPLE_TEAM_ID)")
	}
	if c.KeyPath == "" {
		return fmt.Errorf("applemusic: key_path is required (APPLE_KEY_PATH)")
	}
	return nil
}
