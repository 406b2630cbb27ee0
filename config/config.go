package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// StorageBackend selects the storage adapter.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
)

// Config is the top-level configuration struct.  All fields have safe
// defaults so callers can start with Default() and override only what they
// need.
type Config struct {
	// Backend holds process-wide backend initialization; it is applied once
	// when the backend handle is constructed, never mutated afterwards.
	Backend BackendConfig

	// Transformer worker pool controls.
	WorkerCount int // default: runtime.NumCPU()
	QueueSize   int // max queued jobs before backpressure; default: 256
	JobTimeout  time.Duration

	// Default encode options applied when a request does not override.
	DefaultQuality int // JPEG quality 1-100; default 85
	PNGCompression int // PNG zlib level 0-9

	// Input limits.
	MaxImageBytes int64 // 0 = no limit
	ChunkSize     int   // reader chunk size in bytes; default 32 KiB

	// Storage.
	Storage    StorageBackend
	Local      LocalConfig
	S3         S3Config
	CacheQuota int64 // byte quota for the cached storage wrapper; 0 = unbounded

	LogLevel string // "debug", "info", "warn", "error"
}

// BackendConfig configures the image-processing backend at startup.
type BackendConfig struct {
	Concurrency int   // worker threads inside the backend; default 1
	MaxCacheMem int   // operation cache memory ceiling in bytes; default 128 MiB
	MaxCacheOps int   // max cached operations; default 256
	ReportLeaks bool
}

// LocalConfig configures the local filesystem storage adapter.
type LocalConfig struct {
	RootDir     string
	Permissions uint32 // default 0644
}

// S3Config configures the S3 storage adapter.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional custom endpoint (MinIO, etc.)
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			Concurrency: 1,
			MaxCacheMem: 128 * 1024 * 1024,
			MaxCacheOps: 256,
		},
		WorkerCount:    0, // resolved at runtime to NumCPU
		QueueSize:      256,
		JobTimeout:     30 * time.Second,
		DefaultQuality: 85,
		ChunkSize:      32 * 1024,
		Storage:        StorageLocal,
		LogLevel:       "info",
	}
}

// Load reads a config file (TOML/YAML/JSON, decided by extension) and
// environment variables prefixed with RESIZER_, layered over Default().
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("resizer")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if v.IsSet("backend.concurrency") {
		cfg.Backend.Concurrency = v.GetInt("backend.concurrency")
	}
	if v.IsSet("backend.max_cache_mem") {
		cfg.Backend.MaxCacheMem = v.GetInt("backend.max_cache_mem")
	}
	if v.IsSet("backend.max_cache_ops") {
		cfg.Backend.MaxCacheOps = v.GetInt("backend.max_cache_ops")
	}
	cfg.Backend.ReportLeaks = v.GetBool("backend.report_leaks")

	if v.IsSet("pool.worker_count") {
		cfg.WorkerCount = v.GetInt("pool.worker_count")
	}
	if v.IsSet("pool.queue_size") {
		cfg.QueueSize = v.GetInt("pool.queue_size")
	}
	if v.IsSet("pool.job_timeout") {
		cfg.JobTimeout = v.GetDuration("pool.job_timeout")
	}

	if v.IsSet("encode.quality") {
		cfg.DefaultQuality = v.GetInt("encode.quality")
	}
	if v.IsSet("encode.png_compression") {
		cfg.PNGCompression = v.GetInt("encode.png_compression")
	}

	if v.IsSet("input.max_bytes") {
		cfg.MaxImageBytes = v.GetInt64("input.max_bytes")
	}
	if v.IsSet("input.chunk_size") {
		cfg.ChunkSize = v.GetInt("input.chunk_size")
	}

	if v.IsSet("storage.backend") {
		cfg.Storage = StorageBackend(v.GetString("storage.backend"))
	}
	cfg.Local.RootDir = v.GetString("storage.local.root_dir")
	cfg.Local.Permissions = v.GetUint32("storage.local.permissions")
	cfg.S3.Bucket = v.GetString("storage.s3.bucket")
	cfg.S3.Region = v.GetString("storage.s3.region")
	cfg.S3.Endpoint = v.GetString("storage.s3.endpoint")
	cfg.S3.AccessKeyID = v.GetString("storage.s3.access_key_id")
	cfg.S3.SecretAccessKey = v.GetString("storage.s3.secret_access_key")
	cfg.S3.UsePathStyle = v.GetBool("storage.s3.use_path_style")
	cfg.CacheQuota = v.GetInt64("storage.cache_quota")

	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}

	return cfg, Validate(cfg)
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.DefaultQuality < 1 || c.DefaultQuality > 100 {
		return errors.New("config: DefaultQuality must be between 1 and 100")
	}
	if c.PNGCompression < 0 || c.PNGCompression > 9 {
		return errors.New("config: PNGCompression must be between 0 and 9")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	if c.Backend.Concurrency < 0 {
		return errors.New("config: Backend.Concurrency must not be negative")
	}
	switch c.Storage {
	case StorageLocal, StorageS3:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage)
	}
	return nil
}
