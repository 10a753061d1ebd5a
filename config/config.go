package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"safespace/utils"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrInvalidConfig         = errors.New("invalid config")
)

// CurrentVersion is the config layout this build understands.
const CurrentVersion = 1

// FileName is searched for in every config path.
const FileName = "safespace.toml"

const (
	BackendMemory = "memory"
	BackendDynamo = "dynamo"
	BackendRedis  = "redis"
)

type Config struct {
	Version     int         `koanf:"version"`
	Server      Server      `koanf:"server"`
	AWS         AWS         `koanf:"aws"`
	Storage     Storage     `koanf:"storage"`
	Cache       Cache       `koanf:"cache"`
	Redis       Redis       `koanf:"redis"`
	Retry       Retry       `koanf:"retry"`
	Concurrency Concurrency `koanf:"concurrency"`
	Moderation  Moderation  `koanf:"moderation"`
	Avatars     Avatars     `koanf:"avatars"`
	Debug       Debug       `koanf:"debug"`
}

type Server struct {
	Port           string   `koanf:"port"`
	RateLimit      float64  `koanf:"rate_limit"` // Requests per second per client IP, 0 disables
	RateBurst      int      `koanf:"rate_burst"`
	TrustProxy     bool     `koanf:"trust_proxy"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type AWS struct {
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"` // Overrides the service endpoints, e.g. DynamoDB Local
}

// Storage selects the document and file backends.
type Storage struct {
	Backend        string `koanf:"backend"`
	TablePrefix    string `koanf:"table_prefix"`
	Bucket         string `koanf:"bucket"`
	KeyPrefix      string `koanf:"key_prefix"`
	PreviewBaseURL string `koanf:"preview_base_url"`
	PresignExpires int    `koanf:"presign_expires"` // Seconds
	FilesBaseURL   string `koanf:"files_base_url"`  // Memory backend only
	BcryptCost     int    `koanf:"bcrypt_cost"`
}

type Cache struct {
	Backend   string `koanf:"backend"`
	StaleTime int    `koanf:"stale_time"` // Seconds, 0 refetches on every read
	TTL       int    `koanf:"ttl"`        // Seconds, redis only
}

type Redis struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

type Retry struct {
	MaxRetries uint64 `koanf:"max_retries"`
	Delay      int    `koanf:"delay"`       // Milliseconds
	MaxDelay   int    `koanf:"max_delay"`   // Milliseconds
	MaxElapsed int    `koanf:"max_elapsed"` // Milliseconds
}

type Concurrency struct {
	MaxLookups int `koanf:"max_lookups"`
}

type Moderation struct {
	Endpoint string `koanf:"endpoint"` // Empty disables moderation
	Timeout  int    `koanf:"timeout"`  // Seconds
}

type Avatars struct {
	BaseURL string `koanf:"base_url"`
}

type Debug struct {
	LogLevel    string `koanf:"log_level"`
	Development bool   `koanf:"development"`
}

// Default returns a config that runs fully in memory.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: Server{
			Port:           "8080",
			RateLimit:      20,
			RateBurst:      40,
			AllowedOrigins: []string{"*"},
		},
		AWS: AWS{Region: "us-east-1"},
		Storage: Storage{
			Backend:        BackendMemory,
			TablePrefix:    "safespace_",
			KeyPrefix:      "uploads/",
			PresignExpires: 7 * 24 * 60 * 60,
			FilesBaseURL:   "http://localhost:8080/files",
			BcryptCost:     10,
		},
		Cache: Cache{
			Backend:   BackendMemory,
			StaleTime: 30,
			TTL:       300,
		},
		Redis: Redis{Host: "localhost", Port: 6379},
		Retry: Retry{
			MaxRetries: 2,
			Delay:      50,
			MaxDelay:   500,
			MaxElapsed: 5000,
		},
		Concurrency: Concurrency{MaxLookups: 8},
		Moderation:  Moderation{Timeout: 10},
		Avatars:     Avatars{BaseURL: "https://ui-avatars.com/api/"},
		Debug:       Debug{LogLevel: "info"},
	}
}

// Paths lists the directories searched for FileName, in order.
func Paths() []string {
	paths := []string{".safespace"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".safespace"))
	}
	return append(paths, "/etc/safespace", "/app/config", "config", ".")
}

// Load reads FileName from path, or from the first config path holding one
// when path is empty, over the compiled defaults. It returns the file used.
func Load(path string) (*Config, string, error) {
	k := koanf.New(".")

	candidates := []string{path}
	if path == "" {
		candidates = candidates[:0]
		for _, dir := range Paths() {
			candidates = append(candidates, filepath.Join(dir, FileName))
		}
	}

	var used string
	for _, candidate := range candidates {
		if err := k.Load(file.Provider(candidate), toml.Parser()); err == nil {
			used = candidate
			break
		} else if path != "" {
			return nil, "", fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	if used == "" {
		return nil, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, FileName)
	}

	cfg := Default()
	cfg.Version = 0
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion(cfg.Version, CurrentVersion); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, used, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s", ErrConfigVersionMissing, FileName)
	}
	if current != expected {
		return fmt.Errorf("%w: %s has version %d, expected %d", ErrConfigVersionMismatch, FileName, current, expected)
	}
	return nil
}

// Validate rejects unknown backends and unusable limits.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendDynamo:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("%w: storage.bucket is required for the dynamo backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage.backend %q", ErrInvalidConfig, c.Storage.Backend)
	}

	switch c.Cache.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("%w: unknown cache.backend %q", ErrInvalidConfig, c.Cache.Backend)
	}

	if c.Concurrency.MaxLookups < 1 {
		return fmt.Errorf("%w: concurrency.max_lookups must be at least 1", ErrInvalidConfig)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("%w: server.rate_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// RetryOptions converts the retry section for utils.WithRetry.
func (c *Config) RetryOptions() utils.RetryOptions {
	return utils.RetryOptions{
		MaxElapsedTime:  time.Duration(c.Retry.MaxElapsed) * time.Millisecond,
		InitialInterval: time.Duration(c.Retry.Delay) * time.Millisecond,
		MaxInterval:     time.Duration(c.Retry.MaxDelay) * time.Millisecond,
		MaxRetries:      c.Retry.MaxRetries,
	}
}

func (c *Config) StaleTime() time.Duration {
	return time.Duration(c.Cache.StaleTime) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

func (c *Config) PresignExpires() time.Duration {
	return time.Duration(c.Storage.PresignExpires) * time.Second
}

func (c *Config) ModerationTimeout() time.Duration {
	return time.Duration(c.Moderation.Timeout) * time.Second
}

// RedisAddress is host:port of the redis server.
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
