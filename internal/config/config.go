package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Upload and cache driver names
const (
	UploadLocal = "local"
	UploadS3    = "s3"

	CacheRedis  = "redis"
	CacheMemory = "memory"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	HTTPTimeout     time.Duration `json:"http_timeout"`

	// Document store
	StoreDriver     string `json:"store_driver"`
	StoragePath     string `json:"storage_path"`
	RedisURL        string `json:"redis_url"`
	RedisPrefix     string `json:"redis_prefix"`
	BadgerPath      string `json:"badger_path"`
	MongoURI        string `json:"mongo_uri"`
	MongoDatabase   string `json:"mongo_database"`
	MongoCollection string `json:"mongo_collection"`

	// Read-through article cache
	CacheEnabled bool          `json:"cache_enabled"`
	CacheDriver  string        `json:"cache_driver"`
	CacheTTL     time.Duration `json:"cache_ttl"`

	// Cover uploads
	UploadDriver string `json:"upload_driver"`
	UploadDir    string `json:"upload_dir"`
	MaxFileSize  int64  `json:"max_file_size"`

	// S3-compatible object storage (AWS, R2, MinIO)
	S3Endpoint  string `json:"s3_endpoint"`
	S3Region    string `json:"s3_region"`
	S3AccessKey string `json:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key"`
	S3Bucket    string `json:"s3_bucket"`
	S3PublicURL string `json:"s3_public_url"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Security
	AuthToken string `json:"-"`
}

// Load loads configuration from environment variables and validates it
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// FromEnv reads the configuration without loading .env or validating
func FromEnv() *Config {
	return &Config{
		Port:            getEnv("PORT", "3000"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		StoreDriver:     getEnv("STORE_DRIVER", "file"),
		StoragePath:     getEnv("STORAGE_PATH", "./data"),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:     getEnv("REDIS_PREFIX", "newsroom:"),
		BadgerPath:      getEnv("BADGER_PATH", "./data/badger"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "newsroom"),
		MongoCollection: getEnv("MONGO_COLLECTION", "news"),

		CacheEnabled: getEnvAsBool("CACHE_ENABLED", false),
		CacheDriver:  getEnv("CACHE_DRIVER", CacheRedis),
		CacheTTL:     getEnvAsDuration("CACHE_TTL", 10*time.Minute),

		UploadDriver: getEnv("UPLOAD_DRIVER", UploadLocal),
		UploadDir:    getEnv("UPLOAD_DIR", "./public/upload"),
		MaxFileSize:  getEnvAsInt64("MAX_FILE_SIZE", 10<<20), // 10MB

		S3Endpoint:  getEnv("S3_ENDPOINT", getEnv("R2_ENDPOINT", "")),
		S3Region:    getEnv("S3_REGION", "auto"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", getEnv("R2_ACCESS_KEY", "")),
		S3SecretKey: getEnv("S3_SECRET_KEY", getEnv("R2_SECRET_ACCESS_KEY", "")),
		S3Bucket:    getEnv("S3_BUCKET", getEnv("R2_BUCKET", "newsroom")),
		S3PublicURL: getEnv("S3_PUBLIC_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		AuthToken: getEnv("AUTH_TOKEN", ""),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case "file":
		if c.StoragePath == "" {
			errs = append(errs, errors.New("STORAGE_PATH is required for the file store"))
		}
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis store"))
		}
	case "badger":
	case "mongo":
		if c.MongoURI == "" || c.MongoDatabase == "" || c.MongoCollection == "" {
			errs = append(errs, errors.New("MONGO_URI, MONGO_DATABASE and MONGO_COLLECTION are required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if c.CacheEnabled {
		switch c.CacheDriver {
		case CacheRedis:
			if c.RedisURL == "" {
				errs = append(errs, errors.New("REDIS_URL is required for the redis cache"))
			}
		case CacheMemory:
		default:
			errs = append(errs, fmt.Errorf("unknown CACHE_DRIVER %q", c.CacheDriver))
		}
	}

	switch c.UploadDriver {
	case UploadLocal:
		if c.UploadDir == "" {
			errs = append(errs, errors.New("UPLOAD_DIR is required for local uploads"))
		}
	case UploadS3:
		if c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" || c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY and S3_BUCKET are required for s3 uploads"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown UPLOAD_DRIVER %q", c.UploadDriver))
	}

	if c.MaxFileSize <= 0 {
		errs = append(errs, errors.New("MAX_FILE_SIZE must be positive"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// ArticleCacheEnabled reports whether the store gets a cache in front of
// it. A redis store already serves reads from redis, so CACHE_ENABLED is
// ignored there.
func (c *Config) ArticleCacheEnabled() bool {
	return c.CacheEnabled && c.StoreDriver != "redis"
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %t", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsInt64(name string, defaultVal int64) int64 {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
