package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Optional Redis mirror for progress events. Empty disables it.
	RedisURL string

	// Scheduler tuning. Defaults are documented operational values, not
	// hard guarantees; they can be overridden per deployment.
	WorkerCount    int
	MaxRetries     int
	RetryBackoff   time.Duration
	MaxBackoff     time.Duration
	JobTimeout     time.Duration
	TerminateGrace time.Duration

	// Binary cache and media placement
	CacheDir string
	MediaDir string

	// Optional S3-compatible mirror for finished files. Empty endpoint
	// disables it.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// Load reads configuration from the environment, after loading a local
// .env file when one exists.
func Load() *Config {
	_ = godotenv.Load()

	workerCount := getEnvInt("WORKER_COUNT", 3)
	if workerCount <= 0 {
		workerCount = 3
	}

	minioUseSSL, _ := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", "false"))

	return &Config{
		ServerAddr: getEnvOrDefault("SERVER_ADDR", ":8080"),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),

		DBHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:     getEnvOrDefault("DB_PORT", "5432"),
		DBUser:     getEnvOrDefault("DB_USER", "vdl"),
		DBPassword: getEnvOrDefault("DB_PASSWORD", "vdl_dev_password"),
		DBName:     getEnvOrDefault("DB_NAME", "videodownloader"),

		RedisURL: os.Getenv("REDIS_URL"),

		WorkerCount:    workerCount,
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RetryBackoff:   getEnvDuration("RETRY_BACKOFF", 2*time.Second),
		MaxBackoff:     getEnvDuration("MAX_BACKOFF", 60*time.Second),
		JobTimeout:     getEnvDuration("JOB_TIMEOUT", 30*time.Minute),
		TerminateGrace: getEnvDuration("TERMINATE_GRACE", 5*time.Second),

		CacheDir: getEnvOrDefault("CACHE_DIR", defaultCacheDir()),
		MediaDir: getEnvOrDefault("MEDIA_DIR", defaultMediaDir()),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:    getEnvOrDefault("MINIO_BUCKET", "media-files"),
		MinioUseSSL:    minioUseSSL,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// defaultCacheDir places the extracted downloader binary under the user
// cache directory, never inside the application bundle.
func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "video-downloader")
}

func defaultMediaDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "video-downloader", "media")
	}
	return filepath.Join(home, "Documents", "video-downloader", "media")
}
