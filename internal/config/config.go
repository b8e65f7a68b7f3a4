package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath       string
	OutputDir    string
	ArtifactPath string

	PageSize       int
	MaxUploadBytes int64

	LogLevel  string
	LogFormat string

	NatsURL     string
	NatsSubject string
	NatsQueue   string

	HTTPAddr     string
	RateLimitRPS float64

	WatchDir        string
	WatchSettleMs   int
	WatchAutoExport bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:       getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		OutputDir:    getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		ArtifactPath: getEnv("ARTIFACT_PATH", filepath.Join(cwd, "data", "artifacts", "bundle.json")),

		PageSize:       getEnvInt("PAGE_SIZE", 10),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 32<<20)),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		NatsURL:     getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		NatsSubject: getEnv("NATS_SUBJECT", "ordercancel.predict"),
		NatsQueue:   getEnv("NATS_QUEUE", "predictors"),

		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		RateLimitRPS: getEnvFloat("RATE_LIMIT_RPS", 5),

		WatchDir:        getEnv("WATCH_DIR", filepath.Join(cwd, "data", "inbox")),
		WatchSettleMs:   getEnvInt("WATCH_SETTLE_MS", 500),
		WatchAutoExport: getEnvBool("WATCH_AUTO_EXPORT", true),
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
