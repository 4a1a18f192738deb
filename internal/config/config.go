package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Model backends understood by the classifier loader.
const (
	BackendNative = "native"
	BackendONNX   = "onnx"
)

// Config holds the runtime settings of the service.
type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	DatabaseDSN     string
	RedisAddr       string
	JWTSecret       string
	JWTAudience     string
	JWTIssuer       string
	JWTTTL          time.Duration
	ResultTTL       time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string

	ModelBackend    string
	RiceModelPath   string
	PulseModelPath  string
	ONNXLibraryPath string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// a missing .env file is fine
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getEnv("GRPC_ADDR", ":9090"),
		DatabaseDSN:     getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=leafcheck port=5432 sslmode=disable"),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		JWTAudience:     os.Getenv("JWT_AUDIENCE"),
		JWTIssuer:       getEnv("JWT_ISSUER", "leaf-check"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ModelBackend:    strings.ToLower(getEnv("MODEL_BACKEND", BackendNative)),
		RiceModelPath:   lookupEnv("RICE_MODEL_PATH", "models/rice_disease_model.ckpt"),
		PulseModelPath:  lookupEnv("PULSE_MODEL_PATH", "models/pulse_disease_model.ckpt"),
		ONNXLibraryPath: os.Getenv("ONNXRUNTIME_LIB_PATH"),
	}

	var err error
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ResultTTL, err = getDuration("RESULT_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	switch cfg.ModelBackend {
	case BackendNative, BackendONNX:
	default:
		return nil, fmt.Errorf("config: unsupported MODEL_BACKEND %q", cfg.ModelBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// lookupEnv differs from getEnv in that an explicitly empty variable is kept.
// An empty model path marks the crop as not yet available.
func lookupEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return d, nil
}
