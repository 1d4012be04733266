package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting. It is built once at startup and passed
// explicitly into constructors.
type Config struct {
	Port int `envconfig:"PORT" default:"8000"`

	DatabaseURL string `envconfig:"DB_URL" default:"data/visionchat.db"`

	SecretKey               string `envconfig:"SECRET_KEY" required:"true"`
	AccessTokenExpireMinute int    `envconfig:"ACCESS_TOKEN_EXPIRE_MINUTES" default:"30"`

	UploadDirectory string `envconfig:"UPLOAD_DIR" default:"uploads"`
	MaxUploadMB     int64  `envconfig:"MAX_UPLOAD_MB" default:"10"`
	StorageBackend  string `envconfig:"STORAGE_BACKEND" default:"local"` // local | minio
	MinioEndpoint   string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	MinioAccessKey  string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	MinioSecretKey  string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	MinioBucket     string `envconfig:"MINIO_BUCKET" default:"uploads"`
	MinioUseSSL     bool   `envconfig:"MINIO_USE_SSL" default:"false"`

	DetectorBackend    string  `envconfig:"DETECTOR_BACKEND" default:"opencv"` // opencv | remote
	ModelPath          string  `envconfig:"MODEL_PATH" default:"models/frozen_inference_graph.pb"`
	ConfigPath         string  `envconfig:"MODEL_CONFIG_PATH" default:"models/ssd_mobilenet_v1_coco_2017_11_17.pbtxt"`
	DetectionThreshold float64 `envconfig:"DETECTION_THRESHOLD" default:"0.5"`
	DetectorWorkers    int     `envconfig:"DETECTOR_WORKERS" default:"2"`
	InferenceURL       string  `envconfig:"INFERENCE_URL" default:"http://localhost:9001/predict"`

	GeminiAPIKey string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string        `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	ChatTimeout  time.Duration `envconfig:"CHAT_TIMEOUT" default:"30s"`

	LogDirectory string   `envconfig:"LOG_DIR"`
	CORSOrigins  []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AccessTokenTTL is the lifetime of issued bearer tokens.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinute) * time.Minute
}

// MaxUploadBytes is the largest accepted request body for /api/detect.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("SECRET_KEY must not be empty")
	}
	if c.DetectorWorkers < 1 {
		return fmt.Errorf("DETECTOR_WORKERS must be at least 1, got %d", c.DetectorWorkers)
	}
	if c.DetectionThreshold < 0 || c.DetectionThreshold > 1 {
		return fmt.Errorf("DETECTION_THRESHOLD must be within [0,1], got %v", c.DetectionThreshold)
	}
	switch strings.ToLower(c.StorageBackend) {
	case "local", "minio":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch strings.ToLower(c.DetectorBackend) {
	case "opencv", "remote":
	default:
		return fmt.Errorf("unknown DETECTOR_BACKEND %q", c.DetectorBackend)
	}
	return nil
}
