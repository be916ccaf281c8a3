// Package config loads the sync core's settings from a YAML file with
// environment overrides for deployment secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all settings for the sync core and its collaborators.
type Config struct {
	CachePath string `yaml:"cachePath"`
	LogLevel  string `yaml:"logLevel"`

	// RemoteMode selects the remote store implementation: "http" for the
	// hosted backend, "postgres" for a self-hosted database.
	RemoteMode    string `yaml:"remoteMode"`
	RemoteBaseURL string `yaml:"remoteBaseURL"`
	DatabaseURL   string `yaml:"databaseURL"`

	JWTSecret   string        `yaml:"jwtSecret"`
	JWTIssuer   string        `yaml:"jwtIssuer"`
	TokenTTL    time.Duration `yaml:"tokenTTL"`
	SyncTimeout time.Duration `yaml:"syncTimeout"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioPublicURL string `yaml:"minioPublicURL"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	VisionURL     string `yaml:"visionURL"`
	VisionAPIKey  string `yaml:"visionAPIKey"`
	StylistURL    string `yaml:"stylistURL"`
	StylistAPIKey string `yaml:"stylistAPIKey"`
}

// Load reads the config file at path and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{
		CachePath:   "wardrobe.db",
		LogLevel:    "info",
		RemoteMode:  "http",
		JWTIssuer:   "wardrobe",
		TokenTTL:    24 * time.Hour,
		SyncTimeout: 30 * time.Second,
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Secrets and connection strings prefer the environment.
	if v := os.Getenv("WARDROBE_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv("WARDROBE_REMOTE_URL"); v != "" {
		cfg.RemoteBaseURL = v
	}
	if v := os.Getenv("WARDROBE_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("WARDROBE_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("WARDROBE_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("WARDROBE_MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("WARDROBE_VISION_API_KEY"); v != "" {
		cfg.VisionAPIKey = v
	}
	if v := os.Getenv("WARDROBE_STYLIST_API_KEY"); v != "" {
		cfg.StylistAPIKey = v
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.CachePath == "" {
		return errors.New("config: cachePath is required")
	}
	switch c.RemoteMode {
	case "http":
		if c.RemoteBaseURL == "" {
			return errors.New("config: remoteBaseURL is required in http mode")
		}
		if c.JWTSecret == "" {
			return errors.New("config: jwtSecret is required in http mode")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("config: databaseURL is required in postgres mode")
		}
	default:
		return fmt.Errorf("config: unknown remoteMode %q", c.RemoteMode)
	}
	return nil
}
