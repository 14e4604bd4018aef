package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location relative to the working directory.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                         string `yaml:"port"`
	LogLevel                     string `yaml:"logLevel"`
	DatabaseURL                  string `yaml:"databaseURL"`
	RedisAddr                    string `yaml:"redisAddr"`
	RedisPassword                string `yaml:"redisPassword"`
	MinioEndpoint                string `yaml:"minioEndpoint"`
	MinioAccessKey               string `yaml:"minioAccessKey"`
	MinioSecretKey               string `yaml:"minioSecretKey"`
	MinioBucket                  string `yaml:"minioBucket"`
	MinioUseSSL                  bool   `yaml:"minioUseSSL"`
	BooksPrefix                  string `yaml:"booksPrefix"`
	JWKSURL                      string `yaml:"jwksURL"`
	TokenIssuer                  string `yaml:"tokenIssuer"`
	TokenAudience                string `yaml:"tokenAudience"`
	AdminWriteRateLimitPerMinute int    `yaml:"adminWriteRateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("BOOKS_PREFIX"); v != "" {
		cfg.BooksPrefix = v
	}
	if v := os.Getenv("SHELFGATE_JWKS_URL"); v != "" {
		cfg.JWKSURL = v
	}
	if v := os.Getenv("SHELFGATE_ADMIN_WRITE_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AdminWriteRateLimitPerMinute = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
		return errors.New("config: minioEndpoint and minioBucket are required (set in config.yaml)")
	}
	if cfg.JWKSURL == "" {
		return errors.New("config: jwksURL is required (set in config.yaml or SHELFGATE_JWKS_URL)")
	}
	return nil
}
