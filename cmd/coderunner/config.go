package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"coderunner/internal/common/cache"
	"coderunner/internal/execution/middleware"
	"coderunner/internal/execution/sandbox/engine"
	"coderunner/internal/execution/sandbox/profile"
	"coderunner/internal/execution/sandbox/workspace"
	"coderunner/internal/execution/server"
	"coderunner/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 20 * time.Second
	defaultMaxSourceBytes  = 64 << 10
	defaultGzipMinSize     = 1024
	defaultRateWindow      = time.Minute
	defaultRedisTimeout    = 200 * time.Millisecond
	defaultWorkspacePrefix = "coderunner_"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string            `yaml:"addr"`
	Mode           string            `yaml:"mode"`
	ReadTimeout    time.Duration     `yaml:"readTimeout"`
	WriteTimeout   time.Duration     `yaml:"writeTimeout"`
	IdleTimeout    time.Duration     `yaml:"idleTimeout"`
	MaxSourceBytes int               `yaml:"maxSourceBytes"`
	Gzip           server.GzipConfig `yaml:"gzip"`
}

// RateLimitConfig holds the redis-backed execution rate limit.
type RateLimitConfig struct {
	Enabled      bool                       `yaml:"enabled"`
	RedisTimeout time.Duration              `yaml:"redisTimeout"`
	Policy       middleware.RateLimitPolicy `yaml:"policy"`
}

// WorkspaceConfig holds workspace settings.
type WorkspaceConfig struct {
	workspace.Config `yaml:",inline"`
	Prefix           string `yaml:"prefix"`
}

// LanguageConfig holds language definitions. An empty list selects the built-in set.
type LanguageConfig struct {
	Languages []profile.LanguageSpec `yaml:"languages"`
}

// AppConfig holds coderunner config.
type AppConfig struct {
	Server    ServerConfig      `yaml:"server"`
	Logger    logger.Config     `yaml:"logger"`
	Redis     cache.RedisConfig `yaml:"redis"`
	RateLimit RateLimitConfig   `yaml:"rateLimit"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	Engine    engine.Config     `yaml:"engine"`
	Language  LanguageConfig    `yaml:"language"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) error {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.MaxSourceBytes == 0 {
		cfg.Server.MaxSourceBytes = defaultMaxSourceBytes
	}
	if cfg.Server.Gzip.MinSize == 0 {
		cfg.Server.Gzip.MinSize = defaultGzipMinSize
	}

	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}

	if cfg.RateLimit.Policy.Window == 0 {
		cfg.RateLimit.Policy.Window = defaultRateWindow
	}
	if cfg.RateLimit.RedisTimeout == 0 {
		cfg.RateLimit.RedisTimeout = defaultRedisTimeout
	}
	if cfg.RateLimit.Enabled {
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when rateLimit is enabled")
		}
		redisDefaults := cache.DefaultRedisConfig()
		if cfg.Redis.DialTimeout == 0 {
			cfg.Redis.DialTimeout = redisDefaults.DialTimeout
		}
		if cfg.Redis.ReadTimeout == 0 {
			cfg.Redis.ReadTimeout = redisDefaults.ReadTimeout
		}
		if cfg.Redis.WriteTimeout == 0 {
			cfg.Redis.WriteTimeout = redisDefaults.WriteTimeout
		}
		if cfg.Redis.PoolSize == 0 {
			cfg.Redis.PoolSize = redisDefaults.PoolSize
		}
	}

	if cfg.Workspace.Prefix == "" {
		cfg.Workspace.Prefix = defaultWorkspacePrefix
	}
	if strings.ContainsAny(cfg.Workspace.Prefix, `/\`) {
		return fmt.Errorf("workspace.prefix must not contain path separators")
	}

	if len(cfg.Language.Languages) == 0 {
		cfg.Language.Languages = profile.DefaultLanguages()
	}
	for i := range cfg.Language.Languages {
		lang := cfg.Language.Languages[i].WithDefaults()
		if err := lang.Validate(); err != nil {
			return fmt.Errorf("invalid language config: %w", err)
		}
		cfg.Language.Languages[i] = lang
	}
	return nil
}
