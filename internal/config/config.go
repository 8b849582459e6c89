package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"milletsmon/internal/objectstore"
	"milletsmon/pkg/config"
	"milletsmon/pkg/otel"
)

// StoreConfig 客户端缓存配置
type StoreConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	CategoryTTL    time.Duration `yaml:"category_ttl"`
	PersistTTL     time.Duration `yaml:"persist_ttl"`
	RefreshCron    string        `yaml:"refresh_cron"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`
	LoadTimeout    time.Duration `yaml:"load_timeout"`
}

// SessionConfig 会话配置；JWT 密钥与 token 有效期来自 jwt 段
type SessionConfig struct {
	UserRefreshInterval time.Duration `yaml:"user_refresh_interval"`

	// RecheckInterval 内存中的会话超过该间隔后到 Redis 重新确认，其他实例的登出由此生效
	RecheckInterval time.Duration `yaml:"recheck_interval"`
}

type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

type Config struct {
	Server   config.ServerConfig  `yaml:"server"`
	Backend  config.BackendConfig `yaml:"backend"`
	DB       config.DBConfig      `yaml:"db"`
	Redis    config.RedisConfig   `yaml:"redis"`
	MQ       config.MQConfig      `yaml:"mq"`
	JWT      config.JWTConfig     `yaml:"jwt"`
	Session  SessionConfig        `yaml:"session"`
	Store    StoreConfig          `yaml:"store"`
	Storage  objectstore.Config   `yaml:"storage"`
	Upload   UploadConfig         `yaml:"upload"`
	OTel     otel.Config          `yaml:"otel"`
	Instance string               `yaml:"instance"`
}

// Load 读取 {dir}/base.yaml + {env}.yaml + secrets.env，再用环境变量覆盖
func Load(env, dir string) (*Config, error) {
	raw, err := config.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := config.Decode(raw, &cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideBackendFromEnv(&cfg.Backend)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideJWTFromEnv(&cfg.JWT)
	if mode := os.Getenv("STORAGE_MODE"); mode != "" {
		cfg.Storage.Mode = mode
	}
	if cfg.Instance == "" {
		cfg.Instance, _ = os.Hostname()
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.JWT.TTL <= 0 {
		cfg.JWT.TTL = 12 * time.Hour
	}
	if cfg.Store.TTL <= 0 {
		cfg.Store.TTL = 5 * time.Minute
	}
	if cfg.Store.CategoryTTL <= 0 {
		cfg.Store.CategoryTTL = 24 * time.Hour
	}
	if cfg.Store.RefreshCron == "" {
		cfg.Store.RefreshCron = "*/10 * * * *"
	}
	if cfg.Storage.Mode == "" {
		cfg.Storage.Mode = objectstore.ModeBackend
	}
	if cfg.Upload.MaxBytes <= 0 {
		cfg.Upload.MaxBytes = 10 << 20
	}
}

// Validate 启动前检查必填项
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	}
	if len(c.JWT.Secret) < 16 {
		errs = append(errs, errors.New("jwt.secret must be at least 16 characters"))
	}
	switch c.Storage.Mode {
	case objectstore.ModeBackend:
	case objectstore.ModeS3:
		if c.Storage.Bucket == "" || c.Storage.Region == "" {
			errs = append(errs, errors.New("storage.bucket and storage.region are required in s3 mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.mode %q", c.Storage.Mode))
	}
	return errors.Join(errs...)
}
