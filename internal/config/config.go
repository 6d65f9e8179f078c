package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// PublicBaseURL is the externally reachable base used to build the
	// training webhook callback. Leaving it unset falls back to a fixed
	// development tunnel, which is a deployment hazard outside dev.
	PublicBaseURL   string        `yaml:"public_base_url"`
	SessionSecret   string        `yaml:"session_secret"` // HS256 key for session tokens
	SubmitRateLimit int           `yaml:"submit_rate_limit"`
	SubmitRateWin   time.Duration `yaml:"submit_rate_window"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TrainerConfig struct {
	Token          string `yaml:"token"` // falls back to REPLICATE_API_TOKEN
	BaseURL        string `yaml:"base_url"`
	Owner          string `yaml:"owner"` // provider namespace owning created models
	TrainerVersion string `yaml:"trainer_version"`
	Hardware       string `yaml:"hardware"`
	Steps          int    `yaml:"steps"`
	Resolution     string `yaml:"resolution"`
	TriggerWord    string `yaml:"trigger_word"`
}

type StorageConfig struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	EndpointURL     string `yaml:"endpoint_url"` // S3-compatible endpoint, empty for AWS
	UploadPrefix    string `yaml:"upload_prefix"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Sender   string `yaml:"sender"`
}

type SweepConfig struct {
	Interval       time.Duration `yaml:"interval"`
	PendingTimeout time.Duration `yaml:"pending_timeout"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Trainer  TrainerConfig  `yaml:"trainer"`
	Storage  StorageConfig  `yaml:"storage"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Sweep    SweepConfig    `yaml:"sweep"`

	Runtime RuntimeConfig `yaml:"-"`
}

// devTunnelURL is the fallback callback base when public_base_url is unset.
const devTunnelURL = "https://portrait-ai.loca.lt"

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.PublicBaseURL == "" {
		cfg.Server.PublicBaseURL = devTunnelURL
	}
	if cfg.Server.SubmitRateLimit <= 0 {
		cfg.Server.SubmitRateLimit = 5
	}
	if cfg.Server.SubmitRateWin <= 0 {
		cfg.Server.SubmitRateWin = time.Minute
	}
	if cfg.Trainer.Token == "" {
		cfg.Trainer.Token = os.Getenv("REPLICATE_API_TOKEN")
	}
	if cfg.Trainer.Hardware == "" {
		cfg.Trainer.Hardware = "gpu-a100-large"
	}
	if cfg.Trainer.Steps <= 0 {
		cfg.Trainer.Steps = 1200
	}
	if cfg.Trainer.Resolution == "" {
		cfg.Trainer.Resolution = "1024"
	}
	if cfg.Trainer.TriggerWord == "" {
		cfg.Trainer.TriggerWord = "ohwx"
	}
	if cfg.Storage.UploadPrefix == "" {
		cfg.Storage.UploadPrefix = "training-data/"
	}
	if cfg.Sweep.Interval <= 0 {
		cfg.Sweep.Interval = 10 * time.Minute
	}
	if cfg.Sweep.PendingTimeout <= 0 {
		cfg.Sweep.PendingTimeout = 6 * time.Hour
	}

	// Minimal validation
	if cfg.Trainer.Token == "" {
		return nil, errors.New("trainer.token is required (or set REPLICATE_API_TOKEN)")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Server.SessionSecret == "" {
		return nil, errors.New("server.session_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
