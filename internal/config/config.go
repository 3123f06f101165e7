package config

import (
	"fmt"
	"os"
	"time"

	"taskboard/pkg/config"
	"taskboard/pkg/logger"
)

type ReminderConfig struct {
	SweepSchedule string `yaml:"sweep_schedule"`
	DedupEnabled  bool   `yaml:"dedup_enabled"`
}

type ConsumerConfig struct {
	BatchSize   int           `yaml:"batch_size"`
	BatchWait   time.Duration `yaml:"batch_wait"`
	Concurrency int           `yaml:"concurrency"`
	MaxRetries  int64         `yaml:"max_retries"`
}

type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Config struct {
	Server    config.ServerConfig `yaml:"server"`
	Ops       config.ServerConfig `yaml:"ops"`
	DB        config.DBConfig     `yaml:"db"`
	MQ        config.MQConfig     `yaml:"mq"`
	Redis     config.RedisConfig  `yaml:"redis"`
	JWT       config.JWTConfig    `yaml:"jwt"`
	Log       logger.Config       `yaml:"log"`
	Reminder  ReminderConfig      `yaml:"reminder"`
	Consumer  ConsumerConfig      `yaml:"consumer"`
	RateLimit RateLimitConfig     `yaml:"rate_limit"`
	CORS      CORSConfig          `yaml:"cors"`
}

// Load reads the layered configuration selected by CONFIG_ENV and CONFIG_DIR.
func Load() (*Config, error) {
	return LoadFrom(config.GetConfigEnv(), config.GetEnv("CONFIG_DIR", "config"))
}

func LoadFrom(env, configDir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := defaults()
	if err := config.Decode(cfgMap, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// environment variables win over files
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server:   config.ServerConfig{Port: ":8080"},
		Ops:      config.ServerConfig{Port: ":9090"},
		Log:      logger.Config{Level: "info", Encoding: "json"},
		Reminder: ReminderConfig{SweepSchedule: "@every 1h"},
		Consumer: ConsumerConfig{
			BatchSize:   10,
			BatchWait:   time.Second,
			Concurrency: 5,
			MaxRetries:  3,
		},
	}
}

func (c *Config) validate() error {
	if c.Consumer.BatchSize <= 0 {
		return fmt.Errorf("consumer.batch_size must be positive, got %d", c.Consumer.BatchSize)
	}
	if c.Consumer.Concurrency <= 0 {
		return fmt.Errorf("consumer.concurrency must be positive, got %d", c.Consumer.Concurrency)
	}
	if c.Consumer.MaxRetries < 0 {
		return fmt.Errorf("consumer.max_retries must not be negative, got %d", c.Consumer.MaxRetries)
	}
	if c.RateLimit.PerSecond < 0 {
		return fmt.Errorf("rate_limit.per_second must not be negative, got %v", c.RateLimit.PerSecond)
	}
	return nil
}
