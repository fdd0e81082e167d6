package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	QueueMemory   = "memory"
	QueueRedis    = "redis"

	EnvDatabaseURL = "STAFFING_DATABASE_URL"
	EnvRedisURL    = "STAFFING_REDIS_URL"
)

// ReminderOffset configures one reminder sent ahead of an event start
type ReminderOffset struct {
	Label      string        `yaml:"label" validate:"required"`
	Before     time.Duration `yaml:"before" validate:"gt=0"`
	CheckDelay time.Duration `yaml:"checkDelay" validate:"gt=0"`
}

// KafkaConfig enables publishing domain events when Brokers is set
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty" validate:"omitempty,dive,hostname_port"`
	Topic   string   `yaml:"topic,omitempty" validate:"required_with=Brokers"`
}

// MailConfig enables an email copy of reminders and escalations
type MailConfig struct {
	Enabled     bool   `yaml:"enabled"`
	GmailUserID string `yaml:"gmailUserID,omitempty" validate:"required_if=Enabled true"`
	Sender      string `yaml:"sender,omitempty" validate:"omitempty,email"`
}

// Config represents the application configuration
type Config struct {
	Store            string           `yaml:"store" validate:"oneof=memory postgres"`
	DatabaseURL      string           `yaml:"databaseURL,omitempty" validate:"required_if=Store postgres"`
	TimerQueue       string           `yaml:"timerQueue" validate:"oneof=memory redis"`
	RedisURL         string           `yaml:"redisURL,omitempty" validate:"required_if=TimerQueue redis"`
	RedisKeyPrefix   string           `yaml:"redisKeyPrefix,omitempty"`
	DispatchInterval time.Duration    `yaml:"dispatchInterval" validate:"gt=0"`
	DispatchBatch    int              `yaml:"dispatchBatch" validate:"min=1"`
	EscalationRetry  time.Duration    `yaml:"escalationRetry" validate:"gt=0"`
	Reminders        []ReminderOffset `yaml:"reminders,omitempty" validate:"omitempty,unique=Label,dive"`
	SeriesRRule      string           `yaml:"seriesRRule,omitempty"`
	Locale           string           `yaml:"locale" validate:"bcp47_language_tag"`
	MetricsAddr      string           `yaml:"metricsAddr,omitempty" validate:"omitempty,hostname_port"`
	Kafka            KafkaConfig      `yaml:"kafka,omitempty"`
	Mail             MailConfig       `yaml:"mail,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from staffing_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads the configuration for an environment. env="test" looks
// for staffing_config.test.yaml. A .env file, when present, is read first so
// its variables can override the file.
func LoadWithEnv(env string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		cfg.RedisURL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Store == "" {
		cfg.Store = StoreMemory
	}
	if cfg.TimerQueue == "" {
		cfg.TimerQueue = QueueMemory
	}
	if cfg.RedisKeyPrefix == "" {
		cfg.RedisKeyPrefix = "staffing"
	}
	if cfg.DispatchInterval == 0 {
		cfg.DispatchInterval = 30 * time.Second
	}
	if cfg.DispatchBatch == 0 {
		cfg.DispatchBatch = 100
	}
	if cfg.EscalationRetry == 0 {
		cfg.EscalationRetry = 15 * time.Minute
	}
	if cfg.Locale == "" {
		cfg.Locale = "en"
	}
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.SeriesRRule != "" {
		if _, err := rrule.StrToROption(cfg.SeriesRRule); err != nil {
			return fmt.Errorf("invalid seriesRRule: %w", err)
		}
	}

	return nil
}

func findConfigFile(env string) (string, error) {
	if env != "" {
		return findFile("staffing_config." + env + ".yaml")
	}
	return findFile("staffing_config.yaml")
}
