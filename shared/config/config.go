package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Notification channel names accepted in notify.channels
const (
	ChannelLog   = "log"
	ChannelEmail = "email"
	ChannelGmail = "gmail"
	ChannelNATS  = "nats"
	ChannelSQS   = "sqs"
)

// Storage backends accepted in storage.backend
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendNATS     = "nats"
)

type Config struct {
	Location   LocationConfig   `yaml:"location" toml:"location"`
	Weather    WeatherConfig    `yaml:"weather" toml:"weather"`
	Alerts     AlertsConfig     `yaml:"alerts" toml:"alerts"`
	AI         AIConfig         `yaml:"ai" toml:"ai"`
	Storage    StorageConfig    `yaml:"storage" toml:"storage"`
	Notify     NotifyConfig     `yaml:"notify" toml:"notify"`
	Email      EmailConfig      `yaml:"email" toml:"email"`
	Monitoring MonitoringConfig `yaml:"monitoring" toml:"monitoring"`
	Logging    LogConfig        `yaml:"logging" toml:"logging"`
	Schedule   string           `yaml:"schedule" toml:"schedule"`
}

type LocationConfig struct {
	Name      string  `yaml:"name" toml:"name"`
	Latitude  float64 `yaml:"latitude" toml:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `yaml:"longitude" toml:"longitude" validate:"gte=-180,lte=180"`
	Region    string  `yaml:"region" toml:"region"`
	Country   string  `yaml:"country" toml:"country"`
	Timezone  string  `yaml:"timezone" toml:"timezone"`
}

type WeatherConfig struct {
	URL            string `yaml:"url" toml:"url" validate:"omitempty,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds" validate:"gte=0"`
	MaxRetries     int    `yaml:"max_retries" toml:"max_retries" validate:"gte=0,lte=10"`
	RetryDelayMS   int    `yaml:"retry_delay_ms" toml:"retry_delay_ms" validate:"gte=0"`
}

type AlertsConfig struct {
	CooldownMinutes          int `yaml:"cooldown_minutes" toml:"cooldown_minutes" validate:"gte=0"`
	SampleCapacity           int `yaml:"sample_capacity" toml:"sample_capacity" validate:"gte=0"`
	DispatchCapacity         int `yaml:"dispatch_capacity" toml:"dispatch_capacity" validate:"gte=0"`
	EnrichmentTimeoutSeconds int `yaml:"enrichment_timeout_seconds" toml:"enrichment_timeout_seconds" validate:"gte=0"`
}

// Cooldown returns the configured cooldown as a duration
func (a AlertsConfig) Cooldown() time.Duration {
	return time.Duration(a.CooldownMinutes) * time.Minute
}

// EnrichmentTimeout returns the configured enrichment timeout as a duration
func (a AlertsConfig) EnrichmentTimeout() time.Duration {
	return time.Duration(a.EnrichmentTimeoutSeconds) * time.Second
}

type AIConfig struct {
	Enabled      bool   `yaml:"enabled" toml:"enabled"`
	GeminiAPIKey string `yaml:"gemini_api_key" toml:"gemini_api_key"`
	Model        string `yaml:"model" toml:"model"`
}

type StorageConfig struct {
	Backend string          `yaml:"backend" toml:"backend" validate:"oneof=memory file sqlite postgres nats"`
	DataDir string          `yaml:"data_dir" toml:"data_dir"`
	DSN     string          `yaml:"dsn" toml:"dsn"`
	NATS    NATSStateConfig `yaml:"nats" toml:"nats"`
}

type NATSStateConfig struct {
	URL            string `yaml:"url" toml:"url"`
	Bucket         string `yaml:"bucket" toml:"bucket"`
	AllowCreate    bool   `yaml:"allow_create" toml:"allow_create"`
	ConnectName    string `yaml:"connect_name" toml:"connect_name"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

type NotifyConfig struct {
	Channels []string         `yaml:"channels" toml:"channels" validate:"dive,oneof=log email gmail nats sqs"`
	NATS     NATSNotifyConfig `yaml:"nats" toml:"nats"`
	SQS      SQSConfig        `yaml:"sqs" toml:"sqs"`
	Gmail    GmailConfig      `yaml:"gmail" toml:"gmail"`
}

type NATSNotifyConfig struct {
	URL     string `yaml:"url" toml:"url"`
	Subject string `yaml:"subject" toml:"subject"`
	Stream  string `yaml:"stream" toml:"stream"`
}

type SQSConfig struct {
	Region   string `yaml:"region" toml:"region"`
	QueueURL string `yaml:"queue_url" toml:"queue_url"`
}

type GmailConfig struct {
	ClientID     string `yaml:"client_id" toml:"client_id"`
	ClientSecret string `yaml:"client_secret" toml:"client_secret"`
	TokenFile    string `yaml:"token_file" toml:"token_file"`
	ToEmail      string `yaml:"to_email" toml:"to_email"`
}

type EmailConfig struct {
	SMTPServer string `yaml:"smtp_server" toml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port" toml:"smtp_port"`
	Username   string `yaml:"username" toml:"username"`
	Password   string `yaml:"password" toml:"password"`
	FromEmail  string `yaml:"from_email" toml:"from_email"`
	ToEmail    string `yaml:"to_email" toml:"to_email"`
}

type MonitoringConfig struct {
	HealthPort int `yaml:"health_port" toml:"health_port" validate:"gte=0,lte=65535"`
}

// LogSinkConfig configures one log output
type LogSinkConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Level   string `yaml:"level" toml:"level"`
	Format  string `yaml:"format" toml:"format"`
	Path    string `yaml:"path" toml:"path"`
}

type LogConfig struct {
	Console LogSinkConfig `yaml:"console" toml:"console"`
	File    LogSinkConfig `yaml:"file" toml:"file"`
}

// envOverrides holds secrets and endpoints that may come from the environment
type envOverrides struct {
	GeminiAPIKey       string `envconfig:"GEMINI_API_KEY"`
	EmailUsername      string `envconfig:"EMAIL_USERNAME"`
	EmailPassword      string `envconfig:"EMAIL_PASSWORD"`
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	StorageDSN         string `envconfig:"STORAGE_DSN"`
	NATSURL            string `envconfig:"NATS_URL"`
	SQSQueueURL        string `envconfig:"SQS_QUEUE_URL"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}

	return LoadFile(configFile)
}

// LoadFile reads, defaults and validates the configuration at path.
// The format is chosen by extension: .toml uses TOML, anything else YAML.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	cfg.applyEnv(env)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes raw configuration bytes without applying defaults
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (c *Config) applyEnv(env envOverrides) {
	if c.AI.GeminiAPIKey == "" {
		c.AI.GeminiAPIKey = env.GeminiAPIKey
	}
	if c.Email.Username == "" {
		c.Email.Username = env.EmailUsername
	}
	if c.Email.Password == "" {
		c.Email.Password = env.EmailPassword
	}
	if c.Notify.Gmail.ClientID == "" {
		c.Notify.Gmail.ClientID = env.GoogleClientID
	}
	if c.Notify.Gmail.ClientSecret == "" {
		c.Notify.Gmail.ClientSecret = env.GoogleClientSecret
	}
	if c.Storage.DSN == "" {
		c.Storage.DSN = env.StorageDSN
	}
	if c.Storage.NATS.URL == "" {
		c.Storage.NATS.URL = env.NATSURL
	}
	if c.Notify.NATS.URL == "" {
		c.Notify.NATS.URL = env.NATSURL
	}
	if c.Notify.SQS.QueueURL == "" {
		c.Notify.SQS.QueueURL = env.SQSQueueURL
	}
}

func (c *Config) applyDefaults() {
	if c.Weather.URL == "" {
		c.Weather.URL = "https://api.open-meteo.com/v1/forecast"
	}
	if c.Weather.TimeoutSeconds == 0 {
		c.Weather.TimeoutSeconds = 30
	}
	if c.Weather.MaxRetries == 0 {
		c.Weather.MaxRetries = 3
	}
	if c.Weather.RetryDelayMS == 0 {
		c.Weather.RetryDelayMS = 1000
	}

	if c.Alerts.CooldownMinutes == 0 {
		c.Alerts.CooldownMinutes = 120 // 2 hours between similar alerts
	}
	if c.Alerts.SampleCapacity == 0 {
		c.Alerts.SampleCapacity = 24
	}
	if c.Alerts.DispatchCapacity == 0 {
		c.Alerts.DispatchCapacity = 10
	}
	if c.Alerts.EnrichmentTimeoutSeconds == 0 {
		c.Alerts.EnrichmentTimeoutSeconds = 5
	}

	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash"
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.NATS.Bucket == "" {
		c.Storage.NATS.Bucket = "weather_alerts"
	}
	if c.Storage.NATS.URL == "" {
		c.Storage.NATS.URL = "nats://127.0.0.1:4222"
	}

	if len(c.Notify.Channels) == 0 {
		c.Notify.Channels = []string{ChannelLog}
	}
	if c.Notify.NATS.Subject == "" {
		c.Notify.NATS.Subject = "weather.alerts"
	}
	if c.Notify.NATS.Stream == "" {
		c.Notify.NATS.Stream = "WEATHER_ALERTS"
	}
	if c.Notify.NATS.URL == "" {
		c.Notify.NATS.URL = c.Storage.NATS.URL
	}
	if c.Notify.Gmail.TokenFile == "" {
		c.Notify.Gmail.TokenFile = "gmail_token.json"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}

	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8080
	}

	if !c.Logging.Console.Enabled && !c.Logging.File.Enabled {
		c.Logging.Console.Enabled = true
	}
	if c.Logging.Console.Level == "" {
		c.Logging.Console.Level = "info"
	}
	if c.Logging.Console.Format == "" {
		c.Logging.Console.Format = "line"
	}
	if c.Logging.File.Level == "" {
		c.Logging.File.Level = "info"
	}
	if c.Logging.File.Format == "" {
		c.Logging.File.Format = "json"
	}

	if c.Schedule == "" {
		c.Schedule = "0 */30 * * * *" // Every 30 minutes
	}
}

// Validate checks struct constraints and cross-field requirements
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Location.Latitude == 0 && c.Location.Longitude == 0 {
		return fmt.Errorf("location coordinates must be configured (location.latitude and location.longitude)")
	}

	if c.AI.Enabled && c.AI.GeminiAPIKey == "" {
		return fmt.Errorf("Gemini API key is required when ai.enabled is set (set GEMINI_API_KEY or ai.gemini_api_key)")
	}

	if (c.Storage.Backend == BackendSQLite || c.Storage.Backend == BackendPostgres) && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for the %s backend (set STORAGE_DSN or storage.dsn)", c.Storage.Backend)
	}

	for _, channel := range c.Notify.Channels {
		switch channel {
		case ChannelEmail:
			if c.Email.SMTPServer == "" || c.Email.ToEmail == "" {
				return fmt.Errorf("email channel requires email.smtp_server and email.to_email")
			}
			if c.Email.Username == "" || c.Email.Password == "" {
				return fmt.Errorf("email channel requires credentials (set EMAIL_USERNAME/EMAIL_PASSWORD or email.username/email.password)")
			}
		case ChannelGmail:
			if c.Notify.Gmail.ClientID == "" || c.Notify.Gmail.ClientSecret == "" {
				return fmt.Errorf("gmail channel requires client credentials (set GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET)")
			}
			if c.Notify.Gmail.ToEmail == "" {
				return fmt.Errorf("gmail channel requires notify.gmail.to_email")
			}
		case ChannelSQS:
			if c.Notify.SQS.QueueURL == "" {
				return fmt.Errorf("sqs channel requires a queue URL (set SQS_QUEUE_URL or notify.sqs.queue_url)")
			}
		}
	}
	return nil
}
