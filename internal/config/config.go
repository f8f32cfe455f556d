package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Port          int    `yaml:"port"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	DSN          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
}

type MobizonConfig struct {
	APIKey   string `yaml:"api_key"`
	SenderID string `yaml:"sender_id"`
	DryRun   bool   `yaml:"dry_run"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
	// Requests allowed per Window on rate-limited public routes.
	RateLimit int           `yaml:"rate_limit"`
	Window    time.Duration `yaml:"window"`
}

// MetaConfig holds the Facebook app used for WhatsApp embedded signup and
// the webhook secrets.
type MetaConfig struct {
	AppID       string `yaml:"app_id"`
	AppSecret   string `yaml:"app_secret"`
	RedirectURL string `yaml:"redirect_url"`
	ConfigID    string `yaml:"config_id"`
	VerifyToken string `yaml:"verify_token"`
	APIVersion  string `yaml:"api_version"`
	StateSecret string `yaml:"state_secret"`
	// ReturnURL is the frontend page the OAuth callback redirects to.
	ReturnURL string `yaml:"return_url"`
}

type PaymentsConfig struct {
	KeyID     string `yaml:"key_id"`
	KeySecret string `yaml:"key_secret"`
	BaseURL   string `yaml:"base_url"`
	DryRun    bool   `yaml:"dry_run"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type WorkersConfig struct {
	ReaperInterval   time.Duration `yaml:"reaper_interval"`
	BroadcastWorkers int           `yaml:"broadcast_workers"`
	BroadcastQueue   int           `yaml:"broadcast_queue"`
}

type FilesConfig struct {
	FontPath string `yaml:"font_path"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Email    EmailConfig    `yaml:"email"`
	Mobizon  MobizonConfig  `yaml:"mobizon"`
	Redis    RedisConfig    `yaml:"redis"`
	Meta     MetaConfig     `yaml:"meta"`
	Payments PaymentsConfig `yaml:"payments"`
	Telegram TelegramConfig `yaml:"telegram"`
	Workers  WorkersConfig  `yaml:"workers"`
	Files    FilesConfig    `yaml:"files"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. A missing file is not an error when
// the environment provides the required values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	var cfg Config
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only configuration
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Server.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&c.Email.SMTPPassword, "SMTP_PASSWORD")
	setString(&c.Mobizon.APIKey, "MOBIZON_API_KEY")
	setString(&c.Meta.AppSecret, "META_APP_SECRET")
	setString(&c.Meta.VerifyToken, "META_VERIFY_TOKEN")
	setString(&c.Payments.KeySecret, "RAZORPAY_KEY_SECRET")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Server.PublicBaseURL = strings.TrimRight(c.Server.PublicBaseURL, "/")
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Redis.RateLimit == 0 {
		c.Redis.RateLimit = 20
	}
	if c.Redis.Window == 0 {
		c.Redis.Window = time.Minute
	}
	if c.Meta.APIVersion == "" {
		c.Meta.APIVersion = "v20.0"
	}
	if c.Meta.StateSecret == "" {
		c.Meta.StateSecret = c.Auth.JWTSecret
	}
	if c.Payments.BaseURL == "" {
		c.Payments.BaseURL = "https://api.razorpay.com/v1"
	}
	if c.Workers.ReaperInterval == 0 {
		c.Workers.ReaperInterval = time.Minute
	}
	if c.Workers.BroadcastWorkers == 0 {
		c.Workers.BroadcastWorkers = 4
	}
	if c.Workers.BroadcastQueue == 0 {
		c.Workers.BroadcastQueue = 64
	}
	if c.Files.FontPath == "" {
		c.Files.FontPath = "assets/fonts/DejaVuSans.ttf"
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database.url is required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: auth.jwt_secret is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
