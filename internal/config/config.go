// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"` // per-request deadline, covers the model call
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	PublicURL       string        `yaml:"public_url"` // used for checkout/portal return URLs
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"` // apply embedded migrations on startup
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // deepseek|openai|gemini
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	Temperature     float64       `yaml:"temperature"`
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	GeminiModel     string        `yaml:"gemini_model"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent model calls
	Timeout         time.Duration `yaml:"timeout"`
}

type StripeConfig struct {
	SecretKey        string        `yaml:"secret_key"`
	WebhookSecret    string        `yaml:"webhook_secret"`
	APIBase          string        `yaml:"api_base"`
	WebhookTolerance time.Duration `yaml:"webhook_tolerance"`
}

type PaymentConfig struct {
	Stripe        StripeConfig `yaml:"stripe"`
	DefaultPlanID string       `yaml:"default_plan_id"` // paid tier used when a price ref cannot be resolved
	FreePlanID    string       `yaml:"free_plan_id"`
}

type IdentityConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	BaseURL    string `yaml:"base_url"`
	ServiceKey string `yaml:"service_key"`
	CookieName string `yaml:"cookie_name"`
}

type AdminConfig struct {
	Emails []string `yaml:"emails"`
}

type ChatConfig struct {
	HistoryWindow   int `yaml:"history_window"`
	RateLimit       int `yaml:"rate_limit"` // messages per minute per user, 0 disables
	SessionPageSize int `yaml:"session_page_size"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Payment  PaymentConfig  `yaml:"payment"`
	Identity IdentityConfig `yaml:"identity"`
	Admin    AdminConfig    `yaml:"admin"`
	Chat     ChatConfig     `yaml:"chat"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, loads a .env file when present and
// lets environment variables override secrets. A missing config file is not an
// error as long as the environment supplies the mandatory values.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "HTTP_ADDR")
	setString(&cfg.Server.PublicURL, "PUBLIC_URL")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.AI.Provider, "AI_PROVIDER")
	setString(&cfg.AI.APIKey, "DEEPSEEK_API_KEY")
	setString(&cfg.AI.BaseURL, "DEEPSEEK_API_URL")
	setString(&cfg.AI.Model, "DEEPSEEK_MODEL")
	setString(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	setString(&cfg.Payment.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setString(&cfg.Payment.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setString(&cfg.Identity.JWTSecret, "IDENTITY_JWT_SECRET")
	setString(&cfg.Identity.BaseURL, "IDENTITY_URL")
	setString(&cfg.Identity.ServiceKey, "IDENTITY_SERVICE_KEY")
	setString(&cfg.Security.EncryptionKey, "ENCRYPTION_KEY")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("ADMIN_EMAILS"); v != "" {
		cfg.Admin.Emails = ParseEmailList(v)
	}
	if v := os.Getenv("CHAT_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chat.RateLimit = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 90 * time.Second
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 75 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = "http://localhost:8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "deepseek"
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://api.deepseek.com/v1"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "deepseek-chat"
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.2
	}
	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 60 * time.Second
	}

	if cfg.Payment.Stripe.APIBase == "" {
		cfg.Payment.Stripe.APIBase = "https://api.stripe.com"
	}
	if cfg.Payment.Stripe.WebhookTolerance <= 0 {
		cfg.Payment.Stripe.WebhookTolerance = 5 * time.Minute
	}
	if cfg.Payment.DefaultPlanID == "" {
		cfg.Payment.DefaultPlanID = "pro"
	}
	if cfg.Payment.FreePlanID == "" {
		cfg.Payment.FreePlanID = "free"
	}
	if cfg.Identity.CookieName == "" {
		cfg.Identity.CookieName = "sb-access-token"
	}

	if cfg.Chat.HistoryWindow <= 0 {
		cfg.Chat.HistoryWindow = 20
	}
	if cfg.Chat.SessionPageSize <= 0 {
		cfg.Chat.SessionPageSize = 50
	}
}

// Minimal validation
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Identity.JWTSecret == "" {
		return errors.New("identity.jwt_secret is required")
	}
	if c.Payment.Stripe.WebhookSecret == "" {
		return errors.New("payment.stripe.webhook_secret is required")
	}
	switch c.AI.Provider {
	case "deepseek", "openai", "gemini":
	default:
		return fmt.Errorf("ai.provider %q is not supported", c.AI.Provider)
	}
	return nil
}

// ParseEmailList splits a comma or whitespace separated list of emails,
// lowercasing entries and dropping blanks.
func ParseEmailList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
