//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

// clearEnv blanks the overrides so the host environment cannot leak in;
// setString ignores empty values.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"HTTP_ADDR", "PUBLIC_URL", "DATABASE_URL", "REDIS_URL", "AI_PROVIDER",
		"DEEPSEEK_API_KEY", "DEEPSEEK_MODEL", "IDENTITY_JWT_SECRET", "STRIPE_WEBHOOK_SECRET",
		"LOG_LEVEL", "ADMIN_EMAILS", "CHAT_RATE_LIMIT",
	} {
		t.Setenv(k, "")
	}
}

const minimalYAML = `
database:
  url: postgres://localhost/app
identity:
  jwt_secret: secret
payment:
  stripe:
    webhook_secret: whsec_test
`

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(writeConfig(t, minimalYAML), false)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.RequestTimeout != 75*time.Second {
		t.Fatalf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.AI.Provider != "deepseek" || cfg.AI.Model != "deepseek-chat" || cfg.AI.ConcurrentLimit != 16 {
		t.Fatalf("unexpected ai defaults %+v", cfg.AI)
	}
	if cfg.Payment.FreePlanID != "free" || cfg.Payment.DefaultPlanID != "pro" {
		t.Fatalf("unexpected plan defaults %+v", cfg.Payment)
	}
	if cfg.Payment.Stripe.WebhookTolerance != 5*time.Minute {
		t.Fatalf("unexpected tolerance %v", cfg.Payment.Stripe.WebhookTolerance)
	}
	if cfg.Chat.HistoryWindow != 20 || cfg.Redis.TTL != time.Hour {
		t.Fatalf("unexpected chat/redis defaults %+v %+v", cfg.Chat, cfg.Redis)
	}
	if cfg.Runtime.Dev {
		t.Fatal("dev must follow the flag")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://env/app")
	t.Setenv("ADMIN_EMAILS", "Ops@Example.com, dev@example.com;;")
	t.Setenv("CHAT_RATE_LIMIT", "12")
	t.Setenv("DEEPSEEK_MODEL", "  deepseek-reasoner ")

	cfg, err := LoadConfig(writeConfig(t, minimalYAML), true)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.URL != "postgres://env/app" {
		t.Fatalf("env must win over file, got %q", cfg.Database.URL)
	}
	if want := []string{"ops@example.com", "dev@example.com"}; !reflect.DeepEqual(cfg.Admin.Emails, want) {
		t.Fatalf("admins: want %v, got %v", want, cfg.Admin.Emails)
	}
	if cfg.Chat.RateLimit != 12 || cfg.AI.Model != "deepseek-reasoner" || !cfg.Runtime.Dev {
		t.Fatalf("unexpected overrides %+v %+v", cfg.Chat, cfg.AI)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		yaml string
	}{
		{"no database", "identity:\n  jwt_secret: s\npayment:\n  stripe:\n    webhook_secret: w\n"},
		{"no jwt secret", "database:\n  url: postgres://x\npayment:\n  stripe:\n    webhook_secret: w\n"},
		{"no webhook secret", "database:\n  url: postgres://x\nidentity:\n  jwt_secret: s\n"},
		{"bad provider", minimalYAML + "ai:\n  provider: llama\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.yaml), false); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadConfig_MissingFileUsesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://env/app")
	t.Setenv("IDENTITY_JWT_SECRET", "s")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "w")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), false)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Identity.CookieName != "sb-access-token" {
		t.Fatalf("unexpected cookie name %q", cfg.Identity.CookieName)
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "database: [unterminated"), false); err == nil {
		t.Fatal("expected a parse error")
	}
}
