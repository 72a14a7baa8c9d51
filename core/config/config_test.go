package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
telegram:
  token: "123:abc"
provider:
  base_url: "https://api.acme.example"
  app_url: "https://app.acme.example/"
  api_key: "k"
crypto:
  encryption_key: "%KEY%"
chains:
  supported:
    - { id: "8453", name: Base, evm: true }
    - { id: "Solana", name: Solana }
bot:
  featured:
    trade: [PONKE]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body = strings.ReplaceAll(body, "%KEY%", strings.Repeat("0f", 32))
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.Provider.BaseURL != "https://api.acme.example/" || cfg.Provider.AppURL != "https://app.acme.example" {
		t.Fatalf("provider = %+v", cfg.Provider)
	}
	if cfg.Provider.VaultURL != "https://app.acme.example/vault" {
		t.Fatalf("vault = %q", cfg.Provider.VaultURL)
	}
	if cfg.Auth.TTL != 7*24*time.Hour || len(cfg.Auth.AuthenticatedIntents) == 0 {
		t.Fatalf("auth = %+v", cfg.Auth)
	}
	if cfg.Remote.Attempts != 3 || cfg.Remote.Timeout != 10*time.Second {
		t.Fatalf("remote = %+v", cfg.Remote)
	}
	if cfg.Chains.Supported[1].ID != SolanaChainID {
		t.Fatalf("solana id = %q", cfg.Chains.Supported[1].ID)
	}
	if cfg.Hooks.Path != "/acme" || cfg.Bot.MaxListedTokens != 3 || cfg.Bot.TopTokensTTL != time.Hour {
		t.Fatalf("hooks = %+v bot = %+v", cfg.Hooks, cfg.Bot)
	}
	if cfg.Database.Enabled() {
		t.Fatal("database should be disabled without a host")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ACME_API_KEY", "from-env")
	t.Setenv("AUTHENTICATED_COMMANDS", "/Trade,pay")
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider.APIKey != "from-env" {
		t.Fatalf("api key = %q", cfg.Provider.APIKey)
	}
	if got := strings.Join(cfg.Auth.AuthenticatedIntents, ","); got != "trade,pay" {
		t.Fatalf("intents = %q", got)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"missing token":   func(c *Config) { c.Telegram.Token = "" },
		"bad run mode":    func(c *Config) { c.Telegram.RunMode = "push" },
		"short key":       func(c *Config) { c.Crypto.EncryptionKey = "abcd" },
		"no chains":       func(c *Config) { c.Chains.Supported = nil },
		"duplicate chain": func(c *Config) { c.Chains.Supported = append(c.Chains.Supported, Chain{ID: "8453"}) },
		"bad exclude":     func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"inline"} },
		"webhook no url":  func(c *Config) { c.Telegram.RunMode = RunModeWebhook },
	}
	for name, mutate := range cases {
		cfg := &Config{
			Telegram: TelegramConfig{Token: "t"},
			Provider: ProviderConfig{BaseURL: "https://api.acme.example/", AppURL: "https://app", APIKey: "k"},
			Crypto:   CryptoConfig{EncryptionKey: strings.Repeat("0f", 32)},
			Chains:   ChainsConfig{Supported: []Chain{{ID: "8453"}}},
		}
		mutate(cfg)
		if err := Normalize(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
