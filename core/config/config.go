package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies Telegram webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Redact lists extra attribute keys whose values never reach the sinks.
	Redact []string `yaml:"redact"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// DatabaseConfig holds postgres settings for the order ledger.
// An empty Host disables the database entirely.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// Enabled reports whether a database was configured.
func (d DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(d.Host) != ""
}

// ProviderConfig describes the Acme backend.
type ProviderConfig struct {
	BaseURL     string `yaml:"base_url" envconfig:"ACME_URL"`
	AppURL      string `yaml:"app_url" envconfig:"ACME_APP_URL"`
	APIKey      string `yaml:"api_key" envconfig:"ACME_API_KEY"`
	RedirectURL string `yaml:"redirect_url" envconfig:"ACME_REDIRECT_URL"`
	VaultURL    string `yaml:"vault_url" envconfig:"ACME_VAULT_URL"`
	// PayTo is the settlement address used when a receiver profile carries no wallet.
	PayTo string `yaml:"pay_to" envconfig:"ACME_PAY_TO"`

	Claim ClaimConfig `yaml:"claim"`
}

// ClaimConfig is the fixed loyalty-card body sent with every identity claim.
type ClaimConfig struct {
	ContractAddress string `yaml:"contract_address"`
	ChainID         string `yaml:"chain_id"`
	Name            string `yaml:"name"`
	ImageURI        string `yaml:"image_uri"`
	Description     string `yaml:"description"`
	WebsiteURL      string `yaml:"website_url"`
}

// CryptoConfig carries the pre-shared envelope key.
type CryptoConfig struct {
	EncryptionKey string `yaml:"encryption_key" envconfig:"ACME_ENCRYPTION_KEY"`
}

// AuthConfig controls the auth cache.
type AuthConfig struct {
	TTL                  time.Duration `yaml:"ttl" envconfig:"AUTH_TTL"`
	AuthenticatedIntents []string      `yaml:"authenticated_intents" envconfig:"AUTHENTICATED_COMMANDS"`
}

// RemoteConfig is the retry policy for outbound HTTP calls.
type RemoteConfig struct {
	Attempts int           `yaml:"attempts" envconfig:"RETRY_COUNT"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"DEFAULT_TIMEOUT"`
	Backoff  time.Duration `yaml:"backoff" envconfig:"RETRY_BACKOFF"`
}

// Chain is one supported network.
type Chain struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Platform string `yaml:"platform"`
	EVM      bool   `yaml:"evm"`
}

// ChainsConfig lists supported networks and the lookup services.
type ChainsConfig struct {
	AggregatorURL string  `yaml:"aggregator_url" envconfig:"LIFI_URL"`
	MarketURL     string  `yaml:"market_url" envconfig:"COINGECKO_URL"`
	Supported     []Chain `yaml:"supported"`
}

// HooksConfig is the listener for provider callbacks.
type HooksConfig struct {
	Listen string `yaml:"listen" envconfig:"HOOKS_LISTEN"`
	Port   int    `yaml:"port" envconfig:"PORT"`
	Path   string `yaml:"path"`
	// PublicURL is registered with the provider at startup when set.
	PublicURL string `yaml:"public_url" envconfig:"HOOKS_PUBLIC_URL"`
	// PublicKeyFile enables acme-signature verification.
	PublicKeyFile string `yaml:"public_key_file" envconfig:"ACME_PUBLIC_KEY_FILE"`
}

// BotConfig groups conversation level settings.
type BotConfig struct {
	Group           string              `yaml:"group" envconfig:"ACME_GROUP"`
	MaxListedTokens int                 `yaml:"max_listed_tokens"`
	TopTokensTTL    time.Duration       `yaml:"top_tokens_ttl"`
	TopTokens       []string            `yaml:"top_tokens"`
	Featured        map[string][]string `yaml:"featured"`
	MenuPhoto       string              `yaml:"menu_photo"`
	TradePhoto      string              `yaml:"trade_photo"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for rate limiting.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// SolanaChainID is the numeric id the aggregator reports for Solana.
const SolanaChainID = "1151111081099710"

// Config aggregates the whole bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database"`
	Provider  ProviderConfig  `yaml:"provider"`
	Crypto    CryptoConfig    `yaml:"crypto"`
	Auth      AuthConfig      `yaml:"auth"`
	Remote    RemoteConfig    `yaml:"remote"`
	Chains    ChainsConfig    `yaml:"chains"`
	Hooks     HooksConfig     `yaml:"hooks"`
	Bot       BotConfig       `yaml:"bot"`
}

// CoreConfig lets *Config satisfy the runner's config carrier.
func (c *Config) CoreConfig() *Config { return c }

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if key != UpdateCallback && key != UpdateMessage {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if err := normalizeProvider(&cfg.Provider); err != nil {
		return err
	}

	key, err := hex.DecodeString(strings.TrimSpace(cfg.Crypto.EncryptionKey))
	if err != nil || len(key) != 32 {
		return fmt.Errorf("crypto.encryption_key must be 64 hex characters")
	}

	if cfg.Auth.TTL <= 0 {
		cfg.Auth.TTL = 7 * 24 * time.Hour
	}
	if len(cfg.Auth.AuthenticatedIntents) == 0 {
		cfg.Auth.AuthenticatedIntents = []string{"trade", "pay", "request", "vault", "list", "share", "top3", "buy"}
	}
	for i, v := range cfg.Auth.AuthenticatedIntents {
		cfg.Auth.AuthenticatedIntents[i] = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(v)), "/")
	}

	if cfg.Remote.Attempts <= 0 {
		cfg.Remote.Attempts = 3
	}
	if cfg.Remote.Timeout <= 0 {
		cfg.Remote.Timeout = 10 * time.Second
	}
	if cfg.Remote.Backoff < 0 {
		return fmt.Errorf("remote.backoff must be >= 0")
	}

	if err := normalizeChains(&cfg.Chains); err != nil {
		return err
	}

	if cfg.Hooks.Port < 0 {
		return fmt.Errorf("hooks.port must be >= 0")
	}
	if cfg.Hooks.Path == "" {
		cfg.Hooks.Path = "/acme"
	}
	if !strings.HasPrefix(cfg.Hooks.Path, "/") {
		cfg.Hooks.Path = "/" + cfg.Hooks.Path
	}

	if cfg.Bot.MaxListedTokens <= 0 {
		cfg.Bot.MaxListedTokens = 3
	}
	if cfg.Bot.TopTokensTTL <= 0 {
		cfg.Bot.TopTokensTTL = time.Hour
	}

	if cfg.Database.Enabled() {
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = 5
		}
		if cfg.Database.MigrationsDir == "" {
			cfg.Database.MigrationsDir = "migrations"
		}
	}
	return nil
}

func normalizeProvider(p *ProviderConfig) error {
	if _, err := url.ParseRequestURI(p.BaseURL); err != nil {
		return fmt.Errorf("provider.base_url is invalid: %w", err)
	}
	if !strings.HasSuffix(p.BaseURL, "/") {
		p.BaseURL += "/"
	}
	if strings.TrimSpace(p.AppURL) == "" {
		return fmt.Errorf("provider.app_url is required")
	}
	p.AppURL = strings.TrimRight(p.AppURL, "/")
	if strings.TrimSpace(p.APIKey) == "" {
		return fmt.Errorf("provider.api_key is required")
	}
	if p.VaultURL == "" {
		p.VaultURL = p.AppURL + "/vault"
	}
	if p.PayTo == "" {
		p.PayTo = "0x5f7e82d3c06bD1a244461febf56D3d8976B5b581"
	}
	c := &p.Claim
	if c.ContractAddress == "" {
		c.ContractAddress = "0xC4F7f435F9cECA0c844f3dDA46EeC00c4F7E34FC"
	}
	if c.ChainID == "" {
		c.ChainID = "137"
	}
	if c.Name == "" {
		c.Name = "Telegram User"
	}
	if c.ImageURI == "" {
		c.ImageURI = "https://static-00.iconduck.com/assets.00/telegram-icon-2048x2048-30xu965w.png"
	}
	if c.Description == "" {
		c.Description = "Telegram User Claim"
	}
	if c.WebsiteURL == "" {
		c.WebsiteURL = "https://acme.am/"
	}
	return nil
}

func normalizeChains(c *ChainsConfig) error {
	if c.AggregatorURL == "" {
		c.AggregatorURL = "https://li.quest/v1"
	}
	if c.MarketURL == "" {
		c.MarketURL = "https://api.coingecko.com/api/v3"
	}
	c.AggregatorURL = strings.TrimRight(c.AggregatorURL, "/")
	c.MarketURL = strings.TrimRight(c.MarketURL, "/")
	if len(c.Supported) == 0 {
		return fmt.Errorf("chains.supported must list at least one chain")
	}
	seen := make(map[string]struct{}, len(c.Supported))
	for i, ch := range c.Supported {
		id := strings.TrimSpace(ch.ID)
		if strings.EqualFold(id, "solana") {
			id = SolanaChainID
		}
		if id == "" {
			return fmt.Errorf("chains.supported[%d].id is required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("chains.supported[%d]: duplicate chain id %s", i, id)
		}
		seen[id] = struct{}{}
		c.Supported[i].ID = id
	}
	return nil
}
