package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram transport settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// ParseMode is applied by the live gateway to every text it delivers.
	ParseMode string `yaml:"parse_mode" envconfig:"TELEGRAM_PARSE_MODE"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// StoreConfig selects and configures the conversation store.
// The address scheme picks the backend: redis://, postgres:// (or postgresql://), memory://.
type StoreConfig struct {
	Address         string        `yaml:"address" envconfig:"STORE_ADDRESS"`
	TTL             time.Duration `yaml:"ttl" envconfig:"STORE_TTL"`
	DistributedLock bool          `yaml:"distributed_lock" envconfig:"STORE_DISTRIBUTED_LOCK"`
	MaxConnections  int           `yaml:"max_connections" envconfig:"STORE_MAX_CONNECTIONS"`
}

// GatewayConfig selects the outbound delivery mechanism.
type GatewayConfig struct {
	Mode string `yaml:"mode" envconfig:"GATEWAY_MODE"`
}

// WorkerConfig controls the per-conversation worker pool.
type WorkerConfig struct {
	Workers        int `yaml:"workers" envconfig:"WORKER_COUNT"`
	QueueSize      int `yaml:"queue_size" envconfig:"WORKER_QUEUE_SIZE"`
	MaxRetries     int `yaml:"max_retries" envconfig:"WORKER_MAX_RETRIES"`
	RetryBackoffMS int `yaml:"retry_backoff_ms" envconfig:"WORKER_RETRY_BACKOFF_MS"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level     string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format    string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder string `yaml:"keys_order"`
	Dir       string `yaml:"dir"`
	BotFile   string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
	// DebugSample thins high-volume debug events: "1/50", "10" (= 1/10) or "0" (keep all).
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
}

// MetricsConfig exposes the ops HTTP listener; empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// GatewayLive delivers requests to the Bot API.
	GatewayLive = "live"
	// GatewayIntercept synthesizes acknowledgments without any I/O.
	GatewayIntercept = "intercept"
)

const (
	// StoreRedis backs conversations with Redis.
	StoreRedis = "redis"
	// StorePostgres backs conversations with Postgres.
	StorePostgres = "postgres"
	// StoreMemory keeps conversations in process memory.
	StoreMemory = "memory"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard and media messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Store     StoreConfig     `yaml:"store"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Worker    WorkerConfig    `yaml:"worker"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Load reads configuration from a YAML file and environment variables.
// A missing file is tolerated so that a container can be configured by env alone.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}
	if strings.TrimSpace(cfg.Store.Address) == "" {
		return fmt.Errorf("store.address is required")
	}
	if _, err := StoreDriver(cfg.Store.Address); err != nil {
		return err
	}
	if cfg.Store.TTL < 0 {
		return fmt.Errorf("store.ttl must be >= 0")
	}
	if cfg.Store.MaxConnections <= 0 {
		cfg.Store.MaxConnections = 10
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

	switch pm := strings.ToLower(strings.TrimSpace(cfg.Telegram.ParseMode)); pm {
	case "", "html":
		cfg.Telegram.ParseMode = "HTML"
	case "markdownv2":
		cfg.Telegram.ParseMode = "MarkdownV2"
	case "markdown":
		cfg.Telegram.ParseMode = "Markdown"
	case "none":
		cfg.Telegram.ParseMode = ""
	default:
		return fmt.Errorf("invalid telegram.parse_mode %q; allowed: HTML, MarkdownV2, Markdown, none", cfg.Telegram.ParseMode)
	}

	gm := strings.ToLower(strings.TrimSpace(cfg.Gateway.Mode))
	if gm == "" {
		gm = GatewayLive
	}
	if gm != GatewayLive && gm != GatewayIntercept {
		return fmt.Errorf("invalid gateway.mode %q; allowed: live, intercept", cfg.Gateway.Mode)
	}
	cfg.Gateway.Mode = gm

	if cfg.Worker.Workers < 0 || cfg.Worker.QueueSize < 0 || cfg.Worker.MaxRetries < 0 || cfg.Worker.RetryBackoffMS < 0 {
		return fmt.Errorf("worker settings must be >= 0")
	}

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

// StoreDriver maps a store address to the backend that serves it.
func StoreDriver(address string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(address))
	if err != nil {
		return "", fmt.Errorf("invalid store.address: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "redis", "rediss":
		return StoreRedis, nil
	case "postgres", "postgresql":
		return StorePostgres, nil
	case "memory":
		return StoreMemory, nil
	}
	return "", fmt.Errorf("unsupported store.address scheme %q; allowed: redis, postgres, memory", u.Scheme)
}
