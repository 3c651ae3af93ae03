package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the static configuration object supplied at startup.
// It is never mutated after LoadConfig returns.
type Config struct {
	Chains     ChainTable       `yaml:"chains"`
	Coingecko  CoingeckoConfig  `yaml:"coingecko"`
	Bubblemaps BubblemapsConfig `yaml:"bubblemaps"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Capture    CaptureConfig    `yaml:"capture"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Storage    StorageConfig    `yaml:"storage"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Port       string           `yaml:"port"`
}

// CoingeckoConfig configures the market-data provider client
type CoingeckoConfig struct {
	BaseURL            string `yaml:"base_url"`
	APIKey             string `yaml:"api_key"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	Burst              int    `yaml:"burst"`
}

// BubblemapsConfig configures the holder/decentralization provider client
// and the map page the capture engine navigates to.
type BubblemapsConfig struct {
	APIBaseURL         string `yaml:"api_base_url"`
	AppBaseURL         string `yaml:"app_base_url"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	Burst              int    `yaml:"burst"`
}

// AggregatorConfig configures per-provider retry behavior
type AggregatorConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
}

// CaptureConfig configures the headless browser session pool
type CaptureConfig struct {
	PoolSize       int           `yaml:"pool_size"`
	RenderTimeout  time.Duration `yaml:"render_timeout"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	RenderMarker   string        `yaml:"render_marker"`
	ViewportWidth  int           `yaml:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height"`
	ChromePath     string        `yaml:"chrome_path"`
}

// AnalysisConfig configures the request coordinator
type AnalysisConfig struct {
	RequestDeadline time.Duration `yaml:"request_deadline"`
	ResultTTL       time.Duration `yaml:"result_ttl"`
}

// StorageConfig configures the ephemeral screenshot store
type StorageConfig struct {
	Dir           string        `yaml:"dir"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxAge        time.Duration `yaml:"max_age"`
}

// TelegramConfig configures the messaging adapter. The adapter is disabled
// when no bot token is provided.
type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	PollTimeout int    `yaml:"poll_timeout"`
}

// LoadConfig reads the yaml config at path and applies defaults and
// environment overrides. A missing file is not an error: the defaults
// describe a working public-API setup.
func LoadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(config)

	if len(config.Chains) == 0 {
		config.Chains = DefaultChains()
	}
	if err := config.Chains.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Chains: DefaultChains(),
		Coingecko: CoingeckoConfig{
			BaseURL:            "https://api.coingecko.com/api/v3",
			RateLimitPerMinute: 30,
			Burst:              5,
		},
		Bubblemaps: BubblemapsConfig{
			APIBaseURL:         "https://api-legacy.bubblemaps.io",
			AppBaseURL:         "https://app.bubblemaps.io",
			RateLimitPerMinute: 60,
			Burst:              10,
		},
		Aggregator: AggregatorConfig{
			MaxRetries:  2,
			BaseBackoff: 500 * time.Millisecond,
		},
		Capture: CaptureConfig{
			PoolSize:       2,
			RenderTimeout:  30 * time.Second,
			SettleDelay:    12 * time.Second,
			RenderMarker:   "canvas.bubblemaps-canvas",
			ViewportWidth:  1920,
			ViewportHeight: 1080,
		},
		Analysis: AnalysisConfig{
			RequestDeadline: 90 * time.Second,
			ResultTTL:       2 * time.Minute,
		},
		Storage: StorageConfig{
			Dir:           "screenshots",
			SweepInterval: 5 * time.Minute,
			MaxAge:        15 * time.Minute,
		},
		Telegram: TelegramConfig{
			PollTimeout: 30,
		},
		Port: "8080",
	}
}

// applyEnvOverrides lets secrets and the port come from the environment
// rather than the yaml file.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		config.Telegram.BotToken = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		config.Coingecko.APIKey = v
	}
	if v := os.Getenv("PORT"); v != "" {
		config.Port = v
	}
}
