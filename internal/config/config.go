package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultModel             = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens         = 8192
	DefaultMaxToolIterations = 20
	DefaultRequestTimeout    = 120
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 18590
	DefaultBufSize           = 100
	DefaultGeocodingURL      = "https://geocoding-api.open-meteo.com"
	DefaultForecastURL       = "https://api.open-meteo.com"
	DefaultProbeInterval     = 300
)

type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Channels  ChannelsConfig  `json:"channels"`
	Provider  ProviderConfig  `json:"provider"`
	OpenMeteo OpenMeteoConfig `json:"openMeteo"`
	Gateway   GatewayConfig   `json:"gateway"`
	Digest    DigestConfig    `json:"digest"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
}

type AgentConfig struct {
	Workspace         string `json:"workspace"`
	Model             string `json:"model"`
	MaxTokens         int    `json:"maxTokens"`
	MaxToolIterations int    `json:"maxToolIterations"`
	RequestTimeout    int    `json:"requestTimeout"` // seconds, per agent request
}

type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "anthropic" (default) or "openai"
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type OpenMeteoConfig struct {
	GeocodingURL string `json:"geocodingUrl"`
	ForecastURL  string `json:"forecastUrl"`
	AliasFile    string `json:"aliasFile,omitempty"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	WebUI    WebUIConfig    `json:"webui"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type WebUIConfig struct {
	Enabled   bool     `json:"enabled"`
	AllowFrom []string `json:"allowFrom"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DigestConfig struct {
	StorePath string `json:"storePath,omitempty"`
}

type HeartbeatConfig struct {
	Interval int `json:"interval"` // seconds between provider probes, 0 = default
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Agent: AgentConfig{
			Workspace:         filepath.Join(home, ".cityclock", "workspace"),
			Model:             DefaultModel,
			MaxTokens:         DefaultMaxTokens,
			MaxToolIterations: DefaultMaxToolIterations,
			RequestTimeout:    DefaultRequestTimeout,
		},
		Provider: ProviderConfig{},
		Channels: ChannelsConfig{},
		OpenMeteo: OpenMeteoConfig{
			GeocodingURL: DefaultGeocodingURL,
			ForecastURL:  DefaultForecastURL,
		},
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Heartbeat: HeartbeatConfig{
			Interval: DefaultProbeInterval,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".cityclock")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("CITYCLOCK_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_AUTH_TOKEN"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if url := os.Getenv("CITYCLOCK_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if url := os.Getenv("ANTHROPIC_BASE_URL"); url != "" && cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("CITYCLOCK_MODEL"); model != "" {
		cfg.Agent.Model = model
	}
	if token := os.Getenv("CITYCLOCK_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if url := os.Getenv("CITYCLOCK_GEOCODING_URL"); url != "" {
		cfg.OpenMeteo.GeocodingURL = url
	}
	if url := os.Getenv("CITYCLOCK_FORECAST_URL"); url != "" {
		cfg.OpenMeteo.ForecastURL = url
	}

	if cfg.Agent.Workspace == "" {
		cfg.Agent.Workspace = DefaultConfig().Agent.Workspace
	}
	if cfg.OpenMeteo.GeocodingURL == "" {
		cfg.OpenMeteo.GeocodingURL = DefaultGeocodingURL
	}
	if cfg.OpenMeteo.ForecastURL == "" {
		cfg.OpenMeteo.ForecastURL = DefaultForecastURL
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
