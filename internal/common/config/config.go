package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Planner    PlannerConfig    `mapstructure:"planner"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	Generation GenerationConfig `mapstructure:"generation"`
	Signing    SigningConfig    `mapstructure:"signing"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// IsDevelopment reports whether the SSRF guard's private-network rejection
// should be relaxed. Metadata endpoints stay blocked regardless.
func (a AppConfig) IsDevelopment() bool {
	return a.Environment == "development" || a.Environment == "dev" || a.Environment == "local"
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	HeartbeatEvery  int    `mapstructure:"heartbeat_every"`  // milliseconds
}

// ProvidersConfig holds settings for the search provider chain. Presence of
// an API key gates whether the corresponding provider is attempted.
type ProvidersConfig struct {
	Serp struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"serp"`

	OpenRouter struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"openrouter"`

	DuckDuckGo struct {
		BaseURL string `mapstructure:"base_url"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"duckduckgo"`

	MaxResults int `mapstructure:"max_results"`
}

type PlannerConfig struct {
	MaxQueries int `mapstructure:"max_queries"`
	CacheTTL   int `mapstructure:"cache_ttl"` // seconds, redis write-through only
	Timeout    int `mapstructure:"timeout"`   // milliseconds
}

type ScraperConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	TopSources   int  `mapstructure:"top_sources"`
	Timeout      int  `mapstructure:"timeout"`        // milliseconds
	MaxBodyBytes int  `mapstructure:"max_body_bytes"`
	MaxTextChars int  `mapstructure:"max_text_chars"`
}

type GenerationConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type SigningConfig struct {
	Key string `mapstructure:"key"`
}

type RateLimitConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	MaxPerWindow int  `mapstructure:"max_per_window"`
	WindowSecs   int  `mapstructure:"window_secs"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Millis converts a millisecond config value to a duration, with a default
// when unset.
func Millis(v int, dflt time.Duration) time.Duration {
	if v <= 0 {
		return dflt
	}
	return time.Duration(v) * time.Millisecond
}
