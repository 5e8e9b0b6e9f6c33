// Package config loads and validates curator configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/inbix/curator/internal/curator"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Curation  CurationConfig  `mapstructure:"curation"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig configures outbound fetch retry and throttle behavior.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	BaseDelayMs    int    `mapstructure:"base_delay_ms"`
	ThrottleMs     int    `mapstructure:"throttle_ms"`
	UserAgent      string `mapstructure:"user_agent"`
}

// PipelineConfig governs the collection fan-out and final selection size.
type PipelineConfig struct {
	MaxItems               int `mapstructure:"max_items"`
	Concurrency            int `mapstructure:"concurrency"`
	ConnectorBudgetSeconds int `mapstructure:"connector_budget_seconds"`
	RunBudgetSeconds       int `mapstructure:"run_budget_seconds"`
}

// CurationConfig optionally overrides the built-in keyword and spam lists.
type CurationConfig struct {
	PositiveKeywords []string `mapstructure:"positive_keywords"`
	NegativeKeywords []string `mapstructure:"negative_keywords"`
	SpamPatterns     []string `mapstructure:"spam_patterns"`
}

// SourcesConfig lists the configured origins per source family.
type SourcesConfig struct {
	Newsletters []curator.SourceConfig `mapstructure:"newsletters"`
	Forum       ForumConfig            `mapstructure:"forum"`
	Video       VideoConfig            `mapstructure:"video"`
	Microblog   MicroblogConfig        `mapstructure:"microblog"`
}

// ForumConfig configures the forum connector and its credential exchange.
type ForumConfig struct {
	ClientID     string                 `mapstructure:"client_id"`
	ClientSecret string                 `mapstructure:"client_secret"`
	Mirrors      []string               `mapstructure:"mirrors"`
	Subforums    []curator.SourceConfig `mapstructure:"subforums"`
	TopTotal     int                    `mapstructure:"top_total"`
}

// VideoConfig configures the video-channel connector.
type VideoConfig struct {
	Channels      []curator.SourceConfig `mapstructure:"channels"`
	Keywords      []string               `mapstructure:"keywords"`
	MaxResults    int                    `mapstructure:"max_results"`
	PerChannelCap int                    `mapstructure:"per_channel_cap"`
}

// MicroblogConfig configures the microblog connector and its mirror chain.
type MicroblogConfig struct {
	Profiles    []string `mapstructure:"profiles"`
	Hashtags    []string `mapstructure:"hashtags"`
	Mirrors     []string `mapstructure:"mirrors"`
	TestProfile string   `mapstructure:"test_profile"`
	MaxPerQuery int      `mapstructure:"max_per_query"`
}

// PublisherConfig holds credentials for the block-based publishing API.
type PublisherConfig struct {
	Token      string `mapstructure:"token"`
	PageID     string `mapstructure:"page_id"`
	BaseURL    string `mapstructure:"base_url"`
	APIVersion string `mapstructure:"api_version"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// StorageConfig sets the location of the persisted snapshot.
type StorageConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	SnapshotFile string `mapstructure:"snapshot_file"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CURATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	applySourceDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.base_delay_ms", 300)
	v.SetDefault("http.throttle_ms", 300)
	v.SetDefault("http.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	v.SetDefault("pipeline.max_items", 30)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.connector_budget_seconds", 90)
	v.SetDefault("pipeline.run_budget_seconds", 600)
	v.SetDefault("sources.forum.mirrors", []string{
		"https://www.reddit.com",
		"https://old.reddit.com",
	})
	v.SetDefault("sources.forum.top_total", 15)
	v.SetDefault("sources.video.max_results", 15)
	v.SetDefault("sources.video.per_channel_cap", 3)
	v.SetDefault("sources.microblog.mirrors", []string{
		"https://xcancel.com",
		"https://nitter.poast.org",
		"https://nitter.privacydev.net",
		"https://nitter.net",
	})
	v.SetDefault("sources.microblog.test_profile", "elonmusk")
	v.SetDefault("sources.microblog.max_per_query", 5)
	v.SetDefault("publisher.base_url", "https://api.notion.com/v1")
	v.SetDefault("publisher.api_version", "2022-06-28")
	v.SetDefault("publisher.batch_size", 100)
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.snapshot_file", "curadoria.json")
	v.SetDefault("logging.development", true)
}

// applySourceDefaults fills in the built-in source lists when the config file
// does not provide any.
func applySourceDefaults(cfg *Config) {
	if len(cfg.Sources.Newsletters) == 0 {
		cfg.Sources.Newsletters = []curator.SourceConfig{
			{Name: "TechDrop News", URL: "https://www.techdrop.news/", MaxItems: 5},
			{Name: "The Rundown AI", URL: "https://www.therundown.ai/", MaxItems: 5},
		}
	}
	if len(cfg.Sources.Forum.Subforums) == 0 {
		cfg.Sources.Forum.Subforums = []curator.SourceConfig{
			{Name: "r/AIToolMadeEasy", MaxItems: 5},
			{Name: "r/ChatGPT", MaxItems: 5, SearchTerms: []string{"Marketing", "Manager", "HR", "Sales", "future", "trending"}},
			{Name: "r/singularity", MaxItems: 5},
			{Name: "r/ChatGPTpro", MaxItems: 5, SearchTerms: []string{"how to"}},
			{Name: "r/AIforSmallBusiness", MaxItems: 5},
			{Name: "r/ArtificialInteligence", MaxItems: 5},
			{Name: "r/AI_Agents", MaxItems: 5},
		}
	}
	if len(cfg.Sources.Video.Channels) == 0 {
		cfg.Sources.Video.Channels = []curator.SourceConfig{
			{Name: "No Code Startup", Handle: "nocodestartup"},
			{Name: "Código Fonte TV", Handle: "codigofontetv"},
			{Name: "MrEflow", Handle: "mreflow"},
			{Name: "AI Explained", Handle: "aiexplained-official"},
		}
	}
	if len(cfg.Sources.Video.Keywords) == 0 {
		cfg.Sources.Video.Keywords = []string{
			"DeepSeek", "NVIDIA", "Anthropic", "Claude", "Cursor", "gemini",
			"IA", "AI", "Chatgpt", "GPT", "LLM", "OpenAI", "n8n", "Supabase",
		}
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Pipeline.MaxItems <= 0 {
		return fmt.Errorf("pipeline.max_items must be > 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Publisher.BatchSize <= 0 {
		return fmt.Errorf("publisher.batch_size must be > 0")
	}
	return nil
}

// Timeout converts the HTTP timeout into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ConnectorBudget converts the per-connector time budget into a duration.
func (c Config) ConnectorBudget() time.Duration {
	return time.Duration(c.Pipeline.ConnectorBudgetSeconds) * time.Second
}

// RunBudget converts the full pipeline time budget into a duration.
func (c Config) RunBudget() time.Duration {
	return time.Duration(c.Pipeline.RunBudgetSeconds) * time.Second
}
