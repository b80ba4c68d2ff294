package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	Version    int              `toml:"version"`
	Account    AccountConfig    `toml:"account"`
	Engagement EngagementConfig `toml:"engagement"`
	Ranking    RankingConfig    `toml:"ranking"`
	Selector   SelectorConfig   `toml:"selector"`
	Thread     ThreadConfig     `toml:"thread"`
	Vision     VisionConfig     `toml:"vision"`
	Context    ContextConfig    `toml:"context"`
	Storage    StorageConfig    `toml:"storage"`
	Schedule   ScheduleConfig   `toml:"schedule"`
}

// AccountConfig identifies the operating account. Posts authored by this
// account are never selected as reply candidates.
type AccountConfig struct {
	ID     string `toml:"id"`
	Handle string `toml:"handle"`
}

type EngagementConfig struct {
	LikeWeight    float64 `toml:"like_weight"`
	ReshareWeight float64 `toml:"reshare_weight"`
	ReplyWeight   float64 `toml:"reply_weight"`
	LookbackHours int     `toml:"lookback_hours"`
}

type RankingConfig struct {
	FollowerWeight     float64  `toml:"follower_weight"`
	PostWeight         float64  `toml:"post_weight"`
	InteractionWeight  float64  `toml:"interaction_weight"`
	PriorityHandles    []string `toml:"priority_handles"`
	FrequentWindowDays int      `toml:"frequent_window_days"`
}

type SelectorConfig struct {
	Keywords          []string `toml:"keywords"`
	PerPredicateLimit int      `toml:"per_predicate_limit"`
}

type ThreadConfig struct {
	MaxKept  int `toml:"max_kept"`
	MaxDepth int `toml:"max_depth"`
}

type VisionConfig struct {
	APIKey             string `toml:"api_key"`
	Model              string `toml:"model"`
	Concurrency        int    `toml:"concurrency"`
	FallbackRetryHours int    `toml:"fallback_retry_hours"`
}

type ContextConfig struct {
	RecentLimit      int `toml:"recent_limit"`
	RecentWindowDays int `toml:"recent_window_days"`
}

type StorageConfig struct {
	DBPath string `toml:"db_path"` // empty means <cache dir>/reply4me.db
}

type ScheduleConfig struct {
	Timezone               string `toml:"timezone"`
	EnrichIntervalMinutes  int    `toml:"enrich_interval_minutes"`
	ContextIntervalMinutes int    `toml:"context_interval_minutes"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Engagement: EngagementConfig{
			LikeWeight:    2.0,
			ReshareWeight: 1.5,
			ReplyWeight:   1.0,
			LookbackHours: 24,
		},
		Ranking: RankingConfig{
			FollowerWeight:     0.5,
			PostWeight:         0.3,
			InteractionWeight:  0.2,
			PriorityHandles:    []string{},
			FrequentWindowDays: 30,
		},
		Selector: SelectorConfig{
			Keywords:          []string{},
			PerPredicateLimit: 50,
		},
		Thread: ThreadConfig{
			MaxKept:  5,
			MaxDepth: 15,
		},
		Vision: VisionConfig{
			Model:              "claude-sonnet-4-20250514",
			Concurrency:        5,
			FallbackRetryHours: 24,
		},
		Context: ContextConfig{
			RecentLimit:      3,
			RecentWindowDays: 7,
		},
		Schedule: ScheduleConfig{
			Timezone:               "America/New_York",
			EnrichIntervalMinutes:  30,
			ContextIntervalMinutes: 15,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "reply4me"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "reply4me"), nil
}

// Load reads config from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
