package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all interest engine configuration. Each component receives
// its own section by value; nothing reads configuration globally.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	LLM        LLMConfig        `yaml:"llm"`
	Redis      RedisConfig      `yaml:"redis"`
	Engine     EngineConfig     `yaml:"engine"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Activity   ActivityConfig   `yaml:"activity"`
	Decay      DecayConfig      `yaml:"decay"`
	Graph      GraphConfig      `yaml:"graph"`
	Saturation SaturationConfig `yaml:"saturation"`
	Momentum   MomentumConfig   `yaml:"momentum"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // empty resolves to store.DefaultDBPath()
}

type LogConfig struct {
	Mode string `yaml:"mode"` // "development" or "production"
}

type LLMConfig struct {
	Provider        string        `yaml:"provider"` // "claude-cli", "anthropic", "ollama", "mock"
	Model           string        `yaml:"model"`
	OllamaURL       string        `yaml:"ollama_url"`
	OllamaModel     string        `yaml:"ollama_model"`
	AnthropicKey    string        `yaml:"anthropic_key"`
	MaxTopics       int           `yaml:"max_topics"`
	MaxContentChars int           `yaml:"max_content_chars"`
	FallbackTopic   string        `yaml:"fallback_topic"`
	Timeout         time.Duration `yaml:"timeout"`
	RatePerSecond   float64       `yaml:"rate_per_second"`
	Burst           int           `yaml:"burst"`
}

type RedisConfig struct {
	Addr   string        `yaml:"addr"` // empty disables the topic cache
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl"`
}

type EngineConfig struct {
	Workers             int           `yaml:"workers"`
	UserLockStripes     int           `yaml:"user_lock_stripes"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
}

// ScoringConfig drives the base interaction scorer and the global score bounds.
type ScoringConfig struct {
	MinScore    float64            `yaml:"min_score"`
	MaxScore    float64            `yaml:"max_score"`
	RawClamp    float64            `yaml:"raw_clamp"`
	Discovery   map[string]float64 `yaml:"discovery"`
	Interaction map[string]float64 `yaml:"interaction"`
}

type Horizon struct {
	Days   int     `yaml:"days"`
	Weight float64 `yaml:"weight"`
}

type ActivityConfig struct {
	Horizons         []Horizon          `yaml:"horizons"`
	Weights          map[string]float64 `yaml:"weights"`    // per interaction type
	Thresholds       []float64          `yaml:"thresholds"` // one per activity level, ascending
	MaxMultiplier    float64            `yaml:"max_multiplier"`
	MinMultiplier    float64            `yaml:"min_multiplier"`
	DiffusionFactors []float64          `yaml:"diffusion_factors"` // one per activity level
}

type DecayConfig struct {
	Strategy string `yaml:"strategy"` // "tiered", "ratio", "threshold"

	HalfLifeDays       float64 `yaml:"half_life_days"`
	ShortTermDays      float64 `yaml:"short_term_days"`
	LongTermDays       float64 `yaml:"long_term_days"`
	LongTermRate       float64 `yaml:"long_term_rate"`
	UltraLongTermRate  float64 `yaml:"ultra_long_term_rate"`
	Floor              float64 `yaml:"floor"`
	PreservationFactor float64 `yaml:"preservation_factor"`

	DailyFactor   float64 `yaml:"daily_factor"`
	ThresholdDays float64 `yaml:"threshold_days"`
	PostThreshold string  `yaml:"post_threshold"` // "pause", "slow", "continue"
	SlowFactor    float64 `yaml:"slow_factor"`
}

type GraphConfig struct {
	Increment          string  `yaml:"increment"` // "log" or "linear"
	Scale              float64 `yaml:"scale"`
	MaxWeight          float64 `yaml:"max_weight"`
	MinWeight          float64 `yaml:"min_weight"`
	DecayFactor        float64 `yaml:"decay_factor"`
	ActivityAware      bool    `yaml:"activity_aware"`
	HealthyDecayFactor float64 `yaml:"healthy_decay_factor"`
	Baseline           float64 `yaml:"baseline"`
	BaseBoost          float64 `yaml:"base_boost"`
	NeighborLimit      int     `yaml:"neighbor_limit"`
	LockStripes        int     `yaml:"lock_stripes"`
}

type SaturationConfig struct {
	Mode      string  `yaml:"mode"` // "tiered" or "tanh"
	Steepness float64 `yaml:"steepness"`
}

type MomentumConfig struct {
	Enabled     bool    `yaml:"enabled"`
	WindowDays  int     `yaml:"window_days"`
	MinStreak   int     `yaml:"min_streak"`
	MaxStreak   int     `yaml:"max_streak"`
	LogBoost    float64 `yaml:"log_boost"`
	MaxMomentum float64 `yaml:"max_momentum"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37781,
		},
		Log: LogConfig{Mode: "development"},
		LLM: LLMConfig{
			Provider:        "claude-cli",
			Model:           "haiku",
			MaxTopics:       3,
			MaxContentChars: 2000,
			FallbackTopic:   "general",
			Timeout:         30 * time.Second,
			RatePerSecond:   2,
			Burst:           4,
		},
		Redis: RedisConfig{
			Prefix: "interest:topics:",
			TTL:    7 * 24 * time.Hour,
		},
		Engine: EngineConfig{
			Workers:             8,
			UserLockStripes:     256,
			MaintenanceInterval: 24 * time.Hour,
		},
		Scoring: ScoringConfig{
			MinScore: 0,
			MaxScore: 10,
			RawClamp: 10,
			Discovery: map[string]float64{
				"SEARCH":         4,
				"TRENDING":       3,
				"RECOMMENDATION": 2,
			},
			Interaction: map[string]float64{
				"COMMENT":  2,
				"SHARE":    1.5,
				"LIKE":     1,
				"REACTION": 0.75,
				"VIEW":     0.25,
				"DISLIKE":  -1,
				"REPORT":   -2,
			},
		},
		Activity: ActivityConfig{
			Horizons: []Horizon{
				{Days: 1, Weight: 0.5},
				{Days: 30, Weight: 0.3},
				{Days: 365, Weight: 0.2},
			},
			Weights: map[string]float64{
				"COMMENT":  3,
				"REPORT":   2,
				"SHARE":    2,
				"DISLIKE":  1.2,
				"LIKE":     1,
				"REACTION": 0.5,
				"VIEW":     0.1,
			},
			Thresholds:       []float64{0, 50, 200, 500, 1000, 2000, 5000},
			MaxMultiplier:    2.0,
			MinMultiplier:    0.3,
			DiffusionFactors: []float64{1.5, 1.4, 1.3, 1.0, 0.8, 0.6, 0.4},
		},
		Decay: DecayConfig{
			Strategy:           "tiered",
			HalfLifeDays:       30,
			ShortTermDays:      30,
			LongTermDays:       180,
			LongTermRate:       0.3,
			UltraLongTermRate:  0.1,
			Floor:              0.1,
			PreservationFactor: 0.8,
			DailyFactor:        0.98,
			ThresholdDays:      30,
			PostThreshold:      "slow",
			SlowFactor:         0.999,
		},
		Graph: GraphConfig{
			Increment:          "log",
			Scale:              10,
			MaxWeight:          100,
			MinWeight:          1,
			DecayFactor:        0.9,
			HealthyDecayFactor: 0.98,
			Baseline:           10,
			BaseBoost:          0.4,
			NeighborLimit:      10,
			LockStripes:        64,
		},
		Saturation: SaturationConfig{
			Mode:      "tiered",
			Steepness: 1.0,
		},
		Momentum: MomentumConfig{
			Enabled:     true,
			WindowDays:  7,
			MinStreak:   5,
			MaxStreak:   10,
			LogBoost:    0.2,
			MaxMomentum: 1.3,
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Load reads a YAML config from path on top of Default(). Fields absent
// from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating the parent directory.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, b, 0644)
}

// ApplyEnv overrides fields from environment variables when set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("INTEREST_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("INTEREST_LISTEN"); v != "" {
		if host, port, err := net.SplitHostPort(v); err == nil {
			if p, err := strconv.Atoi(port); err == nil {
				c.Server.Bind = host
				c.Server.Port = p
			}
		}
	}
	if v := os.Getenv("INTEREST_LOG_MODE"); v != "" {
		c.Log.Mode = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.Provider = "anthropic"
		c.LLM.AnthropicKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
}

// Validate reports every inconsistency found in cfg, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	if c.Scoring.MaxScore <= c.Scoring.MinScore {
		errs = append(errs, fmt.Errorf("scoring: max_score %v must exceed min_score %v", c.Scoring.MaxScore, c.Scoring.MinScore))
	}
	if c.Scoring.MinScore < 0 {
		errs = append(errs, fmt.Errorf("scoring: min_score must be >= 0"))
	}
	if len(c.Activity.Thresholds) != 7 || !sort.Float64sAreSorted(c.Activity.Thresholds) {
		errs = append(errs, fmt.Errorf("activity: thresholds must hold 7 ascending values"))
	}
	if len(c.Activity.DiffusionFactors) != 7 {
		errs = append(errs, fmt.Errorf("activity: diffusion_factors must hold 7 values"))
	}
	var horizonWeight float64
	for _, h := range c.Activity.Horizons {
		if h.Days <= 0 || h.Weight < 0 {
			errs = append(errs, fmt.Errorf("activity: invalid horizon %+v", h))
		}
		horizonWeight += h.Weight
	}
	if horizonWeight <= 0 {
		errs = append(errs, fmt.Errorf("activity: horizon weights must sum to a positive value"))
	}
	switch c.Decay.Strategy {
	case "tiered", "ratio", "threshold":
	default:
		errs = append(errs, fmt.Errorf("decay: unknown strategy %q", c.Decay.Strategy))
	}
	switch c.Graph.Increment {
	case "log", "linear":
	default:
		errs = append(errs, fmt.Errorf("graph: unknown increment %q", c.Graph.Increment))
	}
	if c.Graph.MaxWeight <= 0 {
		errs = append(errs, fmt.Errorf("graph: max_weight must be positive"))
	}
	switch c.Saturation.Mode {
	case "tiered", "tanh":
	default:
		errs = append(errs, fmt.Errorf("saturation: unknown mode %q", c.Saturation.Mode))
	}
	return errors.Join(errs...)
}
