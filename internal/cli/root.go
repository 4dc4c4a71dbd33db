package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lazypower/interest/internal/cache"
	"github.com/lazypower/interest/internal/config"
	"github.com/lazypower/interest/internal/engine"
	"github.com/lazypower/interest/internal/llm"
	"github.com/lazypower/interest/internal/logger"
	"github.com/lazypower/interest/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "interest",
	Short:        "User-topic interest scoring engine",
	Long:         "Interest turns content interactions into per-user topic affinity scores that saturate, decay and spread along a topic relationship graph.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the YAML config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(scoresCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(relatedCmd)
	rootCmd.AddCommand(contentCmd)
	rootCmd.AddCommand(maintainCmd)
	rootCmd.AddCommand(configCmd)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "interest.yaml"
	}
	return filepath.Join(home, ".interest", "config.yaml")
}

// loadConfig reads the config file when it exists, then applies environment
// overrides and validates the result.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// app is everything a command needs to talk to the engine.
type app struct {
	cfg     config.Config
	log     *logger.Logger
	db      *store.DB
	engine  *engine.Engine
	closers []func()
}

// openApp loads configuration and opens the store and engine. When extract
// is set an LLM extractor and the optional Redis topic cache are wired in.
func openApp(extract bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, log.Sync)

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, func() { db.Close() })

	opts := []engine.Option{engine.WithLogger(log)}
	var extractor engine.TopicExtractor
	if extract {
		client, err := llm.NewClient(cfg.LLM)
		if err != nil {
			log.Warn("llm not configured, topics fall back", "error", err, "fallback", cfg.LLM.FallbackTopic)
		} else {
			extractor = llm.NewExtractor(client, cfg.LLM, log)
			log.Info("llm configured", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
		}

		if cfg.Redis.Addr != "" {
			topics, err := cache.NewRedisTopics(cfg.Redis, log)
			if err != nil {
				log.Warn("redis topic cache disabled", "addr", cfg.Redis.Addr, "error", err)
			} else {
				opts = append(opts, engine.WithTopicCache(topics))
				a.closers = append(a.closers, func() { topics.Close() })
			}
		}
	}

	eng, err := engine.New(db, extractor, cfg, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = eng
	a.closers = append(a.closers, eng.Stop)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
