package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"anatomap/internal/config"
	"anatomap/internal/engine"
	"anatomap/internal/logging"
	"anatomap/internal/runlog"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// newLogger builds the run logger from config: human-readable on stderr
// plus the persistent log file. Tables and summaries go to stdout, so logs
// stay off it.
func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	paths := []string{"stderr"}
	if cfg.Paths.LogDir != "" {
		paths = append(paths, filepath.Join(cfg.Paths.LogDir, "anatomap.log"))
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: paths,
	})
}

// openRunLog opens the history journal when enabled. A nil store means
// history is off.
func (c *commandContext) openRunLog(cfg *config.Config) (*runlog.Store, error) {
	if !cfg.RunLog.Enabled || cfg.RunLog.Path == "" {
		return nil, nil
	}
	path, err := config.ExpandPath(cfg.RunLog.Path)
	if err != nil {
		return nil, err
	}
	return runlog.Open(path)
}

// newEngine assembles a ready engine, loading the model's resource files.
func (c *commandContext) newEngine(cfg *config.Config, logger *slog.Logger, store *runlog.Store) (*engine.Engine, error) {
	return engine.New(engine.Options{
		Config: cfg,
		Store:  store,
		Logger: logger,
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
