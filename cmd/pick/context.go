package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"media-picker/internal/logging"
	"media-picker/internal/provider"
	"media-picker/internal/startup"
)

type globalOptions struct {
	configFile string
	dataDir    string
	json       bool
	verbose    bool
}

type commandContext struct {
	opts *globalOptions

	configOnce sync.Once
	config     *startup.Config
	configErr  error
}

func newCommandContext(opts *globalOptions) *commandContext {
	return &commandContext{opts: opts}
}

// configureLogging sends log output to w and keeps it quiet unless
// --verbose or LOG_LEVEL asks for more.
func (c *commandContext) configureLogging(w io.Writer) {
	logging.SetOutput(w)
	switch {
	case c.opts.verbose:
		logging.SetLevel(logging.LevelDebug)
	case os.Getenv("LOG_LEVEL") == "":
		logging.SetLevel(logging.LevelWarn)
	}
}

func (c *commandContext) ensureConfig() (*startup.Config, error) {
	c.configOnce.Do(func() {
		if c.opts.configFile != "" {
			os.Setenv(startup.ConfigFileEnv, c.opts.configFile)
		}
		if c.opts.dataDir != "" {
			os.Setenv("DATA_DIR", c.opts.dataDir)
		}
		c.config, c.configErr = startup.Load()
		if c.configErr != nil {
			c.configErr = fmt.Errorf("load configuration: %w", c.configErr)
		}
		// readConfig applies LOG_LEVEL; flags still win
		if c.opts.verbose {
			logging.SetLevel(logging.LevelDebug)
		}
	})
	return c.config, c.configErr
}

// withStore opens the provider database for the duration of fn.
func (c *commandContext) withStore(ctx context.Context, fn func(*startup.Config, *provider.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := provider.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open provider database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Warn("close provider database: %v", err)
		}
	}()
	return fn(cfg, store)
}
