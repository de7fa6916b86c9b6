package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/germanamz/contentcrew/cmd/contentcrew/internal/styles"
	"github.com/germanamz/contentcrew/pkg/content"
	"github.com/germanamz/contentcrew/pkg/engine"
	"github.com/joho/godotenv"
)

const (
	defaultDir     = ".contentcrew"
	fallbackConfig = "contentcrew.yaml"
)

// commonFlags are shared by every command that runs the engine.
type commonFlags struct {
	config  string
	dir     string
	env     string
	verbose bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "path to configuration file (default: .contentcrew/config.yaml or contentcrew.yaml)")
	fs.StringVar(&c.dir, "dir", defaultDir, "path to the .contentcrew directory")
	fs.StringVar(&c.env, "env", ".env", "path to .env file (ignored if missing)")
	fs.BoolVar(&c.verbose, "verbose", false, "enable debug logging")
}

// setup loads the .env file and the configuration and builds a logger that
// writes to logOut.
func (c commonFlags) setup(logOut io.Writer) (engine.Config, *slog.Logger, error) {
	if err := loadDotEnv(c.env); err != nil {
		return engine.Config{}, nil, err
	}

	cfg, err := loadConfig(resolveConfigPath(c.config, c.dir))
	if err != nil {
		return engine.Config{}, nil, err
	}

	return cfg, newLogger(logOut, c.verbose), nil
}

// loadDotEnv loads environment variables from path. If the file does not exist
// it is silently ignored so that .env files remain optional.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// resolveConfigPath picks the config file: explicit flag, then
// <dir>/config.yaml, then contentcrew.yaml. It returns "" when none exists.
func resolveConfigPath(explicit, dir string) string {
	if explicit != "" {
		return explicit
	}

	for _, p := range []string{filepath.Join(dir, "config.yaml"), fallbackConfig} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// loadConfig reads path, or uses the defaults when path is empty, and fills
// unset API keys from the environment.
func loadConfig(path string) (engine.Config, error) {
	cfg := engine.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = engine.LoadConfig(path); err != nil {
			return engine.Config{}, err
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// printWarnings reports unset API keys.
func printWarnings(w io.Writer, cfg engine.Config) {
	for _, name := range cfg.MissingSecrets() {
		fmt.Fprintln(w, styles.WarningStyle.Render(content.MissingKeyWarning(name)))
	}
}
