package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/germanamz/contentcrew/cmd/contentcrew/internal/styles"
	"github.com/germanamz/contentcrew/pkg/engine"
)

// modelChoices are offered by the init form.
var modelChoices = []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini", "gpt-4.1"}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dir := fs.String("dir", defaultDir, "path to the .contentcrew directory")
	force := fs.Bool("force", false, "overwrite an existing config")
	noInput := fs.Bool("no-input", false, "write the defaults without asking")
	_ = fs.Parse(args)

	cfg := initialConfig(*dir)
	if !*noInput {
		if err := initForm(&cfg); err != nil {
			return err
		}
	}

	path, err := writeConfig(*dir, cfg, *force)
	if err != nil {
		return err
	}

	fmt.Println(styles.SuccessStyle.Render("Initialized " + path))
	return nil
}

// initialConfig is DefaultConfig with API keys referencing the environment
// and the history database inside dir.
func initialConfig(dir string) engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Provider.APIKey = "${" + engine.OpenAIKeyEnv + "}"
	cfg.Search.APIKey = "${" + engine.SerperKeyEnv + "}"
	cfg.History.Path = filepath.Join(dir, "history.db")
	return cfg
}

func initForm(cfg *engine.Config) error {
	opts := make([]huh.Option[string], 0, len(modelChoices))
	for _, m := range modelChoices {
		opts = append(opts, huh.NewOption(m, m))
	}

	return huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().Title("Model").Options(opts...).Value(&cfg.Provider.Model),
		huh.NewInput().Title("Web server address").Value(&cfg.Server.Addr),
		huh.NewConfirm().Title("Record runs in the history database?").Value(&cfg.History.Enabled),
	)).Run()
}

// writeConfig writes cfg to <dir>/config.yaml and returns the path. An
// existing file is only replaced when force is set.
func writeConfig(dir string, cfg engine.Config, force bool) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("init: %w", err)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("init: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("init: %w", err)
	}
	return path, nil
}
