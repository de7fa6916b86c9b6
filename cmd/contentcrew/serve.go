package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/germanamz/contentcrew/pkg/content"
	"github.com/germanamz/contentcrew/pkg/engine"
	"github.com/germanamz/contentcrew/pkg/web"
)

func runServe(args []string) error {
	var common commonFlags

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	common.register(fs)
	addr := fs.String("addr", "", "listen address (default: server.addr from config, :8501)")
	maxRuns := fs.Int("max-runs", web.DefaultMaxRuns, "runs kept in memory")
	_ = fs.Parse(args)

	cfg, log, err := common.setup(os.Stderr)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, err := engine.New(ctx, cfg, engine.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	missing := cfg.MissingSecrets()
	for _, name := range missing {
		log.Warn(content.MissingKeyWarning(name))
	}

	srv := web.New(eng, web.Options{
		Logger:         log,
		MissingSecrets: missing,
		MaxRuns:        *maxRuns,
	})
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
