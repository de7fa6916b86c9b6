package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/germanamz/contentcrew/pkg/content"
	"github.com/germanamz/contentcrew/pkg/engine"
	"github.com/germanamz/contentcrew/pkg/tools/mcpserver"
)

const mcpInstructions = "Use generate_content to research a topic on the web and get a detailed markdown article about it. " +
	"A run performs several web searches and LLM calls and can take a few minutes."

func runMCP(args []string) error {
	var common commonFlags

	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	common.register(fs)
	_ = fs.Parse(args)

	// Stdout carries the protocol; logs go to stderr.
	cfg, log, err := common.setup(os.Stderr)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, err := engine.New(ctx, cfg, engine.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	for _, name := range cfg.MissingSecrets() {
		log.Warn(content.MissingKeyWarning(name))
	}

	srv := mcpserver.New("contentcrew", version, mcpserver.Options{Instructions: mcpInstructions})
	srv.Register(eng.Tool())

	log.Info("mcp server ready", "tool", engine.GenerateToolName)
	return srv.ServeStdio(ctx)
}
