// cmd/noped/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/colebrumley/nope/internal/config"
	"github.com/colebrumley/nope/internal/daemon"
	"github.com/colebrumley/nope/internal/logging"
	"github.com/colebrumley/nope/internal/mcp"
	"github.com/colebrumley/nope/internal/rules"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "mcp-server":
			runMCPServer()
			return
		}
	}

	runDaemon()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived shutdown signal")
		cancel()
	}()
	return ctx, cancel
}

// runMCPServer serves MCP on stdio. stdout belongs to the protocol, so logs
// go to stderr or the configured file.
func runMCPServer() {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := logging.Open(cfg.Logging.Format, cfg.Daemon.LogLevel, cfg.Logging.File, cfg.Logging.MaxSizeMB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	logger = logging.WithComponent(logger, "mcp")

	rs, err := rules.Load(cfg.Rules.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading rules: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	server, err := mcp.NewServer(ctx, cfg.Storage.PreferencesDB, rs, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating MCP server: %v\n", err)
		os.Exit(1)
	}
	defer server.Close()

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon() {
	d := daemon.New(config.DefaultPath())

	ctx, cancel := signalContext()
	defer cancel()

	if err := d.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "daemon error: %v\n", err)
		os.Exit(1)
	}
}
