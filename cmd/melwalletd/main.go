// Command melwalletd runs the wallet custody daemon: it loads the
// resolved config, opens the wallet/secret stores, starts the
// background sync loop, and serves the JSON-RPC surface over HTTP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/decred/melwalletd"
	"github.com/decred/melwalletd/build"
	"github.com/decred/melwalletd/node"
	"github.com/decred/melwalletd/nodetest"
	"github.com/decred/melwalletd/rpc"
	"github.com/decred/slog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "melwalletd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := melwalletd.LoadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	if cfg.OutputConfig {
		fmt.Println(cfg.String())
	}
	if cfg.DryRun {
		return nil
	}

	root := build.NewRotatingLogWriter()
	level, ok := slog.LevelFromString(cfg.DebugLevel)
	if !ok {
		level = slog.LevelInfo
	}
	melwalletd.SetupLoggers(root)
	for _, subsystem := range []string{"WLTD", "RPCS", "WLDB", "TXPR", "SYNC", "SECR", "SIGN"} {
		root.SetLogLevel(subsystem, level)
	}

	n, err := dialNode(cfg)
	if err != nil {
		return fmt.Errorf("connect to full node: %w", err)
	}

	daemon, err := melwalletd.NewDaemon(cfg, n)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	daemon.Start(ctx)
	defer daemon.Stop()

	server := rpc.NewServer(daemon, cfg.AllowedOrigin)

	httpServer := &http.Server{Addr: cfg.Listen, Handler: melwalletd.LoggingMiddleware(server.Handler())}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-sigCh:
		return httpServer.Shutdown(context.Background())
	}
	return nil
}

// dialNode returns the node.Node the daemon runs against. This
// repository declares the Node interface but ships no concrete wire
// implementation of it, so cfg.Connect is ignored and an in-memory fake
// is returned; the daemon is runnable for local exercise of the RPC
// surface but does not reach a real full node.
func dialNode(cfg *melwalletd.Config) (node.Node, error) {
	_ = cfg.Connect
	return nodetest.New(), nil
}
