// Command registry runs the memflow plugin registry's HTTP gateway.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/memflow/memflow-registry/internal/config"
	"github.com/memflow/memflow-registry/internal/gateway"
	"github.com/memflow/memflow-registry/internal/objectstore"
	"github.com/memflow/memflow-registry/internal/sigverify"
)

func main() {
	cfg := config.Load()

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	var verifier *sigverify.Verifier
	if cfg.PublicKeyFile != "" {
		v, err := sigverify.NewVerifierFromFile(cfg.PublicKeyFile)
		if err != nil {
			return fmt.Errorf("load public key: %w", err)
		}
		verifier = v
	} else {
		logger.Warn("MEMFLOW_PUBLIC_KEY_FILE not set, uploads will be accepted without signature verification")
	}

	store, err := objectstore.New(cfg.StorageRoot, verifier)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	if cfg.BearerToken == "" {
		logger.Warn("MEMFLOW_BEARER_TOKEN not set, write endpoints are unauthenticated")
	}

	gw := gateway.New(store, cfg.BearerToken)
	srv := gateway.NewServer(cfg.Addr, gw.Handler(), logger)

	return srv.ListenAndServeWithGracefulShutdown()
}
