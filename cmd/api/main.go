// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the ecgscan HTTP API server.
//
// # Commands
//
//	ecgscan [serve]                            Start the HTTP server (default).
//	ecgscan migrate up|down                    Apply or revert schema migrations.
//	ecgscan create-admin --email --name        Create an admin (password from ADMIN_PASSWORD).
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/taibuivan/ecgscan/internal/platform/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand builds the command tree. Running the root without a
// subcommand starts the server.
func newRootCommand() *cobra.Command {
	serve := newServeCommand()

	root := &cobra.Command{
		Use:           "ecgscan",
		Short:         "ecgscan authentication and identity API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	root.AddCommand(serve, newMigrateCommand(), newCreateAdminCommand())
	return root
}

// bootstrap loads configuration and builds the process logger.
//
// Startup errors are logged as structured JSON before being returned.
func bootstrap() (*config.Config, *slog.Logger, error) {
	log := newLogger(false)

	cfg, err := config.Load()
	if err != nil {
		log.Error("startup_failure", slog.String("context", "load configuration"), slog.Any("error", err))
		return nil, nil, err
	}

	if cfg.Debug {
		log = newLogger(true)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("notify_backend", cfg.NotifyBackend),
	)

	return cfg, log, nil
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", "ecgscan"))
	slog.SetDefault(log)
	return log
}

// fail logs a structured startup error and returns it for cobra.
func fail(log *slog.Logger, err error, context string) error {
	log.Error("startup_failure",
		slog.String("context", context),
		slog.Any("error", err),
	)
	return err
}
