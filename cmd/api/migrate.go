// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taibuivan/ecgscan/internal/platform/constants"
	"github.com/taibuivan/ecgscan/internal/platform/migration"
)

// newMigrateCommand represents the migrate command.
func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Run database migrations",
		Long:      "Apply every pending migration (up) or revert the most recent one (down) on the configured store.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(migration.Up), string(migration.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction, err := parseDirection(args[0])
			if err != nil {
				return err
			}

			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.StartupTimeout)
			defer cancel()

			if err := runMigrations(ctx, cfg, log, direction); err != nil {
				return fail(log, err, "run migrations")
			}
			return nil
		},
	}
}

func parseDirection(arg string) (migration.Direction, error) {
	switch direction := migration.Direction(arg); direction {
	case migration.Up, migration.Down:
		return direction, nil
	default:
		return "", fmt.Errorf("unknown migration direction %q (want up or down)", arg)
	}
}
