// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/taibuivan/ecgscan/internal/notify"
	"github.com/taibuivan/ecgscan/internal/platform/constants"
	"github.com/taibuivan/ecgscan/internal/platform/sec"
	"github.com/taibuivan/ecgscan/pkg/mask"
)

// newCreateAdminCommand creates an admin identity. The password is never
// accepted as a flag so it stays out of shell history.
func newCreateAdminCommand() *cobra.Command {
	var email, name string

	command := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin identity",
		Long: `Create an admin identity on the configured store.

The password is read from ADMIN_PASSWORD.

	ADMIN_PASSWORD=... ecgscan create-admin --email ops@example.com --name "Ops"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}

			if cfg.AdminPassword == "" {
				return fail(log, errors.New("ADMIN_PASSWORD is not set"), "create admin")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.StartupTimeout)
			defer cancel()

			store, err := openStores(ctx, cfg, log, true)
			if err != nil {
				return fail(log, err, "open credential store")
			}
			defer store.close()

			tokens, err := sec.NewTokenService(cfg.JWTSecret, constants.AuthIssuer, cfg.TokenTTL)
			if err != nil {
				return fail(log, err, "initialize token service")
			}

			// No reset codes are sent from this command.
			service := newAuthService(cfg, store, tokens, notify.NewLogSink(log))

			user, err := service.CreateAdmin(ctx, adminSeed(cfg, email, name))
			if err != nil {
				return fail(log, err, "create admin")
			}

			log.Info("admin_identity_created",
				slog.String("user_id", user.ID),
				slog.String("email", mask.Email(user.Email)),
			)
			return nil
		},
	}

	command.Flags().StringVar(&email, "email", "", "admin email address")
	command.Flags().StringVar(&name, "name", "Administrator", "admin display name")
	_ = command.MarkFlagRequired("email")

	return command
}
