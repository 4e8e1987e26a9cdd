// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/beo-intake/internal/secrets"
	"github.com/pdiddy/beo-intake/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser intake form",
	Long: `Serve runs the intake form as a web page. Each browser gets its own form
session; uploads go to the configured backend and accepted submissions are
recorded in the local history. The status page refreshes itself every poll
interval until processing finishes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("address", "", "listen address (default :3000)")
	viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	api := newClient()
	// Every submission would fail, so refuse to serve the form at all.
	if err := api.Check(); err != nil {
		return fmt.Errorf("%w (set api.url and api.key, BEO_INTAKE_API_URL and BEO_INTAKE_API_KEY, or %s)",
			err, filepath.Join(secrets.DefaultDir, secrets.APIKeyFile))
	}

	opts := web.Options{
		PollInterval: cfg.Poll.Interval,
		SessionTTL:   cfg.Server.SessionTTL,
		CORSOrigins:  cfg.Server.CORSOrigins,
	}
	if store := openHistory(); store != nil {
		defer store.Close()
		opts.Recorder = store
	}

	h := web.NewHandler(api, opts, logger)
	return web.NewServer(cfg.Server, h, logger).Run(cmd.Context())
}
