// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the beo-intake CLI. It serves the
// browser intake form and offers the same submission lifecycle from a
// terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/beo-intake/internal/logging"
	"github.com/pdiddy/beo-intake/internal/secrets"
	"github.com/pdiddy/beo-intake/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the resolved configuration, loaded before any command runs.
	cfg types.Config

	// logger writes diagnostics to stderr; command output goes to stdout.
	logger = zerolog.Nop()
)

// rootCmd is the base command for the beo-intake CLI.
var rootCmd = &cobra.Command{
	Use:   "beo-intake",
	Short: "Submit BEO packets for processing",
	Long: `beo-intake sends BEO packets (PDF) with contact details to the BEO
processing backend and reports what happens to them.

Use serve to run the browser intake form, or submit, status, and history to
work from a terminal. The backend URL and API key come from the config file,
BEO_INTAKE_API_URL / BEO_INTAKE_API_KEY, NEXT_PUBLIC_API_URL /
NEXT_PUBLIC_API_KEY, or .secrets/beo-api-key.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(types.LoggingConfig{
			Level:  viper.GetString("logging.level"),
			Format: viper.GetString("logging.format"),
		}, os.Stderr)

		s, err := secrets.Load(secrets.DefaultDir, logger)
		if err != nil {
			return err
		}
		if keys := s.Keys(); len(keys) > 0 {
			logger.Debug().Strs("secrets", keys).Msg("loaded secrets")
		}

		c, err := loadConfig(viper.GetViper(), s)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./beo-intake.yaml or ~/.config/beo-intake/beo-intake.yaml)")
	rootCmd.PersistentFlags().String("api-url", "", "backend base URL")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")
	rootCmd.PersistentFlags().String("history", "", "history database path (empty config value disables history)")

	viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("history.path", rootCmd.PersistentFlags().Lookup("history"))
}

func initConfig() {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("beo-intake")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "beo-intake"))
		}
	}

	viper.SetEnvPrefix("BEO_INTAKE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnvFallbacks(viper.GetViper())
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
