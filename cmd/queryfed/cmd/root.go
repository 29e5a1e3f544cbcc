// Package cmd implements the queryfed command line: a long-running HTTP
// server plus a one-shot ask mode for scripting and smoke tests.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/queryfed/queryfed/internal/config"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "queryfed",
	Short:         "Federated natural-language queries over databases and documents",
	Long:          `queryfed answers plain-language questions by classifying intent, synthesizing schema-validated SQL for every relevant database, running the sub-queries in parallel, and merging the results with document evidence into one attributed answer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       Version,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads .env when present, then builds the config and sets up
// logging from it.
func loadConfig() (*config.Config, error) {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
