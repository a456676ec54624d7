/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cinerate/apiserver/config"
	"github.com/cinerate/apiserver/internal/logging"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cinerate",
	Short: "Movie reviews, ratings and moderation API",
	Long: `cinerate serves the movie review API: per-user reviews with live rating
aggregates, poster matching against image folders or buckets, and an
offense ledger administrators use to moderate reviewers.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRuntime reads config and builds the process logger, which also
// becomes the slog default.
func loadRuntime() (config.Config, *slog.Logger) {
	cfg := config.LoadConfig()
	logger := logging.New(cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger
}
