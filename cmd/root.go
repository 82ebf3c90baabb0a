/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/config"
	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vidstream",
	Short: "User accounts and sessions backend for the video streaming site",
	Long: `vidstream serves user registration, login and token refresh, runs the
database migrations and tails the auth event stream.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var debug bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable development logging")
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig() config.Config {
	cfg := config.LoadConfig()
	if debug {
		cfg.Debug = true
	}
	return cfg
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Debug)
}
