package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/barkprotocol/blinks"
	"github.com/barkprotocol/blinks/config"
	"github.com/barkprotocol/blinks/logger"
	"github.com/barkprotocol/blinks/types"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "barkd",
		Short:         "barkd - Solana Actions and Solana Pay server for BARK",
		Version:       blinks.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./"+config.DefaultPath+" when present)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(describeCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(verifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// load reads the configuration and creates the process logger
func load() (*types.Config, *logger.ZapLogger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.NewZapLogger(cfg.Log.Level, map[string]any{"service": "barkd"})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}
