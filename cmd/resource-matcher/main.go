// Package main is the resource-matcher binary: the HTTP API, the Zeebe job
// worker and a one-shot match command share the same wiring.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"resource-matcher/internal/common/config"
	"resource-matcher/internal/common/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "resource-matcher",
	Short: "Resource matching and scoring engine",
	Long: "resource-matcher ranks grants, accelerators, SBA offices and coworking spaces " +
		"against an entrepreneur's profile over HTTP, as a Zeebe job worker or from the command line.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config YAML file (default: configs/config.yaml)")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func newLogger(cfg *config.Config, output ...string) logger.Logger {
	out := cfg.Logging.Output
	if len(output) > 0 {
		out = output[0]
	}
	return logger.NewZapAdapter(logger.New(cfg.Logging.Level, cfg.Logging.Format, out))
}
