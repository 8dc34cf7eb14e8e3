package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"resource-matcher/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Starts the HTTP server exposing POST /match, /health, /ready and /metrics.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	log := newLogger(cfg)
	log.Info("starting resource matcher", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
		"backend":     cfg.Catalog.Backend,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(cfg.Server, cfg.RateLimit, a.service, a.catalog, log)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	log.Info("resource matcher stopped gracefully", nil)
	return nil
}
