package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mantavyam/pitch-note-pilot/internal/config"
	"github.com/mantavyam/pitch-note-pilot/internal/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pitch-note-pilot",
	Short: "Block document editor server",
	Long: `pitch-note-pilot serves the block document editor API: documents made of
ordered nodes, each holding ordered headline, image, description and table
blocks, plus the shared editor view state.

Examples:
  # Serve on the configured port
  pitch-note-pilot

  # Serve on 9090 with fixtures loaded
  pitch-note-pilot serve --port 9090 --seed fixtures/demo.yaml`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var (
	port     string
	seedFile string
)

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")
		cmd.Flags().StringVar(&seedFile, "seed", "", "YAML fixture file to load at startup (overrides SEED_FILE)")
	}
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	config.LoadConfig()
	cfg := applyFlags(cmd, config.AppConfig)

	log := logger.New(cfg.Environment, cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: app.router.Handler(),
	}

	// Start server
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Server shutdown complete")
	return nil
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cmd *cobra.Command, cfg config.Config) config.Config {
	if cmd.Flags().Changed("port") {
		cfg.ServerPort = port
	}
	if cmd.Flags().Changed("seed") {
		cfg.SeedFile = seedFile
	}
	return cfg
}
