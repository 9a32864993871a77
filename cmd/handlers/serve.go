package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"citydigest/internal/config"
	"citydigest/internal/logger"
	"citydigest/internal/server"
)

// NewServeCmd creates the serve command for starting the HTTP trigger server
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP trigger server",
		Long: `Start the citydigest trigger server.

The server provides:
  • POST /api/digest/{slot} to run the pipeline (requires the shared secret)
  • GET /api/digest/latest for the most recent digest
  • GET /api/health for liveness checks

Set DIGEST_SHARED_SECRET (or server.shared_secret in config) to enable
the trigger endpoint; it is disabled otherwise.

Examples:
  # Start server on default port 8080
  citydigest serve

  # Start on custom port
  citydigest serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")

	return cmd
}

func runServe(ctx context.Context, port int, host string) error {
	log := logger.Get()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	serverCfg := server.Config{
		Host:         a.cfg.Server.Host,
		Port:         a.cfg.Server.Port,
		SharedSecret: a.cfg.Server.SharedSecret,
		ReadTimeout:  config.Duration(a.cfg.Server.ReadTimeout),
		WriteTimeout: config.Duration(a.cfg.Server.WriteTimeout),
	}
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	srv := server.NewServer(serverCfg, a.orch, a.store, a.runOptions())

	serverErrors := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		log.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed, forcing close", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		log.Info("Server stopped successfully")
	}

	return nil
}
