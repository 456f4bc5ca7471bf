package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Tyrowin/pokerroom/internal/config"
	"github.com/Tyrowin/pokerroom/internal/logging"
	"github.com/Tyrowin/pokerroom/internal/server"
	"github.com/Tyrowin/pokerroom/internal/telemetry"
)

const telemetryShutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the planning poker server",
	Long: `Start the HTTP and websocket server. Configuration is read from the
defaults, then the optional --config file, then environment variables, and
finally the flags given on the command line.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd.Flags())
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "config file (yaml, json or toml)")
	fs.StringP("port", "p", "", "listen address, e.g. :8080")
	fs.String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	logger := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(tctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	srv := server.New(cfg, logger)
	srv.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", "error", err)
			return errors.Join(err, srv.Shutdown(cfg.ShutdownTimeout))
		}
	}

	if err := srv.Shutdown(cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// loadConfig resolves the effective configuration from the parsed flags.
// Flags override the file and environment only when set explicitly.
func loadConfig(fs *pflag.FlagSet) (config.Config, error) {
	path, _ := fs.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if fs.Changed("port") {
		port, _ := fs.GetString("port")
		cfg.Port = normalizePort(port)
	}
	if fs.Changed("log-level") {
		cfg.Log.Level, _ = fs.GetString("log-level")
	}

	return config.Sanitize(cfg), nil
}

// normalizePort accepts a bare port number as shorthand for ":port".
func normalizePort(port string) string {
	port = strings.TrimSpace(port)
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}
