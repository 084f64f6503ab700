package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matthew-graves/the-zyndicator/internal/server"
	"github.com/matthew-graves/the-zyndicator/internal/store"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the code server",
	Long: `Start an HTTP server that accepts scanned codes over a websocket,
deduplicates them and appends new ones to the code store.

The server provides the following endpoints:
  GET /ws       - Websocket code sink ({"event":"code","payload":CODE})
  GET /codes    - Stored codes as JSON
  GET /health   - Health check endpoint
  GET /metrics  - Prometheus metrics
  GET /         - Static files from --static-dir

Examples:
  zyndicator serve
  zyndicator serve --port 8080 --store-path /var/lib/zyndicator/codes.txt
  zyndicator serve --store redis --redis-addr localhost:6379
  zyndicator serve --public-url http://192.168.1.20:3000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		srvCfg := cfg.ToServerConfig()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		st, err := store.Open(ctx, cfg.ToStoreConfig())
		if err != nil {
			return fmt.Errorf("failed to open code store: %w", err)
		}
		if n, err := st.Len(ctx); err == nil {
			slog.Info("Code store ready", "backend", cfg.Store.Backend, "codes", n)
		}

		codeServer, err := server.NewServer(srvCfg, st)
		if err != nil {
			_ = st.Close()
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		codeServer.StartJanitor(ctx, time.Minute)

		mux := http.NewServeMux()
		codeServer.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", srvCfg.Host, srvCfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(srvCfg.TimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(srvCfg.TimeoutSec) * time.Second,
		}

		go func() {
			slog.Info("Starting code server", "host", srvCfg.Host, "port", srvCfg.Port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		if srvCfg.PublicURL != "" {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Open %s on the scanning device:\n", srvCfg.PublicURL)
			if err := server.PrintTerminalQR(out, srvCfg.PublicURL); err != nil {
				slog.Warn("Could not render URL as QR code", "error", err)
			}
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", srvCfg.ShutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(srvCfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		if err := codeServer.Close(); err != nil {
			slog.Error("Code store close error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.StringP("host", "H", "0.0.0.0", "server host")
	f.IntP("port", "p", 3000, "server port")
	f.String("cors-origin", "*", "CORS allowed origins")
	f.String("static-dir", "public", "directory served at / (empty disables)")
	f.Int("timeout", 30, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.Int64("max-message-bytes", 4096, "largest accepted websocket message")
	f.String("public-url", "", "URL printed as a terminal QR code for phones to open")
	f.Bool("rate-limit-enabled", false, "enable per-client rate limiting")
	f.String("store", "file", "code store backend: file or redis")
	f.String("store-path", "codes.txt", "code file for the file store (and redis seeding)")
	f.Bool("fsync", false, "fsync the code file after every append")
	f.String("redis-addr", "localhost:6379", "redis address for the redis store")
	f.String("redis-key", "zyndicator:codes", "redis set holding the codes")
	f.Bool("seed-from-file", false, "load the code file into redis at startup")

	bindFlags(f, map[string]string{
		"server.host":                "host",
		"server.port":                "port",
		"server.cors_origin":         "cors-origin",
		"server.static_dir":          "static-dir",
		"server.timeout_sec":         "timeout",
		"server.shutdown_timeout":    "shutdown-timeout",
		"server.max_message_bytes":   "max-message-bytes",
		"server.public_url":          "public-url",
		"server.rate_limit.enabled":  "rate-limit-enabled",
		"store.backend":              "store",
		"store.path":                 "store-path",
		"store.fsync":                "fsync",
		"store.redis.addr":           "redis-addr",
		"store.redis.key":            "redis-key",
		"store.redis.seed_from_file": "seed-from-file",
	})
}
