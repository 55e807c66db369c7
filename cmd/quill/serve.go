package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	_ "github.com/jackzampolin/quill/docs/swagger"
	"github.com/jackzampolin/quill/internal/home"
	"github.com/jackzampolin/quill/internal/server"
)

var (
	serveHost string
	servePort string
	logLevel  string
	watch     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Quill server",
	Long: `Start the Quill HTTP server.

The server provides:
  - /api/*        - Credits, course pipeline, export, journal, prompts, settings
  - /health       - Basic server health check
  - /ready        - Readiness check (probes the LLM provider)
  - /status       - Configuration summary
  - /swagger      - API reference
  - /             - Web UI

Configuration is read from --config, ~/.quill/config.yaml or ./config.yaml,
with environment overrides (GROQ_API_KEY, CREDITS_SECRET, NODE_ENV, ...).
With --watch, edits to the config file are applied without a restart.

Examples:
  quill serve                    # Start on the configured port (default 8080)
  quill serve --port 3000        # Start on custom port
  quill serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		level, err := parseLevel(logLevel)
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		if used := mgr.ConfigFileUsed(); used != "" {
			logger.Info("loaded config", "file", used)
		} else {
			logger.Info("no config file found, using defaults and environment")
		}
		if watch {
			mgr.WatchConfig()
		}

		srv, err := server.New(server.Config{
			ConfigManager: mgr,
			Host:          serveHost,
			Port:          servePort,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: %w", s, err)
	}
	return level, nil
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: server.port)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	serveCmd.Flags().BoolVar(&watch, "watch", true, "Reload when the config file changes")

	rootCmd.AddCommand(serveCmd)
}
