package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwulff/podium/internal/config"
	"github.com/spf13/cobra"
)

var version = "dev"

// rootOptions carries the settings every subcommand shares.
type rootOptions struct {
	configPath  string
	debug       bool
	metricsAddr string

	cfg     *config.Config
	logger  *slog.Logger
	logFile io.Closer
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	rec := &recordOptions{}
	cmd := &cobra.Command{
		Use:   "podium",
		Short: "Podium Pal - practice public speaking with live transcription and AI feedback",
		Long: `Podium Pal records a practice speech, transcribes it live and sends the
transcript and audio to an analysis service for scored feedback.

Run without a subcommand to open the recorder.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecord(cmd, opts, rec)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	addRecordFlags(cmd, rec)

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return opts.load()
	}

	cmd.AddCommand(newRecordCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newFeedbackCommand(opts))
	cmd.AddCommand(newRecordingsCommand(opts))
	cmd.AddCommand(newDevicesCommand(opts))
	cmd.AddCommand(newMCPCommand(opts))
	cmd.AddCommand(newSnapshotCommand(opts))

	return cmd
}

func execute() error {
	opts := &rootOptions{}
	defer opts.close()
	return newRootCommand(opts).Execute()
}

// load reads the config and points the default logger at the log file.
// The terminal belongs to the TUI or the MCP transport, so nothing is
// logged to stdout or stderr.
func (o *rootOptions) load() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.metricsAddr != "" {
		cfg.MetricsAddr = o.metricsAddr
	}
	o.cfg = cfg

	level := parseLevel(cfg.LogLevel)
	if o.debug {
		level = slog.LevelDebug
	}

	path := cfg.LogFile
	if path == "" {
		path = filepath.Join(configDir(), "podium.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	o.logFile = f

	o.logger = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(o.logger)
	o.logger.Debug("config loaded",
		"backend_url", cfg.BackendURL,
		"history_backend", cfg.HistoryBackend,
		"archive", cfg.ArchiveEnabled(),
	)
	return nil
}

func (o *rootOptions) close() {
	if o.logFile != nil {
		_ = o.logFile.Close()
		o.logFile = nil
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// configDir is where podium keeps its log, history file and database by
// default.
func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "podium")
}
