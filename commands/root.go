package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/penwyp/go-agent-timeline/internal/application/viewer"
	"github.com/penwyp/go-agent-timeline/internal/config"
	"github.com/penwyp/go-agent-timeline/internal/data/recording"
	"github.com/penwyp/go-agent-timeline/internal/presentation/layout"
	"github.com/penwyp/go-agent-timeline/internal/util"
	"github.com/spf13/cobra"
)

var (
	// Logging related
	debug bool

	// Configuration sources
	configFile string
	serverURL  string
	dbPath     string
	timezone   string

	// Viewer related
	plain    bool
	noRecord bool

	// settings is loaded once per invocation by the persistent pre-run
	settings *config.Config

	rootCmd = &cobra.Command{
		Use:   "go-agent-timeline [flags]",
		Short: "Live timeline of coding-agent activity",
		Long: `go-agent-timeline follows the event stream of a coding-agent server and shows
every message, tool call and step as a navigable timeline.

Live sessions are recorded to a local database and can be replayed, exported and
imported later.

Examples:
  go-agent-timeline                                   # Follow http://localhost:4096
  go-agent-timeline --server http://10.0.0.5:4096     # Follow another server
  go-agent-timeline --plain                           # One line per entry, no full screen
  go-agent-timeline --category tool --search bash     # Only bash tool activity
  go-agent-timeline recordings list                   # Show recorded sessions
  go-agent-timeline replay rec-1700000000000-1a2b3c4d # Replay a recording
  go-agent-timeline stats rec-1700000000000-1a2b3c4d  # Token, cost and tool summary`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		RunE:              runLive,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Config file (default "+config.DefaultConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "",
		"Recording database path (default "+config.DefaultDBPath+")")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "",
		"Timezone for timestamps (e.g., Local, UTC, Asia/Shanghai)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug mode")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false,
		"Print entries line by line instead of the full-screen viewer")

	rootCmd.Flags().StringVar(&serverURL, "server", "",
		"Agent server URL (default "+config.DefaultServerURL+")")
	rootCmd.Flags().BoolVar(&noRecord, "no-record", false,
		"Do not record the live session")
	addFilterFlags(rootCmd.Flags())
}

func Execute() error {
	return rootCmd.Execute()
}

// setup loads the configuration, applies flag overrides and starts logging
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if flag := cmd.Flags().Lookup("server"); flag != nil && flag.Changed {
		cfg.Server.URL = serverURL
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if timezone != "" {
		cfg.Display.Timezone = timezone
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := util.SetTimezone(cfg.Display.Timezone); err != nil {
		return err
	}

	logFile := config.ExpandPath(cfg.Log.File)
	if err := ensureDir(filepath.Dir(logFile)); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := util.InitLogger(cfg.Log.Level, logFile, debug); err != nil {
		return err
	}

	settings = cfg
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	vc := viewerConfig(settings)
	vc.Stream = settings.StreamSettings()
	vc.Title = settings.Server.URL

	var rec *recording.Recorder
	var opts []viewer.Option
	if !noRecord {
		sink, err := openSink(ctx)
		if err != nil {
			return err
		}
		defer sink.Close()
		rec = recording.NewRecorder(sink, 0)
		defer rec.Close()
		opts = append(opts, viewer.WithRecorder(rec))
	}
	opts = append(opts, viewer.WithOutput(cmd.OutOrStdout()))

	o, err := viewer.NewOrchestrator(vc, opts...)
	if err != nil {
		return err
	}
	if err := o.RunLive(ctx); err != nil {
		return err
	}

	if rec != nil {
		rec.Close()
		if id := rec.LastRecordingID(); id != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Recorded %s\n", id)
		}
	}
	return nil
}

// Helper functions

func viewerConfig(cfg *config.Config) *viewer.ViewerConfig {
	vc := &viewer.ViewerConfig{
		SnapshotInterval: cfg.Timeline.SnapshotInterval,
		Speed:            cfg.Timeline.DefaultSpeed,
		Filter:           filterFromFlags(),
		Plain:            plain,
	}
	if !plain && !layout.IsTerminal() {
		util.LogInfo("stdout is not a terminal, using plain output")
		vc.Plain = true
	}
	return vc
}

func openSink(ctx context.Context) (*recording.SQLiteSink, error) {
	return recording.OpenSQLite(ctx, config.ExpandPath(settings.Storage.DBPath))
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
