// Package config loads the timeline settings from TOML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/penwyp/go-agent-timeline/internal/core/playback"
	"github.com/penwyp/go-agent-timeline/internal/core/timeline"
	"github.com/penwyp/go-agent-timeline/internal/data/coalescer"
	"github.com/penwyp/go-agent-timeline/internal/data/stream"
	"github.com/penwyp/go-agent-timeline/internal/util"
)

// Environment overrides
const (
	EnvServer   = "AGENT_TIMELINE_SERVER"
	EnvDB       = "AGENT_TIMELINE_DB"
	EnvLogLevel = "AGENT_TIMELINE_LOG_LEVEL"
)

// Default locations, expanded by ExpandPath
const (
	DefaultServerURL  = "http://localhost:4096"
	DefaultConfigFile = "~/.go-agent-timeline/config.toml"
	DefaultDBPath     = "~/.go-agent-timeline/recordings.db"
	DefaultLogFile    = "~/.go-agent-timeline/logs/app.log"
	DefaultLogLevel   = "info"
)

// Duration is a time.Duration written as a string ("1.5s", "100ms") in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the complete application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Stream   StreamConfig   `toml:"stream"`
	Timeline TimelineConfig `toml:"timeline"`
	Storage  StorageConfig  `toml:"storage"`
	Display  DisplayConfig  `toml:"display"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig locates the agent server
type ServerConfig struct {
	URL          string   `toml:"url"`
	HealthPath   string   `toml:"health_path"`
	StreamPath   string   `toml:"stream_path"`
	ProbeTimeout Duration `toml:"probe_timeout"`
}

// StreamConfig tunes reconnects and delta coalescing
type StreamConfig struct {
	BackoffInitial Duration `toml:"backoff_initial"`
	BackoffFactor  float64  `toml:"backoff_factor"`
	BackoffMax     Duration `toml:"backoff_max"`
	CoalesceWindow Duration `toml:"coalesce_window"`
	YieldInterval  Duration `toml:"yield_interval"`
}

type TimelineConfig struct {
	SnapshotInterval int     `toml:"snapshot_interval"`
	DefaultSpeed     float64 `toml:"default_speed"`
}

type StorageConfig struct {
	DBPath   string `toml:"db_path"`
	InboxDir string `toml:"inbox_dir"`
}

// DisplayConfig controls how timestamps are rendered
type DisplayConfig struct {
	Timezone string `toml:"timezone"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// New returns the defaults
func New() *Config {
	return &Config{
		Server: ServerConfig{
			URL:          DefaultServerURL,
			HealthPath:   stream.DefaultHealthPath,
			StreamPath:   stream.DefaultStreamPath,
			ProbeTimeout: Duration{stream.DefaultProbeTimeout},
		},
		Stream: StreamConfig{
			BackoffInitial: Duration{stream.DefaultBackoffInitial},
			BackoffFactor:  stream.DefaultBackoffFactor,
			BackoffMax:     Duration{stream.DefaultBackoffMax},
			CoalesceWindow: Duration{coalescer.DefaultWindow},
			YieldInterval:  Duration{stream.DefaultYieldInterval},
		},
		Timeline: TimelineConfig{
			SnapshotInterval: timeline.DefaultSnapshotInterval,
			DefaultSpeed:     playback.DefaultSpeed,
		},
		Storage: StorageConfig{
			DBPath: DefaultDBPath,
		},
		Display: DisplayConfig{
			Timezone: "Local",
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
			File:  DefaultLogFile,
		},
	}
}

// LoadFile overlays the TOML file at path onto the defaults
func LoadFile(path string) (*Config, error) {
	cfg := New()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Load reads path (or the default config file when path is empty), then
// applies .env and environment overrides and validates the result. A
// missing default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = ExpandPath(DefaultConfigFile)
	}

	cfg := New()
	if _, err := os.Stat(path); err == nil {
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env from the working directory into the process
// environment. Variables already set win; a missing file is ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv copies AGENT_TIMELINE_* variables over the file settings
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvServer)); v != "" {
		c.Server.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDB)); v != "" {
		c.Storage.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
}

// Validate fills zero values with defaults and rejects unusable settings
func (c *Config) Validate() error {
	def := New()

	c.Server.URL = strings.TrimSpace(c.Server.URL)
	if c.Server.URL == "" {
		return errors.New("server.url must not be empty")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.url %q is not an http(s) URL", c.Server.URL)
	}
	if c.Server.HealthPath == "" {
		c.Server.HealthPath = def.Server.HealthPath
	}
	if c.Server.StreamPath == "" {
		c.Server.StreamPath = def.Server.StreamPath
	}
	if c.Server.ProbeTimeout.Duration <= 0 {
		c.Server.ProbeTimeout = def.Server.ProbeTimeout
	}

	if c.Stream.BackoffInitial.Duration <= 0 {
		c.Stream.BackoffInitial = def.Stream.BackoffInitial
	}
	if c.Stream.BackoffFactor == 0 {
		c.Stream.BackoffFactor = def.Stream.BackoffFactor
	}
	if c.Stream.BackoffFactor < 1 {
		return fmt.Errorf("stream.backoff_factor must be >= 1, got %g", c.Stream.BackoffFactor)
	}
	if c.Stream.BackoffMax.Duration <= 0 {
		c.Stream.BackoffMax = def.Stream.BackoffMax
	}
	if c.Stream.BackoffMax.Duration < c.Stream.BackoffInitial.Duration {
		return fmt.Errorf("stream.backoff_max (%s) is below stream.backoff_initial (%s)",
			c.Stream.BackoffMax.Duration, c.Stream.BackoffInitial.Duration)
	}
	if c.Stream.CoalesceWindow.Duration <= 0 {
		c.Stream.CoalesceWindow = def.Stream.CoalesceWindow
	}
	if c.Stream.YieldInterval.Duration <= 0 {
		c.Stream.YieldInterval = def.Stream.YieldInterval
	}

	if c.Timeline.SnapshotInterval <= 0 {
		c.Timeline.SnapshotInterval = def.Timeline.SnapshotInterval
	}
	if c.Timeline.DefaultSpeed == 0 {
		c.Timeline.DefaultSpeed = def.Timeline.DefaultSpeed
	}
	if err := playback.ValidateSpeed(c.Timeline.DefaultSpeed); err != nil {
		return fmt.Errorf("timeline.default_speed: %w", err)
	}

	if c.Storage.DBPath == "" {
		c.Storage.DBPath = def.Storage.DBPath
	}
	if c.Display.Timezone == "" {
		c.Display.Timezone = def.Display.Timezone
	}
	if _, err := util.LoadTimezone(c.Display.Timezone); err != nil {
		return fmt.Errorf("display.timezone: %w", err)
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
		c.Log.Level = strings.ToLower(c.Log.Level)
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if c.Log.File == "" {
		c.Log.File = def.Log.File
	}
	return nil
}

// StreamSettings converts the server and stream sections for the connection manager
func (c *Config) StreamSettings() stream.Config {
	return stream.Config{
		BaseURL:        c.Server.URL,
		HealthPath:     c.Server.HealthPath,
		StreamPath:     c.Server.StreamPath,
		ProbeTimeout:   c.Server.ProbeTimeout.Duration,
		BackoffInitial: c.Stream.BackoffInitial.Duration,
		BackoffFactor:  c.Stream.BackoffFactor,
		BackoffMax:     c.Stream.BackoffMax.Duration,
		CoalesceWindow: c.Stream.CoalesceWindow.Duration,
		YieldInterval:  c.Stream.YieldInterval.Duration,
	}
}

// ExpandPath resolves a leading ~/ and makes the path absolute
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
