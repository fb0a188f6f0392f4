// Package config loads application configuration by layering
// defaults, the config file, environment variables, and CLI flags.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/focusdeck/focusdeck/internal/analytics"
)

// Config holds all application configuration.
type Config struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	NoBrowser bool   `json:"no_browser"`
	DataDir   string `json:"data_dir"`
	LogsDir   string `json:"logs_dir"`
	DBPath    string `json:"-"`

	// Analytics carries the tunable thresholds of the analytics
	// core. Zero-valued fields fall back to the defaults at load
	// time, so a partial config file stays valid.
	Analytics analytics.Settings `json:"analytics"`

	WriteTimeout  time.Duration `json:"-"`
	WatchDebounce time.Duration `json:"-"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	dataDir := filepath.Join(home, ".focusdeck")
	return Config{
		Host:          "127.0.0.1",
		Port:          4040,
		DataDir:       dataDir,
		LogsDir:       filepath.Join(dataDir, "logs"),
		DBPath:        filepath.Join(dataDir, "focusdeck.db"),
		Analytics:     analytics.DefaultSettings(),
		WriteTimeout:  30 * time.Second,
		WatchDebounce: 2 * time.Second,
	}, nil
}

// Load builds a Config by layering: defaults < config file < env < flags.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := LoadMinimal()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)
	return cfg, nil
}

// LoadMinimal builds a Config from defaults, config file, and env,
// without parsing CLI flags. Use this for subcommands that manage
// their own flag sets.
func LoadMinimal() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	cfg.loadEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file struct {
		Host      string              `json:"host"`
		Port      int                 `json:"port"`
		NoBrowser bool                `json:"no_browser"`
		LogsDir   string              `json:"logs_dir"`
		Analytics *analytics.Settings `json:"analytics"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if file.Host != "" {
		c.Host = file.Host
	}
	if file.Port != 0 {
		c.Port = file.Port
	}
	if file.NoBrowser {
		c.NoBrowser = true
	}
	if file.LogsDir != "" {
		c.LogsDir = file.LogsDir
	}
	if file.Analytics != nil {
		c.Analytics = *file.Analytics
	}
	return nil
}

func (c *Config) loadEnv() {
	if v := os.Getenv("FOCUSDECK_DATA_DIR"); v != "" {
		c.DataDir = v
		c.LogsDir = filepath.Join(v, "logs")
	}
	if v := os.Getenv("FOCUSDECK_LOGS_DIR"); v != "" {
		c.LogsDir = v
	}
}

// normalize recomputes derived paths and backfills zero-valued
// analytics settings with their defaults.
func (c *Config) normalize() {
	c.DBPath = filepath.Join(c.DataDir, "focusdeck.db")

	def := analytics.DefaultSettings()
	if c.Analytics.MinimumFocusMinutes <= 0 {
		c.Analytics.MinimumFocusMinutes = def.MinimumFocusMinutes
	}
	if c.Analytics.GracePeriodDays < 0 {
		c.Analytics.GracePeriodDays = def.GracePeriodDays
	}
	if c.Analytics.QualityWeight <= 0 && c.Analytics.VolumeWeight <= 0 {
		c.Analytics.QualityWeight = def.QualityWeight
		c.Analytics.VolumeWeight = def.VolumeWeight
	}
	if c.Analytics.SuggestionCount <= 0 {
		c.Analytics.SuggestionCount = def.SuggestionCount
	}
	if c.Analytics.QualitySmoothing <= 0 {
		c.Analytics.QualitySmoothing = def.QualitySmoothing
	}
	if c.Analytics.TrendDeadBandPct <= 0 {
		c.Analytics.TrendDeadBandPct = def.TrendDeadBandPct
	}
	if c.Analytics.MaxRangeDays <= 0 {
		c.Analytics.MaxRangeDays = def.MaxRangeDays
	}
}

// RegisterServeFlags registers serve-command flags on fs.
// The caller must call fs.Parse before passing fs to Load.
func RegisterServeFlags(fs *flag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 4040, "Port to listen on")
	fs.Bool(
		"no-browser", false,
		"Don't open browser on startup",
	)
	fs.String("logs-dir", "", "Session log directory to import from")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			// flag already validated the int; ignore parse error
			cfg.Port, _ = strconv.Atoi(f.Value.String())
		case "no-browser":
			cfg.NoBrowser = f.Value.String() == "true"
		case "logs-dir":
			cfg.LogsDir = f.Value.String()
		}
	})
}
