package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// sections: SCROBSYNC_LASTFM__API_KEY sets lastfm.api_key.
const EnvPrefix = "SCROBSYNC_"

// Library source kinds.
const (
	SourceITunes = "itunes"
	SourceMPD    = "mpd"
)

type Config struct {
	// Last.fm API credentials (required for syncing)
	Lastfm LastfmConfig `koanf:"lastfm"`

	// Local play-count source
	Library LibraryConfig `koanf:"library"`

	Sync    SyncConfig    `koanf:"sync"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Notify  NotifyConfig  `koanf:"notify"`
}

// LastfmConfig holds Last.fm API credentials.
type LastfmConfig struct {
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`
}

// LibraryConfig selects and configures the play-count source.
type LibraryConfig struct {
	Source            string `koanf:"source"`             // "itunes" or "mpd" (default: itunes)
	ITunesPath        string `koanf:"itunes_path"`        // path to the exported library XML
	MPDAddr           string `koanf:"mpd_addr"`           // e.g., "localhost:6600"
	MPDPassword       string `koanf:"mpd_password"`       // optional
	MusicDir          string `koanf:"music_dir"`          // MPD music directory, needed for artwork
	PlayCountSticker  string `koanf:"playcount_sticker"`  // default: "playcount"
	LastPlayedSticker string `koanf:"lastplayed_sticker"` // default: "lastplayed"
	Artwork           bool   `koanf:"artwork"`            // cache cover art with snapshots
}

// SyncConfig tunes sync passes and the background scheduler.
type SyncConfig struct {
	IntervalMinutes            int    `koanf:"interval_minutes"`             // background wake-up (default: 30)
	MinIntervalMinutes         int    `koanf:"min_interval_minutes"`         // floor for wake-ups (default: 15)
	TaskBudgetSeconds          int    `koanf:"task_budget_seconds"`          // background pass budget (default: 30)
	ConnectivityTimeoutSeconds int    `koanf:"connectivity_timeout_seconds"` // probe timeout (default: 5)
	ConnectivityAddr           string `koanf:"connectivity_addr"`            // probe target (default: ws.audioscrobbler.com:443)
	HistoryLimit               int    `koanf:"history_limit"`                // mirrored scrobbles per refresh (1-200, default: 50)
	RetentionDays              int    `koanf:"retention_days"`               // snapshot retention (default: 30)
	PruneIntervalHours         int    `koanf:"prune_interval_hours"`         // default: 6
	LookbackDays               int    `koanf:"lookback_days"`                // new-track window (1-14, default: 14)
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error (default: info)
	Format string `koanf:"format"` // "json" or "console" (default: console)
}

// MetricsConfig configures the Prometheus endpoint of the daemon.
type MetricsConfig struct {
	Addr string `koanf:"addr"` // e.g., "127.0.0.1:9464"; empty disables it
}

// NotifyConfig configures desktop notifications.
type NotifyConfig struct {
	Enabled *bool `koanf:"enabled"` // default: true
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	// Environment overrides everything
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.Library.Source = strings.ToLower(strings.TrimSpace(cfg.Library.Source))
	cfg.Library.ITunesPath = expandPath(cfg.Library.ITunesPath)
	cfg.Library.MusicDir = expandPath(cfg.Library.MusicDir)

	return cfg, nil
}

func getConfigPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/scrobsync/config.toml
		filepath.Join(xdg.ConfigHome, "scrobsync", "config.toml"),
		// 2. ./config.toml (pwd, highest priority)
		"config.toml",
	}
}

// envKey maps SCROBSYNC_SYNC__INTERVAL_MINUTES to sync.interval_minutes.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// HasLastfmConfig returns true if Last.fm credentials are configured.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != ""
}

// HasLibraryConfig returns true if the selected library source has what it
// needs to be opened.
func (c *Config) HasLibraryConfig() bool {
	lib := c.GetLibraryConfig()
	switch lib.Source {
	case SourceITunes:
		return lib.ITunesPath != ""
	case SourceMPD:
		return lib.MPDAddr != ""
	}
	return false
}

// HasMetricsConfig returns true if the metrics endpoint is enabled.
func (c *Config) HasMetricsConfig() bool {
	return c.Metrics.Addr != ""
}

// NotificationsEnabled reports whether background scrobbles are announced.
func (c *Config) NotificationsEnabled() bool {
	return c.Notify.Enabled == nil || *c.Notify.Enabled
}

// GetLibraryConfig returns the library configuration with defaults applied.
func (c *Config) GetLibraryConfig() LibraryConfig {
	cfg := c.Library

	if cfg.Source == "" {
		cfg.Source = SourceITunes
	}
	if cfg.PlayCountSticker == "" {
		cfg.PlayCountSticker = "playcount"
	}
	if cfg.LastPlayedSticker == "" {
		cfg.LastPlayedSticker = "lastplayed"
	}

	return cfg
}

// GetSyncConfig returns the sync configuration with defaults applied.
func (c *Config) GetSyncConfig() SyncConfig {
	cfg := c.Sync

	if cfg.MinIntervalMinutes <= 0 {
		cfg.MinIntervalMinutes = 15
	}
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = 30
	}
	if cfg.IntervalMinutes < cfg.MinIntervalMinutes {
		cfg.IntervalMinutes = cfg.MinIntervalMinutes
	}
	if cfg.TaskBudgetSeconds <= 0 {
		cfg.TaskBudgetSeconds = 30
	}
	if cfg.ConnectivityTimeoutSeconds <= 0 {
		cfg.ConnectivityTimeoutSeconds = 5
	}
	if cfg.ConnectivityAddr == "" {
		cfg.ConnectivityAddr = "ws.audioscrobbler.com:443"
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > 200 {
		cfg.HistoryLimit = 50
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.PruneIntervalHours <= 0 {
		cfg.PruneIntervalHours = 6
	}
	if cfg.LookbackDays <= 0 || cfg.LookbackDays > 14 {
		cfg.LookbackDays = 14
	}

	return cfg
}

// GetLogConfig returns the log configuration with defaults applied.
func (c *Config) GetLogConfig() LogConfig {
	cfg := c.Log
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "console"
	}
	return cfg
}

func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

func (s SyncConfig) MinInterval() time.Duration {
	return time.Duration(s.MinIntervalMinutes) * time.Minute
}

func (s SyncConfig) TaskBudget() time.Duration {
	return time.Duration(s.TaskBudgetSeconds) * time.Second
}

func (s SyncConfig) ConnectivityTimeout() time.Duration {
	return time.Duration(s.ConnectivityTimeoutSeconds) * time.Second
}

func (s SyncConfig) Retention() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

func (s SyncConfig) PruneInterval() time.Duration {
	return time.Duration(s.PruneIntervalHours) * time.Hour
}

func (s SyncConfig) Lookback() time.Duration {
	return time.Duration(s.LookbackDays) * 24 * time.Hour
}
