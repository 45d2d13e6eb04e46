package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Capture     string  `toml:"capture"`
	Speed       float64 `toml:"speed"`
	Bitrate     int     `toml:"bitrate"`
	FD          *bool   `toml:"fd"`
	MaxMessages int     `toml:"max_messages"`
	History     int     `toml:"history_depth"`
	TopTalkers  int     `toml:"top_talkers"`

	ReceiveTimeout string `toml:"receive_timeout"`
	DrainInterval  string `toml:"drain_interval"`
	DrainBatch     int    `toml:"drain_batch"`
	StatsInterval  string `toml:"stats_interval"`
	FadeDelay      string `toml:"fade_delay"`
	FadeLevels     int    `toml:"fade_levels"`
	ErrorThreshold int    `toml:"error_threshold"`
	StopTimeout    string `toml:"stop_timeout"`

	Filter string `toml:"filter"`

	CSVLog  string `toml:"csv_log"`
	CBORLog string `toml:"cbor_log"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.canmon/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".canmon", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("capture", fc.Capture, &cfg.CapturePath)
	s.setFloat("speed", fc.Speed, &cfg.ReplaySpeed)
	s.setInt("bitrate", fc.Bitrate, &cfg.Bitrate)
	s.setBool("fd", fc.FD, &cfg.FD)
	s.setInt("max-messages", fc.MaxMessages, &cfg.MaxMessages)
	s.setInt("history-depth", fc.History, &cfg.HistoryDepth)
	s.setInt("top-talkers", fc.TopTalkers, &cfg.TopTalkers)

	if err := s.setDuration("receive-timeout", fc.ReceiveTimeout, &cfg.ReceiveTimeout); err != nil {
		return err
	}
	if err := s.setDuration("drain-interval", fc.DrainInterval, &cfg.DrainInterval); err != nil {
		return err
	}
	s.setInt("drain-batch", fc.DrainBatch, &cfg.DrainBatch)
	if err := s.setDuration("stats-interval", fc.StatsInterval, &cfg.StatsInterval); err != nil {
		return err
	}
	if err := s.setDuration("fade-delay", fc.FadeDelay, &cfg.FadeDelay); err != nil {
		return err
	}
	s.setInt("fade-levels", fc.FadeLevels, &cfg.FadeLevels)
	s.setInt("error-threshold", fc.ErrorThreshold, &cfg.ErrorThreshold)
	if err := s.setDuration("stop-timeout", fc.StopTimeout, &cfg.StopTimeout); err != nil {
		return err
	}

	s.setString("filter", fc.Filter, &cfg.Filter)
	s.setString("csv-log", fc.CSVLog, &cfg.CSVLogPath)
	s.setString("cbor-log", fc.CBORLog, &cfg.CBORLogPath)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
