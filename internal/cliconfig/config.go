package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/canlabs/canmon/internal/domain"
)

// DefaultBitrate is the nominal bus bitrate assumed when none is given.
const DefaultBitrate = 500_000

// Config holds CLI configuration for canmon.
type Config struct {
	CapturePath string
	ReplaySpeed float64

	Bitrate int
	FD      bool

	MaxMessages  int
	HistoryDepth int
	TopTalkers   int

	ReceiveTimeout time.Duration
	DrainInterval  time.Duration
	DrainBatch     int
	StatsInterval  time.Duration
	FadeDelay      time.Duration
	FadeLevels     int
	ErrorThreshold int
	StopTimeout    time.Duration

	Filter string

	CSVLogPath  string
	CBORLogPath string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ReplaySpeed:    1.0,
		Bitrate:        DefaultBitrate,
		MaxMessages:    500,
		HistoryDepth:   1000,
		TopTalkers:     10,
		ReceiveTimeout: 100 * time.Millisecond,
		DrainInterval:  50 * time.Millisecond,
		DrainBatch:     5,
		StatsInterval:  time.Second,
		FadeDelay:      500 * time.Millisecond,
		FadeLevels:     8,
		ErrorThreshold: 10,
		StopTimeout:    2 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.CapturePath == "" {
		return fmt.Errorf("capture is required")
	}
	if c.Bitrate <= 0 {
		return fmt.Errorf("bitrate must be positive")
	}
	if c.ReplaySpeed < 0 {
		return fmt.Errorf("speed must not be negative")
	}
	if c.MaxMessages <= 0 {
		return fmt.Errorf("max-messages must be positive")
	}
	if c.HistoryDepth <= 0 {
		return fmt.Errorf("history-depth must be positive")
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("stats interval must be positive")
	}
	if c.DrainInterval <= 0 {
		return fmt.Errorf("drain interval must be positive")
	}
	if _, err := domain.ParseFilter(c.Filter); err != nil {
		return err
	}
	return nil
}

// FilterIDs parses the configured filter expression.
func (c *Config) FilterIDs() ([]uint32, error) {
	return domain.ParseFilter(c.Filter)
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
