package canmon

import (
	"fmt"
	"time"
)

// Config holds the tuning for a Monitor. Use DefaultConfig() for a Config
// with sensible defaults; zero fields are filled in by New().
type Config struct {
	// Bitrate is the nominal bus bitrate in bits per second, used for the
	// bus load estimate.
	Bitrate int

	// FD selects CAN FD limits: 64 byte payloads and the larger frame
	// overhead in the load estimate.
	FD bool

	// MaxMessages bounds the number of tracked identifiers. The oldest
	// identifier by first appearance is evicted when full.
	MaxMessages int

	// HistoryDepth bounds the payload samples kept per identifier.
	HistoryDepth int

	// TopTalkers is the ranking depth kept by the sliding top-K sketch.
	TopTalkers int

	// ReceiveTimeout is the transport poll granularity.
	ReceiveTimeout time.Duration

	// DrainInterval and DrainBatch pace queue consumption.
	DrainInterval time.Duration
	DrainBatch    int

	// StatsInterval is the rate and bus load recompute window.
	StatsInterval time.Duration

	// FadeDelay and FadeLevels shape highlight decay after a payload
	// change.
	FadeDelay  time.Duration
	FadeLevels int

	// ErrorThreshold is the consecutive transient error count that ends a
	// connection.
	ErrorThreshold int

	// StopTimeout bounds how long Stop() waits for the receiver to exit.
	StopTimeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills in zero fields with default values.
func (c *Config) SetDefaults() {
	if c.Bitrate == 0 {
		c.Bitrate = 500_000
	}
	if c.MaxMessages == 0 {
		c.MaxMessages = 500
	}
	if c.HistoryDepth == 0 {
		c.HistoryDepth = 1000
	}
	if c.TopTalkers == 0 {
		c.TopTalkers = 10
	}
	if c.ReceiveTimeout == 0 {
		c.ReceiveTimeout = 100 * time.Millisecond
	}
	if c.DrainInterval == 0 {
		c.DrainInterval = 50 * time.Millisecond
	}
	if c.DrainBatch == 0 {
		c.DrainBatch = 5
	}
	if c.StatsInterval == 0 {
		c.StatsInterval = time.Second
	}
	if c.FadeDelay == 0 {
		c.FadeDelay = 500 * time.Millisecond
	}
	if c.FadeLevels == 0 {
		c.FadeLevels = 8
	}
	if c.ErrorThreshold == 0 {
		c.ErrorThreshold = 10
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = 2 * time.Second
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Bitrate <= 0 {
		return fmt.Errorf("bitrate must be positive")
	}
	if c.MaxMessages <= 0 {
		return fmt.Errorf("max messages must be positive")
	}
	if c.HistoryDepth <= 0 {
		return fmt.Errorf("history depth must be positive")
	}
	if c.DrainInterval <= 0 || c.DrainBatch <= 0 {
		return fmt.Errorf("drain interval and batch must be positive")
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("stats interval must be positive")
	}
	if c.FadeDelay <= 0 || c.FadeLevels <= 0 {
		return fmt.Errorf("fade delay and levels must be positive")
	}
	if c.ErrorThreshold <= 0 {
		return fmt.Errorf("error threshold must be positive")
	}
	return nil
}
