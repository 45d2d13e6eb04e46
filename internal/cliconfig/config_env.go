package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (CANMON_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("capture", os.Getenv("CANMON_CAPTURE"), &cfg.CapturePath)
	s.setString("filter", os.Getenv("CANMON_FILTER"), &cfg.Filter)
	s.setString("csv-log", os.Getenv("CANMON_CSV_LOG"), &cfg.CSVLogPath)
	s.setString("cbor-log", os.Getenv("CANMON_CBOR_LOG"), &cfg.CBORLogPath)

	if err := s.setFloatFromString("speed", os.Getenv("CANMON_SPEED"), &cfg.ReplaySpeed); err != nil {
		return err
	}
	if err := s.setIntFromString("bitrate", os.Getenv("CANMON_BITRATE"), &cfg.Bitrate); err != nil {
		return err
	}
	if err := s.setIntFromString("max-messages", os.Getenv("CANMON_MAX_MESSAGES"), &cfg.MaxMessages); err != nil {
		return err
	}
	if err := s.setIntFromString("history-depth", os.Getenv("CANMON_HISTORY_DEPTH"), &cfg.HistoryDepth); err != nil {
		return err
	}
	if err := s.setIntFromString("top-talkers", os.Getenv("CANMON_TOP_TALKERS"), &cfg.TopTalkers); err != nil {
		return err
	}
	if err := s.setIntFromString("error-threshold", os.Getenv("CANMON_ERROR_THRESHOLD"), &cfg.ErrorThreshold); err != nil {
		return err
	}

	if err := s.setDuration("receive-timeout", os.Getenv("CANMON_RECEIVE_TIMEOUT"), &cfg.ReceiveTimeout); err != nil {
		return err
	}
	if err := s.setDuration("stats-interval", os.Getenv("CANMON_STATS_INTERVAL"), &cfg.StatsInterval); err != nil {
		return err
	}
	if err := s.setDuration("fade-delay", os.Getenv("CANMON_FADE_DELAY"), &cfg.FadeDelay); err != nil {
		return err
	}
	if err := s.setDuration("stop-timeout", os.Getenv("CANMON_STOP_TIMEOUT"), &cfg.StopTimeout); err != nil {
		return err
	}

	s.setBoolFromString("fd", os.Getenv("CANMON_FD"), &cfg.FD)

	return nil
}
