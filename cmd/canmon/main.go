package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/canlabs/canmon"
	"github.com/canlabs/canmon/internal/adapters/cborlog"
	"github.com/canlabs/canmon/internal/adapters/csvlog"
	"github.com/canlabs/canmon/internal/adapters/replay"
	"github.com/canlabs/canmon/internal/cliconfig"
	"github.com/canlabs/canmon/pkg/log"
)

const helpDescription = `
Monitor CAN and CAN FD traffic from a candump capture: latest payload per
identifier, frame rates, bus load, change highlighting, and top talkers.

Highlights:
  - Replays captures at recorded pace, faster, or as fast as possible.
  - Filters by identifier; reloads the filter live from the config file.
  - Logs every frame to CSV or a compact CBOR stream for offline analysis.
  - Configure via file ($HOME/.canmon/config.toml), CANMON_* env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  canmon --capture bus.log
  canmon --capture bus.log --speed 10 --filter 123,2F0 --csv-log out.csv
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var verbose bool

	logger := log.NewZerologAdapter()

	root := &cobra.Command{
		Use:     "canmon",
		Short:   "Monitor CAN bus traffic from a capture file",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first, then env, then flag overrides.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			return run(cfg, cfgFile, changed, logger, verbose)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.canmon/config.toml)")
	root.Flags().StringVar(&cfg.CapturePath, "capture", cfg.CapturePath, "candump capture file to replay")
	root.Flags().Float64Var(&cfg.ReplaySpeed, "speed", cfg.ReplaySpeed, "replay speed factor (0 = as fast as possible)")
	root.Flags().IntVar(&cfg.Bitrate, "bitrate", cfg.Bitrate, "nominal bus bitrate for the load estimate")
	root.Flags().BoolVar(&cfg.FD, "fd", cfg.FD, "assume CAN FD frame overhead")
	root.Flags().StringVar(&cfg.Filter, "filter", cfg.Filter, "comma separated hex identifiers to admit (empty = all)")
	root.Flags().IntVar(&cfg.MaxMessages, "max-messages", cfg.MaxMessages, "maximum tracked identifiers before eviction")
	root.Flags().IntVar(&cfg.HistoryDepth, "history-depth", cfg.HistoryDepth, "payload samples kept per identifier")
	root.Flags().IntVar(&cfg.TopTalkers, "top-talkers", cfg.TopTalkers, "ranking depth for the busiest identifiers")
	root.Flags().StringVar(&cfg.CSVLogPath, "csv-log", cfg.CSVLogPath, "write every frame to this CSV file")
	root.Flags().StringVar(&cfg.CBORLogPath, "cbor-log", cfg.CBORLogPath, "write every frame to this CBOR stream")
	root.Flags().DurationVar(&cfg.StatsInterval, "stats-interval", cfg.StatsInterval, "rate and bus load recompute window")
	root.Flags().IntVar(&cfg.ErrorThreshold, "error-threshold", cfg.ErrorThreshold, "consecutive bus errors before giving up")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every record update")

	if err := root.Execute(); err != nil {
		logger.Error("canmon", log.Err(err))
		os.Exit(1)
	}
}

func run(cfg cliconfig.Config, cfgFile string, changed map[string]bool, logger *log.ZerologAdapter, verbose bool) error {
	opts := []canmon.Option{canmon.WithLogger(logger)}

	var sinks multiSink
	if cfg.CSVLogPath != "" {
		sink, err := csvlog.Create(cfg.CSVLogPath, logger)
		if err != nil {
			return err
		}
		defer sink.Close()
		sinks = append(sinks, sink)
	}
	if cfg.CBORLogPath != "" {
		sink, err := cborlog.Create(cfg.CBORLogPath, logger)
		if err != nil {
			return err
		}
		defer sink.Close()
		sinks = append(sinks, sink)
	}
	switch len(sinks) {
	case 0:
	case 1:
		opts = append(opts, canmon.WithLogSink(sinks[0]))
	default:
		opts = append(opts, canmon.WithLogSink(sinks))
	}
	if verbose {
		opts = append(opts, canmon.WithDisplay(&logDisplay{logger: logger}))
	}

	m, err := canmon.New(canmon.Config{
		Bitrate:        cfg.Bitrate,
		FD:             cfg.FD,
		MaxMessages:    cfg.MaxMessages,
		HistoryDepth:   cfg.HistoryDepth,
		TopTalkers:     cfg.TopTalkers,
		ReceiveTimeout: cfg.ReceiveTimeout,
		DrainInterval:  cfg.DrainInterval,
		DrainBatch:     cfg.DrainBatch,
		StatsInterval:  cfg.StatsInterval,
		FadeDelay:      cfg.FadeDelay,
		FadeLevels:     cfg.FadeLevels,
		ErrorThreshold: cfg.ErrorThreshold,
		StopTimeout:    cfg.StopTimeout,
	}, opts...)
	if err != nil {
		return fmt.Errorf("create monitor: %w", err)
	}

	if err := m.SetFilter(cfg.Filter); err != nil {
		return err
	}

	transport, err := replay.Open(cfg.CapturePath, cfg.ReplaySpeed)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := m.Start(transport); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}

	// Reload the filter when the config file changes on disk. The reload
	// goes through the same precedence as startup, so an explicit --filter
	// flag keeps winning and a file without the key changes nothing.
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		watcher := cliconfig.NewWatcher(cfgFile, logger, func(fc cliconfig.FileConfig) {
			next := cfg
			if err := cliconfig.ApplyFileConfig(&next, fc, changed); err != nil {
				logger.Warn("reloaded config rejected", log.Err(err))
				return
			}
			if next.Filter == cfg.Filter {
				return
			}
			if err := m.SetFilter(next.Filter); err != nil {
				logger.Warn("reloaded filter rejected", log.Err(err))
				return
			}
			cfg.Filter = next.Filter
		})
		go watcher.Run(ctx)
	}

	// Poll for completion: the capture running out crashes the session.
	doneCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status := m.Status()
				if status == canmon.StateStopped || status == canmon.StateCrashed {
					close(doneCh)
					return
				}
			}
		}
	}()

	select {
	case <-sigCh:
		logger.Info("received signal, stopping...")
		if err := m.Stop(); err != nil {
			return fmt.Errorf("stop monitor: %w", err)
		}
	case <-doneCh:
	}

	printSummary(m, cfg.TopTalkers)
	return nil
}

// multiSink fans a log entry out to several sinks.
type multiSink []canmon.LogSink

func (m multiSink) Record(e canmon.LogEntry) {
	for _, s := range m {
		s.Record(e)
	}
}

func (m multiSink) Close() error {
	var err error
	for _, s := range m {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// logDisplay logs record updates through the structured logger.
type logDisplay struct {
	logger *log.ZerologAdapter
}

func (d *logDisplay) OnUpdate(id uint32, rec canmon.MessageRecord) {
	d.logger.Debug("record updated",
		log.String("id", rec.Latest.IDString()),
		log.String("data", rec.Latest.DataString()),
		log.Int("highlight", rec.HighlightLevel),
	)
}

func printSummary(m *canmon.Monitor, topN int) {
	records := m.Records()
	stats := m.Stats()

	fmt.Printf("\n%d identifiers tracked, %.1f frames/s, %.1f%% bus load\n\n",
		len(records), stats.Rate, stats.BusLoad)
	fmt.Printf("%-10s %-6s %-10s %s\n", "ID", "COUNT", "FREQ", "DATA")
	for _, r := range records {
		var count uint64
		if st, ok := m.IDStats(r.ID); ok {
			count = st.Count
		}
		fmt.Printf("%-10s %-6d %-10.2f %s\n",
			r.Record.Latest.IDString(), count, m.Frequency(r.ID), r.Record.Latest.DataString())
	}

	talkers := m.TopTalkers(topN)
	if len(talkers) > 0 {
		fmt.Printf("\nTop talkers:\n")
		for i, t := range talkers {
			fmt.Printf("  %2d. %X (%d frames)\n", i+1, t.ID, t.Count)
		}
	}
}
