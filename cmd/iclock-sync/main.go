package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"iclock-sync/clocksync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath       string
		dryRun           bool
		sinceDays        int
		loopSeconds      int
		exportSimple     bool
		exportNormalized bool
		rebuildCache     bool
		staffFile        string
		cachePath        string
		outputDir        string
		ledgerDB         string
		safetyCeiling    int
		syslogAddr       string
		debug            bool
		logLevel         string
	)

	flagSet := pflag.NewFlagSet("iclock-sync", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "YAML config file path.")
	flagSet.BoolVar(&dryRun, "dry-run", false, "Preview uploads without writing to the ledger.")
	flagSet.IntVar(&sinceDays, "since", 0, "Include only logs from the past N days (0 = all).")
	flagSet.IntVar(&loopSeconds, "loop", 0, "Sync continuously with this base interval in seconds (0 = run once).")
	flagSet.BoolVar(&exportSimple, "export-simple", false, "Export simplified logs and stop before upload.")
	flagSet.BoolVar(&exportNormalized, "export-normalized", false, "Export normalized logs and stop before upload.")
	flagSet.BoolVar(&rebuildCache, "rebuild-cache", false, "Rebuild the uploaded-ids cache from output artifacts and exit.")
	flagSet.StringVar(&staffFile, "upload-staff", "", "Upload the staff roster JSON file to the ledger and exit.")
	flagSet.StringVar(&cachePath, "cache", "", "Uploaded-ids cache path (overrides config cache_path).")
	flagSet.StringVar(&outputDir, "output", "", "Artifact output directory (overrides config output_dir).")
	flagSet.StringVar(&ledgerDB, "ledger-db", "", "Ledger SQLite database path (overrides config ledger.db).")
	flagSet.IntVar(&safetyCeiling, "safety-ceiling", clocksync.DefaultSafetyCeiling, "Abort a pass with more pending uploads than this (0 = no limit).")
	flagSet.StringVar(&syslogAddr, "syslog-addr", "", "Send a per-pass heartbeat to this syslog TCP address.")
	flagSet.BoolVar(&debug, "debug", false, "Enable debug logs.")
	flagSet.StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error).")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	visited := map[string]bool{}
	flagSet.Visit(func(f *pflag.Flag) {
		visited[f.Name] = true
	})

	fileCfg := &clocksync.FileConfig{}
	if configPath != "" {
		cfg, err := clocksync.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		fileCfg = cfg
	}
	if err := fileCfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}

	// CLI overrides
	if visited["cache"] {
		fileCfg.CachePath = cachePath
	}
	if visited["output"] {
		fileCfg.OutputDir = outputDir
	}
	if visited["ledger-db"] {
		fileCfg.Ledger.DB = ledgerDB
	}
	if visited["safety-ceiling"] {
		fileCfg.SafetyCeiling = &safetyCeiling
	}
	if visited["syslog-addr"] {
		fileCfg.SyslogAddr = syslogAddr
	}
	if visited["debug"] {
		fileCfg.Debug = debug
	}
	if visited["log-level"] {
		fileCfg.LogLevel = logLevel
	}
	if visited["loop"] {
		fileCfg.BaseInterval = loopSeconds
	}
	fileCfg.ApplyDefaults()

	log, err := clocksync.NewLogger(os.Stderr, fileCfg.LogLevel, fileCfg.Debug)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	if rebuildCache {
		return runRebuildCache(fileCfg, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exportOnly := exportSimple || exportNormalized
	var ledger *clocksync.SQLLedger
	if staffFile != "" || (!dryRun && !exportOnly) {
		ledger, err = clocksync.OpenLedger(clocksync.LedgerConfig{
			DBPath:          fileCfg.Ledger.DB,
			Collection:      fileCfg.Ledger.Collection,
			StaffCollection: fileCfg.Ledger.StaffCollection,
		})
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer ledger.Close()
	}

	if staffFile != "" {
		res, err := clocksync.UploadStaffList(ctx, staffFile, ledger, log)
		if err != nil {
			return fmt.Errorf("upload staff: %w", err)
		}
		log.Info().Int("uploaded", res.Uploaded).Int("skipped", res.Skipped).Int("invalid", res.Invalid).Msg("staff upload complete")
		return nil
	}

	if err := fileCfg.Validate(); err != nil {
		return err
	}
	for _, d := range fileCfg.Devices {
		log.Info().Str("device", d.Name).Str("endpoint", net.JoinHostPort(d.Address, strconv.Itoa(fileCfg.Port))).Msg("device loaded")
	}

	runnerCfg := clocksync.RunnerConfig{
		Devices:          fileCfg.Devices,
		Timeout:          time.Duration(fileCfg.Timeout),
		CachePath:        fileCfg.CachePath,
		OutputDir:        fileCfg.OutputDir,
		SafetyCeiling:    *fileCfg.SafetyCeiling,
		Since:            time.Duration(sinceDays) * 24 * time.Hour,
		DryRun:           dryRun,
		ExportSimple:     exportSimple,
		ExportNormalized: exportNormalized,
		SyslogAddr:       fileCfg.SyslogAddr,
		JobLabel:         fileCfg.Job,
		ServiceLabel:     fileCfg.Service,
		Logger:           log,
	}
	var ledgerArg clocksync.Ledger
	if ledger != nil {
		ledgerArg = ledger
	}
	runner, err := clocksync.NewRunner(runnerCfg, clocksync.NewExportFileClient(log), ledgerArg)
	if err != nil {
		return fmt.Errorf("init runner: %w", err)
	}

	if !visited["loop"] || loopSeconds <= 0 || exportOnly {
		if _, err := runner.RunOnce(ctx); err != nil {
			return fmt.Errorf("run once: %w", err)
		}
		return nil
	}

	log.Info().Int("base_interval_s", fileCfg.BaseInterval).Msg("starting sync loop (Ctrl+C to stop)")
	sched := clocksync.NewScheduler(fileCfg.BaseInterval, time.Now, log)
	return runner.RunLoop(ctx, sched)
}

func runRebuildCache(cfg *clocksync.FileConfig, log zerolog.Logger) error {
	ids, err := clocksync.RebuildCacheFromArtifacts(cfg.OutputDir, log)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		log.Warn().Str("output_dir", cfg.OutputDir).Msg("no document ids found in output artifacts")
		return nil
	}
	if err := clocksync.NewDedupCache(cfg.CachePath, log).Save(ids); err != nil {
		return fmt.Errorf("save cache: %w", err)
	}
	log.Info().Int("ids", len(ids)).Str("path", cfg.CachePath).Msg("cache rebuilt")
	return nil
}
