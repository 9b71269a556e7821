// Package main is the CLI entry point for contentmon.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/content_mon/internal/config"
	"github.com/eliteGoblin/focusd/content_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
	"github.com/eliteGoblin/focusd/content_mon/internal/infra"
	"github.com/eliteGoblin/focusd/content_mon/internal/policy"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "contentmon",
	Short: "Content monitor - blocks apps showing objectionable content",
	Long: `contentmon watches which application is in the foreground, periodically
classifies what is on screen, and temporarily blocks applications whose
content is flagged by sending the desktop back to its neutral state.`,
	Version:      Version,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor in the foreground",
	Long:  `Runs the recorder, sampler and enforcement loops in this terminal until interrupted.`,
	RunE:  runRun,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the monitor in the background",
	RunE:  runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check monitor status",
	RunE:  runStatus,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the current foreground from the journal",
	Long:  `Runs one foreground resolution against the event journal and prints the result.`,
	RunE:  runResolve,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one sampling cycle immediately",
	Long: `Captures the screen, classifies it, and applies a block if it is flagged.
Blocks made here live only for this process; use it to check the classifier setup.`,
	RunE: runScan,
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect or maintain the event journal",
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete journal events older than the retention period",
	RunE:  runJournalPrune,
}

var journalRekeyCmd = &cobra.Command{
	Use:   "rekey",
	Short: "Re-encrypt the journal under a new key",
	Long:  `Generates a new journal key, re-encrypts the journal with it and replaces the key file. The monitor must be stopped.`,
	RunE:  runJournalRekey,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

// Hidden daemon command - used for self-exec by start
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE:   runDaemon,
}

var (
	configPath string
	verbose    bool
	jsonOutput bool
	olderThan  time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	resolveCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	scanCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	journalPruneCmd.Flags().DurationVar(&olderThan, "older-than", 0, "Override the configured retention")

	journalCmd.AddCommand(journalPruneCmd)
	journalCmd.AddCommand(journalRekeyCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.New(configPath)
	if err != nil {
		return err
	}

	logger := createCLILogger(verbose)
	defer func() { _ = logger.Sync() }()

	return runEngine(cfg, nil, logger)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.New(configPath)
	if err != nil {
		return err
	}

	logger := createDaemonLogger(cfg)
	defer func() { _ = logger.Sync() }()

	dataDir, err := cfg.DataDir()
	if err != nil {
		return err
	}
	registry := infra.NewFileRegistry(dataDir, infra.NewProcessLookup())

	return runEngine(cfg, registry, logger)
}

func runEngine(cfg *config.Config, registry domain.DaemonRegistry, logger *zap.Logger) error {
	e, err := buildEngine(cfg, registry, logger)
	if err != nil {
		logger.Error("failed to start engine", zap.Error(err))
		return err
	}
	defer e.Close()

	ctx, cancel := signalContext(logger)
	defer cancel()

	err = e.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.New(configPath)
	if err != nil {
		return err
	}
	dataDir, err := cfg.DataDir()
	if err != nil {
		return err
	}
	registry := infra.NewFileRegistry(dataDir, infra.NewProcessLookup())

	if registry.IsAlive() {
		fmt.Println("contentmon is already running")
		return nil
	}

	if err := daemon.StartDaemon(configPath); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Wait a moment for the daemon to register
	time.Sleep(500 * time.Millisecond)

	fmt.Println("\n=== contentmon Started ===")
	if entry, _ := registry.Get(); entry != nil {
		fmt.Printf("PID: %d\n", entry.PID)
	} else {
		fmt.Println("Daemon launched; not registered yet (see log)")
	}
	fmt.Printf("Log: %s\n", cfg.Log.Path)
	fmt.Printf("Data: %s\n", dataDir)
	fmt.Println("==========================")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.New(configPath)
	if err != nil {
		return err
	}
	dataDir, err := cfg.DataDir()
	if err != nil {
		return err
	}
	registry := infra.NewFileRegistry(dataDir, infra.NewProcessLookup())

	printStatus(os.Stdout, registry, cfg, time.Now())
	return nil
}

// printStatus reports whether the monitor is running and its settings.
func printStatus(w io.Writer, registry domain.DaemonRegistry, cfg *config.Config, now time.Time) {
	fmt.Fprintln(w, "\n=== contentmon Status ===")

	entry, err := registry.Get()
	if err != nil || entry == nil || !registry.IsAlive() {
		fmt.Fprintln(w, "Status: NOT RUNNING")
		fmt.Fprintln(w, "\nRun 'contentmon start' to enable monitoring.")
		return
	}

	fmt.Fprintln(w, "Status: RUNNING")
	fmt.Fprintf(w, "PID: %d\n", entry.PID)
	if entry.AppVersion != "" {
		fmt.Fprintf(w, "Version: %s\n", entry.AppVersion)
	}
	if entry.StartedAt > 0 {
		fmt.Fprintf(w, "Up: %s\n", now.Sub(time.Unix(entry.StartedAt, 0)).Round(time.Second))
	}
	if entry.LastHeartbeat > 0 {
		fmt.Fprintf(w, "Last heartbeat: %s ago\n", now.Sub(time.Unix(entry.LastHeartbeat, 0)).Round(time.Second))
	}

	fmt.Fprintln(w, "\nSettings:")
	fmt.Fprintf(w, "  Sample interval: %s (threshold %.2f)\n", cfg.Sampler.Interval, cfg.Sampler.Threshold)
	fmt.Fprintf(w, "  Block duration: %s (%s)\n", cfg.Sampler.BlockDuration, cfg.Sampler.DurationPolicy)
	fmt.Fprintf(w, "  Enforcement interval: %s\n", cfg.Enforcement.Interval)
	fmt.Fprintln(w, "=========================")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := config.New(configPath)
	if err != nil {
		return err
	}
	logger := createCLILogger(verbose)
	defer func() { _ = logger.Sync() }()

	e, err := buildEngine(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	now := time.Now()
	fg := e.resolver.Resolve(now)
	if jsonOutput {
		return printJSON(fg)
	}

	cached, ok := e.cache.Peek()
	printResolution(os.Stdout, fg, cached, ok, now)
	return nil
}

// printResolution reports a resolution and, if any, the last app the cache saw.
func printResolution(w io.Writer, fg domain.ResolvedForeground, cached domain.CachedForeground, hasCached bool, now time.Time) {
	if !fg.Resolved() {
		fmt.Fprintln(w, "Foreground: unresolved")
	} else {
		fmt.Fprintf(w, "Foreground: %s (%s, as of %s ago)\n",
			fg.SubjectID, fg.Confidence, now.Sub(fg.AsOf).Round(time.Second))
	}
	if hasCached {
		fmt.Fprintf(w, "Last app seen: %s (%s ago)\n",
			cached.SubjectID, now.Sub(cached.ObservedAt).Round(time.Second))
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.New(configPath)
	if err != nil {
		return err
	}
	logger := createCLILogger(verbose)
	defer func() { _ = logger.Sync() }()

	e, err := buildEngine(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	result := e.sampler.SampleOnce(context.Background())
	if jsonOutput {
		return printJSON(scanView(result))
	}

	fmt.Println("\n=== Sampling Cycle ===")
	switch {
	case result.Skipped != nil:
		fmt.Printf("Skipped: %v\n", result.Skipped)
	case !result.Flagged:
		fmt.Printf("Scores: %v\n", result.Scores)
		fmt.Println("Clean")
	default:
		fmt.Printf("Scores: %v\n", result.Scores)
		fmt.Printf("Flagged: blocked %s (via %s) until %s\n",
			result.BlockedID, result.Source,
			e.blocks.UnblockDeadline(result.BlockedID).Format(time.Kitchen))
		if result.Neutralize {
			fmt.Println("Neutral state forced directly")
		}
	}
	fmt.Printf("Took: %dms\n", result.DurationMs)
	fmt.Println("======================")
	return nil
}

func runJournalPrune(cmd *cobra.Command, args []string) error {
	cfg, err := config.New(configPath)
	if err != nil {
		return err
	}
	logger := createCLILogger(verbose)
	defer func() { _ = logger.Sync() }()

	retention := cfg.Recorder.Retention
	if olderThan > 0 {
		retention = olderThan
	}
	if err := checkRetention(retention, cfg.Resolver.Lookback); err != nil {
		return err
	}

	journal, err := openJournal(cfg, logger)
	if err != nil {
		return err
	}
	defer journal.Close()

	return pruneJournal(os.Stdout, journal, retention, time.Now())
}

// checkRetention refuses retentions that would empty the resolver's window.
func checkRetention(retention, lookback time.Duration) error {
	if retention < lookback {
		return fmt.Errorf("refusing to prune inside the resolver lookback (%s)", lookback)
	}
	return nil
}

func pruneJournal(w io.Writer, pruner daemon.JournalPruner, retention time.Duration, now time.Time) error {
	n, err := pruner.Prune(now.Add(-retention))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Pruned %d events older than %s\n", n, retention)
	return nil
}

func runJournalRekey(cmd *cobra.Command, args []string) error {
	cfg, err := config.New(configPath)
	if err != nil {
		return err
	}
	logger := createCLILogger(verbose)
	defer func() { _ = logger.Sync() }()

	dataDir, err := cfg.DataDir()
	if err != nil {
		return err
	}
	registry := infra.NewFileRegistry(dataDir, infra.NewProcessLookup())
	if err := checkStopped(registry); err != nil {
		return err
	}

	journal, err := openJournal(cfg, logger)
	if err != nil {
		return err
	}
	defer journal.Close()

	if err := infra.RotateJournalKey(infra.NewFileKeyProvider(dataDir), journal); err != nil {
		return err
	}
	fmt.Printf("Journal %s re-encrypted under a new key\n", journal.Path())
	return nil
}

// checkStopped refuses to proceed while a monitor holds the journal open.
func checkStopped(registry domain.DaemonRegistry) error {
	if !registry.IsAlive() {
		return nil
	}
	if entry, _ := registry.Get(); entry != nil {
		return fmt.Errorf("contentmon is running (pid %d); stop it first", entry.PID)
	}
	return errors.New("contentmon is running; stop it first")
}

// scanView flattens a SampleResult for JSON output; errors do not marshal.
func scanView(r domain.SampleResult) map[string]any {
	view := map[string]any{
		"sampled_at":  r.SampledAt,
		"scores":      r.Scores,
		"flagged":     r.Flagged,
		"blocked":     r.BlockedID,
		"source":      r.Source,
		"neutralized": r.Neutralize,
		"duration_ms": r.DurationMs,
	}
	if r.Skipped != nil {
		view["skipped"] = r.Skipped.Error()
	}
	return view
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		_ = printJSON(map[string]any{
			"version":           Version,
			"commit":            Commit,
			"build_time":        BuildTime,
			"duration_policies": policy.NewRegistry().List(),
		})
	} else {
		fmt.Printf("contentmon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
