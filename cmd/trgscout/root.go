package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solveiti/trgscout/internal/config"
	"github.com/solveiti/trgscout/internal/exportcsv"
	"github.com/solveiti/trgscout/internal/orchestrator"
	"github.com/solveiti/trgscout/internal/store"
	"github.com/solveiti/trgscout/internal/types"
)

// Version information set at build time via ldflags:
//
//	-X main.Version=1.0.0
//	-X main.Commit=abc1234
//	-X main.Date=2026-01-30T12:00:00Z
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var flags struct {
	mode        string
	maxStores   int
	noTunnels   bool
	noDatabase  bool
	verbose     bool
	configPath  string
	exportTable bool
	dryRun      bool
}

var rootCmd = &cobra.Command{
	Use:           "trgscout",
	Short:         "trgscout - auto-moto dealer sitemap scraper",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	rootCmd.Flags().StringVar(&flags.mode, "mode", "tunnel", "scrape mode: tunnel, enhanced, or basic")
	rootCmd.Flags().IntVar(&flags.maxStores, "max-stores", 0, "maximum number of stores to visit (0 = no limit)")
	rootCmd.Flags().BoolVar(&flags.noTunnels, "no-tunnels", false, "force tunnel mode to behave without C4 even if tunnel mode is requested")
	rootCmd.Flags().BoolVar(&flags.noDatabase, "no-database", false, "do not write to storage, emit results to stdout only")
	rootCmd.Flags().BoolVar(&flags.verbose, "verbose", false, "enable debug-level logging")
	rootCmd.Flags().StringVar(&flags.configPath, "config", "", "path to a YAML config file (overrides TRGSCOUT_CONFIG_PATH)")
	rootCmd.Flags().BoolVar(&flags.exportTable, "export-table", false, "after the run, dump the registry as CSV to stdout")
	rootCmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "print the chosen URL list and exit without scraping")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "trgscout %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

func run(cmd *cobra.Command, args []string) error {
	mode, err := parseMode(flags.mode)
	if err != nil {
		return usageError{err}
	}

	if flags.configPath != "" {
		os.Setenv("TRGSCOUT_CONFIG_PATH", flags.configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLogLevel(cfg.Log.Level)
	if flags.verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	slog.Info("configuration loaded", "mode", mode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if flags.dryRun {
		return runDryRun(ctx, cmd, cfg)
	}

	opts := orchestrator.Options{
		Mode:        mode,
		MaxStores:   flags.maxStores,
		UseDatabase: !flags.noDatabase,
		UseTunnels:  !flags.noTunnels,
	}

	var sink orchestrator.ResultSink
	if flags.noDatabase {
		out := cmd.OutOrStdout()
		sink = func(url string, outcome types.Outcome, snapshot *types.Snapshot) {
			fmt.Fprintf(out, "%s\tvalid=%t\tauto_moto=%t\tnew=%d\tused=%d\ttest=%d\n",
				url, outcome.IsValid, outcome.IsAutoMoto, outcome.New, outcome.Used, outcome.Test)
		}
	}

	report, runErr := orchestrator.Run(ctx, cfg, opts, sink)
	orchestrator.PrintSummary(cmd.OutOrStdout(), report)

	if flags.exportTable {
		if err := runExportTable(ctx, cmd, cfg); err != nil {
			slog.Error("export-table failed", "error", err)
		}
	}

	if runErr != nil {
		return fatalError{runErr}
	}
	if report.Aborted {
		return fatalError{fmt.Errorf("run aborted: %s", report.AbortReason)}
	}
	return nil
}

// runDryRun prints the URL list the orchestrator would visit (spec §3
// supplemented "list_to_scrape dry-run") and exits without scraping.
func runDryRun(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	dbPath := cfg.Database.Path
	if flags.noDatabase {
		dbPath = ":memory:"
	}
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	urls, err := st.ListToScrape(ctx, flags.maxStores)
	if err != nil {
		return fmt.Errorf("listing stores to scrape: %w", err)
	}
	for _, u := range urls {
		fmt.Fprintln(cmd.OutOrStdout(), u)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d store(s) would be visited\n", len(urls))
	return nil
}

func runExportTable(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	dbPath := cfg.Database.Path
	if flags.noDatabase {
		dbPath = ":memory:"
	}
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	stores, err := st.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("listing registry: %w", err)
	}
	return exportcsv.Write(cmd.OutOrStdout(), stores)
}

func parseMode(s string) (types.RunMode, error) {
	switch types.RunMode(s) {
	case types.ModeTunnel, types.ModeEnhanced, types.ModeBasic:
		return types.RunMode(s), nil
	default:
		return "", fmt.Errorf("invalid --mode %q: must be tunnel, enhanced, or basic", s)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// usageError marks CLI misuse, which main maps to exit code 2 (spec §6).
type usageError struct{ cause error }

func (e usageError) Error() string { return e.cause.Error() }
func (e usageError) Unwrap() error { return e.cause }

// fatalError marks a run aborted with an error, which main maps to exit
// code 1 (spec §6).
type fatalError struct{ cause error }

func (e fatalError) Error() string { return e.cause.Error() }
func (e fatalError) Unwrap() error { return e.cause }
