// Package orchestrator implements C8, the run orchestrator: it wires every
// other component together for one end-to-end run and owns the top-level
// exception handling and resource teardown.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/solveiti/trgscout/internal/browser"
	"github.com/solveiti/trgscout/internal/config"
	"github.com/solveiti/trgscout/internal/pacing"
	"github.com/solveiti/trgscout/internal/scraper"
	"github.com/solveiti/trgscout/internal/sitemap"
	"github.com/solveiti/trgscout/internal/store"
	"github.com/solveiti/trgscout/internal/tunnel"
	"github.com/solveiti/trgscout/internal/types"
)

// Options are the CLI-exposed run parameters (spec §4.6 / §6).
type Options struct {
	Mode        types.RunMode
	MaxStores   int
	UseDatabase bool
	UseTunnels  bool

	// DriverFactory builds C5's driver. Nil uses the production
	// chromedp-backed driver; tests inject a fixture driver factory here
	// (spec §9 design note: the driver contract is testable without a real
	// browser).
	DriverFactory func(displayNum string, proxy browser.ProxyAddr) browser.Driver
}

// ResultSink receives each store's classification outcome as it is
// produced, in addition to whatever storage persistence Run performs. The
// CLI's --no-database path uses this to print results to stdout.
type ResultSink func(url string, outcome types.Outcome, snapshot *types.Snapshot)

// Run executes one full orchestration pass (spec §4.6's algorithm).
func Run(ctx context.Context, cfg *config.Config, opts Options, sink ResultSink) (report types.RunReport, err error) {
	report.RunID = ulid.Make().String()
	report.Mode = opts.Mode
	report.StartedAt = time.Now().UTC()

	slog.Info("run starting", "component", "orchestrator", "run_id", report.RunID, "mode", opts.Mode)

	if ctx.Err() != nil {
		report.Aborted = true
		report.AbortReason = "cancelled"
		report.FinishedAt = time.Now().UTC()
		return report, nil
	}

	dbPath := cfg.Database.Path
	if !opts.UseDatabase {
		dbPath = ":memory:"
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return abort(report, fmt.Errorf("opening store: %w", err))
	}
	defer closeLogged("store", st.Close)

	newDriver := opts.DriverFactory
	if newDriver == nil {
		newDriver = func(displayNum string, proxy browser.ProxyAddr) browser.Driver {
			return browser.NewChromeDriver(displayNum, proxy)
		}
	}

	driver := newDriver(cfg.Browser.DisplayNum, noProxy)
	defer func() { closeLogged("browser driver", driver.Close) }()

	var supervisor *tunnel.Supervisor
	var rotator scraper.Rotator
	if opts.Mode == types.ModeTunnel && opts.UseTunnels {
		supervisor, err = setupTunnel(ctx, cfg.Tunnel.ConfigPath)
		if err != nil {
			slog.Warn("tunnel unavailable, continuing without proxy",
				"component", "orchestrator", "error", err)
			supervisor = nil
		} else {
			rotator = supervisor
			closeLogged("browser driver (no-proxy, superseded by tunnel)", driver.Close)
			driver = newDriver(cfg.Browser.DisplayNum, currentProxyAddr(supervisor))
		}
	}
	if supervisor != nil {
		defer closeLogged("tunnel supervisor", supervisor.CloseAll)
	}

	shouldIngest, err := decideIngest(ctx, st, time.Duration(cfg.Sitemap.StalenessAfter))
	if err != nil {
		return abort(report, fmt.Errorf("checking ingest freshness: %w", err))
	}
	if shouldIngest {
		walker := sitemap.New(st)
		ingestReport, err := walker.Ingest(ctx, cfg.Sitemap.IndexURL)
		if err != nil {
			slog.Warn("sitemap ingestion degraded", "component", "orchestrator", "error", err)
		}
		if ingestReport != nil {
			report.SitemapIngested = true
			report.Ingest = ingestReport
		}
	}

	urls, err := st.ListToScrape(ctx, opts.MaxStores)
	if err != nil {
		return abort(report, fmt.Errorf("listing stores to scrape: %w", err))
	}

	randSrc := rand.NewPCG(uint64(time.Now().UnixNano()), 0)
	pacer := pacing.NewController(randSrc)
	scrapeFullWalk := opts.Mode != types.ModeBasic
	s := scraper.New(driver, pacer, pacing.RealSleeper, rotator,
		cfg.Scrape.TargetCategoryID, cfg.Scrape.MaxPages, cfg.Scrape.PerPageCap)

	extendedBreakN := pacing.ExtendedBreakPeriod(randSrc)

	for i, url := range urls {
		if ctx.Err() != nil {
			report.Aborted = true
			report.AbortReason = "cancelled"
			break
		}

		if i > 0 {
			if err := pacing.RealSleeper(ctx, pacer.Draw(pacing.StoreVisit)); err != nil {
				report.Aborted = true
				report.AbortReason = "cancelled"
				break
			}
		}
		if i > 0 && i%extendedBreakN == 0 {
			_ = pacing.RealSleeper(ctx, pacer.Draw(pacing.ExtendedBreak))
			if supervisor != nil {
				if err := supervisor.Rotate(ctx); err != nil {
					slog.Warn("tunnel rotation at boundary failed",
						"component", "orchestrator", "error", err)
				}
			}
		}

		outcome := s.Visit(ctx, url, scrapeFullWalk)
		pacer.RecordStoreScraped()

		snapshot, upsertErr := st.UpsertOutcome(ctx, url, outcome)
		if upsertErr != nil {
			slog.Error("persisting outcome failed",
				"component", "orchestrator", "url", url, "error", upsertErr)
		}

		report.Visited++
		if outcome.IsValid {
			report.Valid++
		}
		if outcome.IsAutoMoto {
			report.AutoMoto++
		}
		report.NewTotal += outcome.New
		report.UsedTotal += outcome.Used
		report.TestTotal += outcome.Test

		if sink != nil {
			sink(url, outcome, snapshot)
		}
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

func abort(report types.RunReport, cause error) (types.RunReport, error) {
	report.Aborted = true
	report.AbortReason = cause.Error()
	report.FinishedAt = time.Now().UTC()
	return report, cause
}

func decideIngest(ctx context.Context, st store.Store, staleness time.Duration) (bool, error) {
	empty, err := st.IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	if empty {
		return true, nil
	}

	hasRows, newest, err := st.NewestUpdatedAt(ctx)
	if err != nil {
		return false, err
	}
	if !hasRows {
		return true, nil
	}

	t, err := time.Parse(time.RFC3339Nano, newest)
	if err != nil {
		return false, fmt.Errorf("parsing newest updated_at %q: %w", newest, err)
	}
	return time.Since(t) >= staleness, nil
}

func setupTunnel(ctx context.Context, configPath string) (*tunnel.Supervisor, error) {
	if configPath == "" {
		return nil, fmt.Errorf("no tunnel config path configured")
	}
	entries, err := tunnel.LoadEntries(configPath)
	if err != nil {
		return nil, err
	}
	supervisor := tunnel.New(entries)
	if err := supervisor.Establish(ctx, entries[0].Name); err != nil {
		return nil, err
	}
	return supervisor, nil
}

func noProxy() (string, bool) { return "", false }

func currentProxyAddr(s *tunnel.Supervisor) browser.ProxyAddr {
	return func() (string, bool) {
		ep := s.Current()
		if ep == nil {
			return "", false
		}
		return ep.Addr(), true
	}
}

func closeLogged(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		slog.Error("close failed", "component", "orchestrator", "resource", name, "error", err)
	}
}
