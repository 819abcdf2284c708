// Package scraper implements C7, the store scraper: given a store URL, it
// produces a classification outcome (auto-moto category membership and
// new/used/test vehicle counts).
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/solveiti/trgscout/internal/browser"
	"github.com/solveiti/trgscout/internal/pacing"
	"github.com/solveiti/trgscout/internal/types"
)

// openTimeout bounds the first page load of a store visit (spec §4.5 step
// 1: "Open via C5 with a 30s timeout").
const openTimeout = 30 * time.Second

// pageLoadTimeout bounds subsequent paginated page loads.
const pageLoadTimeout = 15 * time.Second

// consecutiveFailureThreshold is how many invalid visits in a row trigger a
// driver rebuild and tunnel rotation (spec §4.5's error handling clause).
const consecutiveFailureThreshold = 3

// Rotator is the subset of the tunnel supervisor's contract the scraper
// needs; nil-able when no tunnel is active.
type Rotator interface {
	Rotate(ctx context.Context) error
}

// Scraper is C7. It holds consecutive-failure state across Visit calls so
// the orchestrator's single scrape loop gets the rebuild/rotate policy for
// free.
type Scraper struct {
	driver  browser.Driver
	pacer   *pacing.Controller
	sleep   pacing.Sleeper
	rotator Rotator

	targetCategoryID int
	maxPages         int
	perPageCap       int

	consecutiveFailures int
}

// New builds a Scraper. rotator may be nil when no tunnel is configured.
func New(driver browser.Driver, pacer *pacing.Controller, sleep pacing.Sleeper, rotator Rotator, targetCategoryID, maxPages, perPageCap int) *Scraper {
	return &Scraper{
		driver:           driver,
		pacer:            pacer,
		sleep:            sleep,
		rotator:          rotator,
		targetCategoryID: targetCategoryID,
		maxPages:         maxPages,
		perPageCap:       perPageCap,
	}
}

// Visit produces a classification outcome for url (spec §4.5). When
// fullWalk is false (basic mode), only is_valid/is_automoto are determined
// and the paginated flag count is skipped entirely.
func (s *Scraper) Visit(ctx context.Context, url string, fullWalk bool) types.Outcome {
	target := fmt.Sprintf("%s?categoryId=%d", url, s.targetCategoryID)

	if err := s.driver.Open(ctx, target, openTimeout); err != nil {
		return s.handleFailure(ctx, url, err)
	}

	s.driver.DismissConsent(ctx)
	if err := s.sleepFor(ctx, pacing.PageLoad); err != nil {
		return s.handleFailure(ctx, url, err)
	}

	isAutoMoto, err := detectCategory(ctx, s.driver, s.targetCategoryID)
	if err != nil {
		return s.handleFailure(ctx, url, err)
	}
	if !isAutoMoto || !fullWalk {
		s.consecutiveFailures = 0
		return types.Outcome{IsValid: true, IsAutoMoto: isAutoMoto}
	}

	counts, err := walkPages(ctx, s.driver, target, s.maxPages, s.perPageCap, func() error {
		return s.sleepFor(ctx, pacing.Pagination)
	})
	if err != nil {
		return s.handleFailure(ctx, url, err)
	}

	s.consecutiveFailures = 0
	return types.Outcome{
		IsValid:    true,
		IsAutoMoto: true,
		New:        counts.new,
		Used:       counts.used,
		Test:       counts.test,
	}
}

// handleFailure implements the spec's error-handling clause: sleep
// error_recovery, mark the visit invalid, and after 3 consecutive failures
// rebuild the driver and rotate the tunnel if one is active.
func (s *Scraper) handleFailure(ctx context.Context, url string, cause error) types.Outcome {
	slog.Warn("store visit failed",
		"component", "scraper", "url", url, "error", cause)

	if err := s.sleepFor(ctx, pacing.ErrorRecovery); err != nil {
		slog.Debug("error-recovery sleep interrupted", "component", "scraper", "error", err)
	}

	s.consecutiveFailures++
	if s.consecutiveFailures >= consecutiveFailureThreshold {
		s.consecutiveFailures = 0
		if err := s.driver.Rebuild(ctx); err != nil {
			slog.Error("driver rebuild failed", "component", "scraper", "error", err)
		} else {
			slog.Info("driver rebuilt after consecutive failures", "component", "scraper")
		}
		if s.rotator != nil {
			if err := s.rotator.Rotate(ctx); err != nil {
				slog.Warn("tunnel rotate failed after consecutive failures",
					"component", "scraper", "error", err)
			}
		}
	}

	return types.Outcome{IsValid: false}
}

func (s *Scraper) sleepFor(ctx context.Context, situation pacing.Situation) error {
	d := s.pacer.Draw(situation)
	return s.sleep(ctx, d)
}
