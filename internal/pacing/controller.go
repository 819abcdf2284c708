// Package pacing produces the anti-detection delays described in spec §4.4.
// Timing is kept out of the scraper deliberately (§9 design note): a pure
// function of (situation, run-so-far counter, RNG) is what lets scrapes stay
// deterministic under test with an injected Sleeper.
package pacing

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Situation names one of the enumerated pacing contracts in spec §4.4.
type Situation string

const (
	StoreVisit     Situation = "store_visit"
	PageLoad       Situation = "page_load"
	DataExtract    Situation = "data_extract"
	Pagination     Situation = "pagination"
	ErrorRecovery  Situation = "error_recovery"
	ExtendedBreak  Situation = "extended_break"
)

// window is a (min, mode, max) triple in seconds. A zero mode means the
// draw is uniform on (min, max) rather than triangular.
type window struct {
	min, mode, max float64
}

var windows = map[Situation]window{
	StoreVisit:    {8, 12, 20},
	PageLoad:      {2, 3, 5},
	DataExtract:   {1, 2, 3},
	Pagination:    {3, 5, 8},
	ErrorRecovery: {15, 0, 30},
	ExtendedBreak: {30, 0, 90},
}

// Controller draws delays per spec §4.4: triangular (or uniform, when no
// mode is given) base draw, scaled by a progressive factor tied to how many
// stores have been scraped this run, plus an occasional "stealth pause".
type Controller struct {
	rng     *rand.Rand
	scraped int
}

// NewController creates a pacing controller. A nil source uses a PCG seeded
// from the current time; tests pass a seeded source for reproducibility.
func NewController(src rand.Source) *Controller {
	if src == nil {
		return &Controller{rng: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))}
	}
	return &Controller{rng: rand.New(src)}
}

// RecordStoreScraped advances the progressive scale factor. Call once per
// completed store visit.
func (c *Controller) RecordStoreScraped() {
	c.scraped++
}

// StoresScraped returns how many stores have been recorded this run.
func (c *Controller) StoresScraped() int {
	return c.scraped
}

// Draw returns the delay, in seconds, for the given situation: a triangular
// (or uniform) base draw times a 1+0.01*scraped progressive factor, plus a
// 3% chance of an additional uniform(15,45)s "stealth pause".
func (c *Controller) Draw(situation Situation) time.Duration {
	w, ok := windows[situation]
	if !ok {
		return 0
	}

	base := c.drawWindow(w)
	scaled := base * (1 + 0.01*float64(c.scraped))

	if c.rng.Float64() < 0.03 {
		scaled += c.uniform(15, 45)
	}

	return time.Duration(scaled * float64(time.Second))
}

func (c *Controller) drawWindow(w window) float64 {
	if w.mode == 0 {
		return c.uniform(w.min, w.max)
	}
	return c.triangular(w.min, w.mode, w.max)
}

func (c *Controller) uniform(min, max float64) float64 {
	return min + c.rng.Float64()*(max-min)
}

// triangular draws from a triangular distribution on (min, mode, max) using
// the standard inverse-CDF method.
func (c *Controller) triangular(min, mode, max float64) float64 {
	u := c.rng.Float64()
	f := (mode - min) / (max - min)
	if u < f {
		return min + math.Sqrt(u*(max-min)*(mode-min))
	}
	return max - math.Sqrt((1-u)*(max-min)*(max-mode))
}

// ExtendedBreakPeriod picks N in [8,15] for "every N stores" per spec §4.4.
// Callers draw this once at run start.
func ExtendedBreakPeriod(src rand.Source) int {
	r := rand.New(src)
	return 8 + r.IntN(8)
}

// Sleeper abstracts time.Sleep so C6's delays are cancellable and testable
// (§5 suspension points: exclusively inside C6's sleep).
type Sleeper func(ctx context.Context, d time.Duration) error

// RealSleeper sleeps for d or returns ctx.Err() if ctx is cancelled first.
func RealSleeper(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
