// Package session drives each target to completion: open with retry, suspend
// on CAPTCHA, extract, dedup, cap, and append accepted records as they are
// found so partial progress survives interruption.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"review-harvester/internal/errs"
	"review-harvester/internal/extractor"
	"review-harvester/internal/logging"
	"review-harvester/internal/models"
)

// State tracks where a target is in its lifecycle.
type State string

const (
	StateIdle           State = "idle"
	StateLoading        State = "loading"
	StateRevealing      State = "revealing"
	StateExtracting     State = "extracting"
	StateCaptchaPending State = "captcha_pending"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Navigator drives the browser tab for one target.
type Navigator interface {
	Open(url string) error
	WaitReady() error
	RevealMore() (bool, error)
	ReviewCount() int
	HTML() (string, error)
}

// Guard detects and waits out CAPTCHA block pages.
type Guard interface {
	Blocked() bool
	WaitUntilCleared(ctx context.Context) error
}

// Extractor parses the rendered page into review records.
type Extractor interface {
	Extract(html, sourceURL string) (*extractor.Result, error)
}

// Sink receives each accepted record exactly once.
type Sink interface {
	Append(models.Review) error
}

// Config holds the per-run collection limits.
type Config struct {
	MaxReviews      int // per place, 0 = unlimited
	MaxAttempts     int
	NoProgressLimit int
	MaxRounds       int // reveal iterations per target
	RetryBackoff    time.Duration
	Headful         bool
}

// TargetResult summarizes the outcome for one target.
type TargetResult struct {
	URL      string
	Accepted int
	Skipped  int
	State    State
	Err      error
}

// Report aggregates the whole run.
type Report struct {
	Accepted int
	Skipped  int
	Targets  []TargetResult
}

// Failed returns the targets that did not complete.
func (r *Report) Failed() []TargetResult {
	var failed []TargetResult
	for _, t := range r.Targets {
		if t.State == StateFailed {
			failed = append(failed, t)
		}
	}
	return failed
}

// Controller processes targets strictly sequentially on one browser tab.
type Controller struct {
	nav     Navigator
	guard   Guard
	ext     Extractor
	sink    Sink
	limiter *rate.Limiter
	cfg     Config
	log     zerolog.Logger

	// seen spans the whole run: fingerprints reloaded from the output file
	// plus everything accepted so far, so a re-run never re-appends.
	seen map[string]struct{}
}

func New(nav Navigator, guard Guard, ext Extractor, sink Sink, limiter *rate.Limiter, seen map[string]struct{}, cfg Config) *Controller {
	if seen == nil {
		seen = make(map[string]struct{})
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.NoProgressLimit < 1 {
		cfg.NoProgressLimit = 1
	}
	if cfg.MaxRounds < 1 {
		cfg.MaxRounds = 20000
	}
	return &Controller{
		nav:     nav,
		guard:   guard,
		ext:     ext,
		sink:    sink,
		limiter: limiter,
		cfg:     cfg,
		log:     logging.For("session"),
		seen:    seen,
	}
}

// Run processes every target in order. Individual failures are recorded and
// the run continues; only cancellation stops it early.
func (c *Controller) Run(ctx context.Context, targets []string) *Report {
	rep := &Report{}
	for i, url := range targets {
		if ctx.Err() != nil {
			c.log.Info().Msg("run cancelled")
			break
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				break
			}
		}

		tr := c.runTarget(ctx, url)
		rep.Accepted += tr.Accepted
		rep.Skipped += tr.Skipped
		rep.Targets = append(rep.Targets, tr)

		evt := c.log.Info()
		if tr.State == StateFailed {
			evt = c.log.Error().Err(tr.Err)
		}
		evt.Str("target", url).
			Str("state", string(tr.State)).
			Int("accepted", tr.Accepted).
			Int("skipped", tr.Skipped).
			Msgf("target %d/%d", i+1, len(targets))
	}
	return rep
}

func (c *Controller) runTarget(ctx context.Context, url string) TargetResult {
	tr := TargetResult{URL: url, State: StateLoading}

	if err := c.openWithRetry(ctx, url); err != nil {
		tr.State, tr.Err = StateFailed, err
		return tr
	}

	// A block page can be the first thing that renders.
	if done := c.handleCaptcha(ctx, url, &tr); done {
		return tr
	}

	if err := c.nav.WaitReady(); err != nil {
		tr.State, tr.Err = StateFailed, err
		return tr
	}

	noProgress := 0
	rounds := 0
	for {
		if err := ctx.Err(); err != nil {
			tr.State, tr.Err = StateFailed, err
			return tr
		}
		if done := c.handleCaptcha(ctx, url, &tr); done {
			return tr
		}

		tr.State = StateExtracting
		html, err := c.nav.HTML()
		if err != nil {
			tr.State, tr.Err = StateFailed, err
			return tr
		}
		res, err := c.ext.Extract(html, url)
		if err != nil {
			tr.State, tr.Err = StateFailed, err
			return tr
		}
		// Each pass re-scans the full render, so the latest pass already
		// counts every skip candidate currently on the page. Accumulating
		// across passes would count the same candidate once per reveal.
		tr.Skipped = res.Skipped

		for _, rec := range res.Records {
			if _, dup := c.seen[rec.Key]; dup {
				continue
			}
			if err := c.sink.Append(rec); err != nil {
				tr.State, tr.Err = StateFailed, err
				return tr
			}
			c.seen[rec.Key] = struct{}{}
			tr.Accepted++

			if c.cfg.MaxReviews > 0 && tr.Accepted >= c.cfg.MaxReviews {
				c.log.Debug().Str("target", url).Int("cap", c.cfg.MaxReviews).Msg("review cap reached")
				tr.State = StateDone
				return tr
			}
		}

		tr.State = StateRevealing
		grew, err := c.nav.RevealMore()
		if err != nil {
			tr.State, tr.Err = StateFailed, err
			return tr
		}
		rounds++
		if rounds >= c.cfg.MaxRounds {
			// A page that reports growth forever (oscillating card counts)
			// must not pin the run on one target.
			c.log.Warn().Str("target", url).Int("rounds", rounds).Msg("reveal round limit reached")
			tr.State = StateDone
			return tr
		}
		if grew {
			noProgress = 0
			continue
		}
		noProgress++
		if noProgress >= c.cfg.NoProgressLimit {
			tr.State = StateDone
			return tr
		}
	}
}

// handleCaptcha suspends the target while a block page is up. In a headless
// run nobody can solve the challenge, so the target is abandoned instead.
// Returns true when the target is finished (skipped or cancelled).
func (c *Controller) handleCaptcha(ctx context.Context, url string, tr *TargetResult) bool {
	if !c.guard.Blocked() {
		return false
	}
	if !c.cfg.Headful {
		c.log.Warn().Str("target", url).
			Msg("CAPTCHA in headless mode cannot be solved; skipping target (re-run with --headful)")
		tr.State = StateFailed
		tr.Err = fmt.Errorf("captcha block in headless mode")
		return true
	}

	tr.State = StateCaptchaPending
	if err := c.guard.WaitUntilCleared(ctx); err != nil {
		tr.State, tr.Err = StateFailed, err
		return true
	}
	return false
}

// openWithRetry navigates with bounded attempts and a quadratic backoff.
func (c *Controller) openWithRetry(ctx context.Context, url string) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt*attempt) * c.cfg.RetryBackoff
			c.log.Warn().Str("target", url).
				Int("attempt", attempt).
				Int("max_attempts", c.cfg.MaxAttempts).
				Dur("backoff", backoff).
				Msg("retrying navigation")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err := c.nav.Open(url); err != nil {
			lastErr = err
			if !errs.IsRetryable(err) {
				return fmt.Errorf("non-retryable failure on attempt %d: %w", attempt, err)
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("all %d attempts failed: %w", c.cfg.MaxAttempts, lastErr)
}
