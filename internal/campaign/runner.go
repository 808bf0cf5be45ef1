// Package campaign runs the sequence of submission attempts against one form
// over a single browser session.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pollster/internal/browser"
	"github.com/xkilldash9x/pollster/internal/config"
	"github.com/xkilldash9x/pollster/internal/humanoid"
	"github.com/xkilldash9x/pollster/internal/locator"
	"github.com/xkilldash9x/pollster/internal/submission"
)

// Submitter performs one attempt on the page currently loaded in b.
type Submitter interface {
	Submit(ctx context.Context, b browser.Browser, attempt int) submission.Outcome
}

// Pacer produces the human-like waits of a campaign.
type Pacer interface {
	Pause(ctx context.Context, mean time.Duration) error
	Jitter(d time.Duration, ratio float64) time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithSleeper replaces the wall-clock sleep used for pacing and lingering.
func WithSleeper(s humanoid.Sleeper) Option {
	return func(r *Runner) { r.sleep = s }
}

// WithID fixes the campaign ID instead of generating one.
func WithID(id string) Option {
	return func(r *Runner) { r.id = id }
}

// Runner owns the browser for the lifetime of a campaign. Attempts run
// strictly one after another.
type Runner struct {
	id        string
	campaign  config.CampaignConfig
	browser   config.BrowserConfig
	timeouts  config.TimeoutsConfig
	pauses    config.PausesConfig
	launcher  browser.Launcher
	submitter Submitter
	locator   submission.Locator
	pacer     Pacer
	recovery  *rate.Limiter
	sleep     humanoid.Sleeper
	logger    *zap.Logger

	// fresh is set when the page holds a newly navigated form, so the next
	// attempt needs no continue link.
	fresh bool
}

// NewRunner creates a Runner for cfg.Campaign.Count attempts against
// cfg.Campaign.URL.
func NewRunner(cfg *config.Config, launcher browser.Launcher, submitter Submitter, loc submission.Locator, pacer Pacer, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.Campaign.RecoveryInterval > 0 {
		limit = rate.Every(cfg.Campaign.RecoveryInterval)
	}
	r := &Runner{
		id:        uuid.New().String(),
		campaign:  cfg.Campaign,
		browser:   cfg.Browser,
		timeouts:  cfg.Timeouts,
		pauses:    cfg.Pauses,
		launcher:  launcher,
		submitter: submitter,
		locator:   loc,
		pacer:     pacer,
		recovery:  rate.NewLimiter(limit, 1),
		sleep:     humanoid.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logger.Named("campaign").With(zap.String("campaign_id", r.id))
	return r
}

// ID returns the campaign identifier carried by every log line.
func (r *Runner) ID() string { return r.id }

// Run launches the browser, performs the attempts and tears the browser
// down. Per-attempt failures never end the campaign; only a browser that
// cannot start is returned as an error. Cancelling ctx stops the campaign at
// the next attempt boundary or pacing wait, and the partial summary is
// returned with Interrupted set.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	summary := newSummary(r.id, r.campaign.URL, r.campaign.Count)
	log := r.logger
	log.Info("Starting campaign.",
		zap.String("url", r.campaign.URL),
		zap.Int("count", r.campaign.Count),
		zap.Duration("delay", r.campaign.Delay),
	)

	b, err := r.launcher.Launch(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to start browser: %w", err)
	}
	defer r.teardown(ctx, b)

	r.fresh = false
	for attempt := 1; attempt <= r.campaign.Count; attempt++ {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		out := r.attempt(ctx, b, attempt)
		summary.record(out)
		r.logOutcome(out)

		if !out.Succeeded() && attempt < r.campaign.Count && ctx.Err() == nil {
			r.recoverPage(ctx, b, attempt)
		}

		if attempt == r.campaign.Count {
			break
		}
		wait := r.pacer.Jitter(r.campaign.Delay, r.campaign.PacingJitter)
		if err := r.sleep(ctx, wait); err != nil {
			summary.Interrupted = true
			break
		}
	}

	summary.finish()
	log.Info("Campaign finished.",
		zap.Int("attempts", summary.Attempts),
		zap.Int("requested", summary.Requested),
		zap.Int("succeeded", summary.Succeeded()),
		zap.Int("confirmed", summary.Confirmed),
		zap.Int("failed", summary.Failed),
		zap.Bool("interrupted", summary.Interrupted),
		zap.Duration("duration", summary.Duration()),
	)
	return summary, nil
}

// attempt isolates one fill-and-submit cycle. A panic anywhere below is
// converted into a Failed outcome.
func (r *Runner) attempt(ctx context.Context, b browser.Browser, attempt int) (out submission.Outcome) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Attempt panicked.",
				zap.Int("attempt", attempt),
				zap.Any("panicValue", p),
				zap.String("stack", string(debug.Stack())),
			)
			out = submission.FailedOutcome(attempt, submission.ReasonPanic, fmt.Errorf("attempt panicked: %v", p))
			out.Duration = time.Since(start)
			r.fresh = false
		}
	}()

	if err := r.prepare(ctx, b, attempt); err != nil {
		reason := submission.ReasonNavigationFailed
		if ctx.Err() != nil {
			reason, err = submission.ReasonCanceled, ctx.Err()
		}
		out = submission.FailedOutcome(attempt, reason, err)
		out.Duration = time.Since(start)
		return out
	}

	r.fresh = false
	return r.submitter.Submit(ctx, b, attempt)
}

// prepare brings a blank form onto the page. The first attempt, and any
// attempt after a recovery navigation, already has one or navigates to it;
// later attempts reset the form in place through the continue link.
func (r *Runner) prepare(ctx context.Context, b browser.Browser, attempt int) error {
	if r.fresh {
		return nil
	}
	if attempt == 1 {
		return r.navigate(ctx, b)
	}

	log := r.logger.With(zap.Int("attempt", attempt))
	m, err := r.locator.Locate(ctx, b, locator.ContinueLink{})
	if err == nil {
		if err = b.Click(ctx, m.Handle); err == nil {
			return r.pacer.Pause(ctx, r.pauses.PostContinue)
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	log.Debug("Continue link unavailable, navigating to the form.", zap.Error(err))
	return r.navigate(ctx, b)
}

// navigate loads the form URL, retrying up to NavigationRetries times.
func (r *Runner) navigate(ctx context.Context, b browser.Browser) error {
	var lastErr error
	tries := r.campaign.NavigationRetries + 1
	for i := 1; i <= tries; i++ {
		lastErr = b.Navigate(ctx, r.campaign.URL)
		if lastErr == nil {
			return r.pacer.Pause(ctx, r.pauses.PostNavigation)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("Navigation failed.", zap.Int("try", i), zap.Int("tries", tries), zap.Error(lastErr))
	}
	return fmt.Errorf("navigation to %s failed after %d tries: %w", r.campaign.URL, tries, lastErr)
}

// recoverPage reloads the form after a failed attempt so the next one starts
// from a known state. Recovery navigations are rate limited.
func (r *Runner) recoverPage(ctx context.Context, b browser.Browser, attempt int) {
	log := r.logger.With(zap.Int("attempt", attempt))
	if err := r.recovery.Wait(ctx); err != nil {
		log.Debug("Recovery skipped.", zap.Error(err))
		return
	}
	if err := r.navigate(ctx, b); err != nil {
		log.Warn("Recovery navigation failed.", zap.Error(err))
		return
	}
	r.fresh = true
	log.Debug("Recovered to a fresh form.")
}

func (r *Runner) logOutcome(out submission.Outcome) {
	fields := []zap.Field{
		zap.Int("attempt", out.Attempt),
		zap.Int("of", r.campaign.Count),
		zap.String("result", string(out.Result())),
		zap.Duration("duration", out.Duration),
	}
	if out.Succeeded() {
		fields = append(fields, zap.String("method", string(out.Method)))
		r.logger.Info("Attempt submitted.", fields...)
		return
	}
	fields = append(fields, zap.String("reason", string(out.Reason)), zap.Stringer("state", out.State), zap.Error(out.Err))
	r.logger.Warn("Attempt failed.", fields...)
}

// teardown releases the browser. A visible browser stays open for the
// linger period first unless the campaign was interrupted.
func (r *Runner) teardown(ctx context.Context, b browser.Browser) {
	if !r.browser.Headless && r.browser.Linger > 0 && ctx.Err() == nil {
		_ = r.sleep(ctx, r.browser.Linger)
	}

	quitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeouts.Teardown)
	defer cancel()
	if err := b.Quit(quitCtx); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("Browser did not shut down cleanly.", zap.Error(err))
		return
	}
	r.logger.Debug("Browser closed.")
}
