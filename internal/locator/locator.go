// Package locator resolves semantic targets such as "the option labeled X"
// or "the submit button" to concrete elements, trying an ordered list of
// lookup strategies until one matches.
package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pollster/internal/browser"
	"github.com/xkilldash9x/pollster/internal/config"
)

// ErrNotFound is returned when every strategy for a target came up empty.
var ErrNotFound = errors.New("locator: element not found")

// Pauser waits for a jittered duration around a mean. *humanoid.Pacer
// satisfies it.
type Pauser interface {
	Pause(ctx context.Context, mean time.Duration) error
}

// Match is a resolved target.
type Match struct {
	Handle   browser.Handle
	Strategy Strategy
}

// Locator resolves targets against a browser. It holds no per-page state,
// so one Locator serves the whole campaign.
type Locator struct {
	vocab    config.VocabularyConfig
	timeouts config.TimeoutsConfig
	settle   time.Duration
	pacer    Pauser
	logger   *zap.Logger
}

// New creates a Locator from the vocabulary, timeouts and settle pause in cfg.
func New(cfg *config.Config, pacer Pauser, logger *zap.Logger) *Locator {
	return &Locator{
		vocab:    cfg.Vocabulary,
		timeouts: cfg.Timeouts,
		settle:   cfg.Pauses.Settle,
		pacer:    pacer,
		logger:   logger.Named("locator"),
	}
}

// Query renders the browser query a strategy issues for target.
func (l *Locator) Query(target Target, s Strategy) (browser.Query, bool) {
	expr := s.render(target.needles(l.vocab), target.roles())
	if expr == "" {
		return browser.Query{}, false
	}
	return browser.Query{Kind: browser.XPath, Expr: expr, Visible: target.visible()}, true
}

// Resolve tries each strategy of target in order, each bounded by the
// target's per-strategy timeout, and returns the first match. Strategies
// are never raced. It returns ErrNotFound when all of them miss, or the
// context error if ctx ends first.
func (l *Locator) Resolve(ctx context.Context, b browser.Browser, target Target) (Match, error) {
	timeout := target.timeout(l.timeouts)
	for _, s := range target.Strategies() {
		q, ok := l.Query(target, s)
		if !ok {
			continue
		}
		h, err := b.WaitFor(ctx, q, timeout)
		if err == nil {
			l.logger.Debug("Target resolved.", zap.Stringer("target", target), zap.String("strategy", s.Name()))
			return Match{Handle: h, Strategy: s}, nil
		}
		if ctx.Err() != nil {
			return Match{}, ctx.Err()
		}
		if !errors.Is(err, browser.ErrTimeout) {
			l.logger.Debug("Strategy failed.", zap.Stringer("target", target), zap.String("strategy", s.Name()), zap.Error(err))
		}
	}
	return Match{}, fmt.Errorf("%w: %s", ErrNotFound, target)
}

// Locate resolves target, scrolls it to the middle of the viewport and
// waits for the settle pause, so the element is ready to interact with.
// A failed scroll is logged and tolerated: the click may still land.
func (l *Locator) Locate(ctx context.Context, b browser.Browser, target Target) (Match, error) {
	m, err := l.Resolve(ctx, b, target)
	if err != nil {
		return Match{}, err
	}
	if err := b.ScrollIntoView(ctx, m.Handle); err != nil {
		if ctx.Err() != nil {
			return Match{}, ctx.Err()
		}
		l.logger.Debug("Scroll into view failed.", zap.Stringer("target", target), zap.Error(err))
	}
	if err := l.pacer.Pause(ctx, l.settle); err != nil {
		return Match{}, err
	}
	return m, nil
}
