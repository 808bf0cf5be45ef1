// Package rodriver implements browser.Browser on top of go-rod, with the
// go-rod/stealth evasions applied to the tab when requested.
package rodriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pollster/internal/browser"
	"github.com/xkilldash9x/pollster/internal/config"
)

// Launcher starts Chrome with rod's launcher and connects to it.
type Launcher struct {
	cfg      config.BrowserConfig
	timeouts config.TimeoutsConfig
	logger   *zap.Logger
}

// NewLauncher creates a Launcher for the given browser profile.
func NewLauncher(cfg config.BrowserConfig, timeouts config.TimeoutsConfig, logger *zap.Logger) *Launcher {
	return &Launcher{cfg: cfg, timeouts: timeouts, logger: logger.Named("rod")}
}

// newProcessLauncher configures, but does not start, the Chrome process.
func (l *Launcher) newProcessLauncher() *launcher.Launcher {
	lc := launcher.New().Headless(l.cfg.Headless)
	for _, f := range browser.LaunchFlags(l.cfg) {
		if f.Value == "" {
			lc = lc.Set(flags.Flag(f.Name))
			continue
		}
		lc = lc.Set(flags.Flag(f.Name), f.Value)
	}
	return lc
}

func (l *Launcher) Launch(ctx context.Context) (browser.Browser, error) {
	lc := l.newProcessLauncher()
	controlURL, err := lc.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	rb := rod.New().ControlURL(controlURL)
	if err := rb.Connect(); err != nil {
		lc.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := l.openPage(rb)
	if err != nil {
		_ = rb.Close()
		lc.Kill()
		return nil, err
	}

	if l.cfg.UserAgent != "" {
		req := &proto.NetworkSetUserAgentOverride{UserAgent: l.cfg.UserAgent, AcceptLanguage: l.cfg.Lang}
		if err := page.SetUserAgent(req); err != nil {
			l.logger.Warn("Failed to override user agent.", zap.Error(err))
		}
	}

	l.logger.Info("Browser launched.",
		zap.Bool("headless", l.cfg.Headless),
		zap.String("lang", l.cfg.Lang),
		zap.Bool("stealth", l.cfg.Stealth),
	)
	return &Browser{browser: rb, page: page, proc: lc, timeouts: l.timeouts, logger: l.logger}, nil
}

func (l *Launcher) openPage(rb *rod.Browser) (*rod.Page, error) {
	if l.cfg.Stealth {
		page, err := stealth.Page(rb)
		if err != nil {
			return nil, fmt.Errorf("open stealth page: %w", err)
		}
		return page, nil
	}
	page, err := rb.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return page, nil
}

// Browser is a single rod page.
type Browser struct {
	browser  *rod.Browser
	page     *rod.Page
	proc     *launcher.Launcher
	timeouts config.TimeoutsConfig
	logger   *zap.Logger
}

var _ browser.Browser = (*Browser)(nil)

type handle struct {
	query browser.Query
	el    *rod.Element
}

func (h *handle) Query() browser.Query { return h.query }

func (b *Browser) Navigate(ctx context.Context, url string) error {
	p := b.page.Context(ctx).Timeout(b.timeouts.Navigation)
	if err := p.Navigate(url); err != nil {
		return b.navigationError(ctx, url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return b.navigationError(ctx, url, err)
	}
	return nil
}

func (b *Browser) navigationError(ctx context.Context, url string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("navigation canceled: %w", ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("navigation to %s timed out after %v: %w", url, b.timeouts.Navigation, err)
	}
	return fmt.Errorf("navigation failed: %w", err)
}

func (b *Browser) WaitFor(ctx context.Context, q browser.Query, timeout time.Duration) (browser.Handle, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := b.page.Context(waitCtx)
	var (
		el  *rod.Element
		err error
	)
	if q.Kind == browser.CSS {
		el, err = p.Element(q.Expr)
	} else {
		el, err = p.ElementX(q.Expr)
	}
	if err == nil && q.Visible {
		err = el.WaitVisible()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if waitCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %v", browser.ErrTimeout, q, timeout)
		}
		return nil, fmt.Errorf("query %s failed: %w", q, err)
	}
	return &handle{query: q, el: el}, nil
}

// element rebinds a handle's element to ctx, bounded by the script timeout.
func (b *Browser) element(ctx context.Context, h browser.Handle) (*rod.Element, error) {
	hd, ok := h.(*handle)
	if !ok {
		return nil, fmt.Errorf("rodriver: foreign handle %T", h)
	}
	return hd.el.Context(ctx).Timeout(b.timeouts.Script), nil
}

func (b *Browser) ScrollIntoView(ctx context.Context, h browser.Handle) error {
	el, err := b.element(ctx, h)
	if err != nil {
		return err
	}
	_, err = el.Eval(`() => this.scrollIntoView({block: 'center', inline: 'nearest'})`)
	return err
}

// Click prefers a script click and falls back to a real mouse click.
func (b *Browser) Click(ctx context.Context, h browser.Handle) error {
	el, err := b.element(ctx, h)
	if err != nil {
		return err
	}
	_, err = el.Eval(`() => this.click()`)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	b.logger.Debug("Script click failed, falling back to mouse click.", zap.Stringer("query", h.Query()), zap.Error(err))
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (b *Browser) ExecuteScript(ctx context.Context, script string) (json.RawMessage, error) {
	p := b.page.Context(ctx).Timeout(b.timeouts.Script)
	res, err := p.Eval(`async () => { const __r = await (` + script + `); return JSON.stringify(__r === undefined ? null : __r); }`)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timeout during ExecuteScript: %w", err)
		}
		return nil, fmt.Errorf("failed ExecuteScript evaluation: %w", err)
	}
	encoded := res.Value.Str()
	if encoded == "" {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(encoded), nil
}

// Quit closes the browser and makes sure the process is gone, even when
// ctx has already been canceled.
func (b *Browser) Quit(ctx context.Context) error {
	quitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeouts.Teardown)
	defer cancel()

	err := b.browser.Context(quitCtx).Close()
	b.proc.Kill()
	b.proc.Cleanup()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
