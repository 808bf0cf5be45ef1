// Package cdp implements browser.Browser on top of chromedp.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pollster/internal/browser"
	"github.com/xkilldash9x/pollster/internal/config"
)

// Launcher starts Chrome through a chromedp exec allocator.
type Launcher struct {
	cfg      config.BrowserConfig
	timeouts config.TimeoutsConfig
	logger   *zap.Logger
}

// NewLauncher creates a Launcher for the given browser profile.
func NewLauncher(cfg config.BrowserConfig, timeouts config.TimeoutsConfig, logger *zap.Logger) *Launcher {
	return &Launcher{cfg: cfg, timeouts: timeouts, logger: logger.Named("cdp")}
}

// AllocatorOptions builds the exec allocator options: chromedp's defaults
// without the automation switches, followed by the shared launch flags.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	var opts []chromedp.ExecAllocatorOption
	for _, opt := range chromedp.DefaultExecAllocatorOptions {
		opts = append(opts, opt)
	}
	// Later options override earlier ones with the same flag name.
	opts = append(opts,
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("hide-scrollbars", cfg.Headless),
		chromedp.Flag("mute-audio", cfg.Headless),
	)
	for _, f := range browser.LaunchFlags(cfg) {
		if f.Value == "" {
			opts = append(opts, chromedp.Flag(f.Name, true))
			continue
		}
		opts = append(opts, chromedp.Flag(f.Name, f.Value))
	}
	return opts
}

// Launch starts the browser process, opens a tab and applies the persona.
// The browser is not bound to ctx: it lives until Quit.
func (l *Launcher) Launch(ctx context.Context) (browser.Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(l.cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(l.logger.Sugar().Debugf),
		chromedp.WithErrorf(l.logger.Sugar().Debugf),
	)

	b := &Browser{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		timeouts:    l.timeouts,
		logger:      l.logger,
	}

	// The first Run allocates the browser and binds its lifetime to the
	// context it is given, so it must be the long-lived tab context.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	timer := time.NewTimer(l.timeouts.Navigation)
	defer timer.Stop()

	var err error
	select {
	case err = <-started:
	case <-ctx.Done():
		err = ctx.Err()
	case <-timer.C:
		err = fmt.Errorf("chrome did not start within %v", l.timeouts.Navigation)
	}
	if err == nil {
		personaCtx, cancel := context.WithTimeout(ctx, l.timeouts.Script)
		err = b.run(personaCtx, personaTasks(l.cfg, l.logger))
		cancel()
	}
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	l.logger.Info("Browser launched.",
		zap.Bool("headless", l.cfg.Headless),
		zap.String("lang", l.cfg.Lang),
		zap.Bool("stealth", l.cfg.Stealth),
	)
	return b, nil
}

// Browser is a single chromedp tab.
type Browser struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	timeouts    config.TimeoutsConfig
	logger      *zap.Logger
}

var _ browser.Browser = (*Browser)(nil)

type handle struct {
	query  browser.Query
	nodeID cdp.NodeID
}

func (h *handle) Query() browser.Query { return h.query }

// run executes actions on the tab, bounded by both the tab lifetime and ctx.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(b.tabCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (b *Browser) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, b.timeouts.Navigation)
	defer cancel()

	if err := b.run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation to %s timed out after %v: %w", url, b.timeouts.Navigation, navCtx.Err())
		}
		if ctx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", ctx.Err())
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (b *Browser) WaitFor(ctx context.Context, q browser.Query, timeout time.Duration) (browser.Handle, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := []chromedp.QueryOption{chromedp.BySearch}
	if q.Kind == browser.CSS {
		opts = []chromedp.QueryOption{chromedp.ByQuery}
	}
	if q.Visible {
		opts = append(opts, chromedp.NodeVisible)
	}

	var nodes []*cdp.Node
	err := b.run(waitCtx, chromedp.Nodes(q.Expr, &nodes, opts...))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if waitCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s after %v", browser.ErrTimeout, q, timeout)
		}
		return nil, fmt.Errorf("query %s failed: %w", q, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s matched nothing", browser.ErrTimeout, q)
	}
	return &handle{query: q, nodeID: nodes[0].NodeID}, nil
}

func (b *Browser) ScrollIntoView(ctx context.Context, h browser.Handle) error {
	return b.callOn(ctx, h, `function() { this.scrollIntoView({block: 'center', inline: 'nearest'}); }`)
}

// Click dispatches the click from script so overlays and animations on the
// form cannot swallow it. A node that cannot be resolved to a JS object is
// clicked with synthesized mouse events instead.
func (b *Browser) Click(ctx context.Context, h browser.Handle) error {
	err := b.callOn(ctx, h, `function() { this.click(); }`)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	hd, ok := h.(*handle)
	if !ok {
		return err
	}
	b.logger.Debug("Script click failed, falling back to mouse click.", zap.Stringer("query", hd.query), zap.Error(err))

	clickCtx, cancel := context.WithTimeout(ctx, b.timeouts.Script)
	defer cancel()
	return b.run(clickCtx, chromedp.MouseClickNode(&cdp.Node{NodeID: hd.nodeID}))
}

// callOn invokes fn with the handle's element as this.
func (b *Browser) callOn(ctx context.Context, h browser.Handle, fn string) error {
	hd, ok := h.(*handle)
	if !ok {
		return fmt.Errorf("cdp: foreign handle %T", h)
	}
	opCtx, cancel := context.WithTimeout(ctx, b.timeouts.Script)
	defer cancel()

	return b.run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(hd.nodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve node for %s: %w", hd.query, err)
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		_, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		return nil
	}))
}

// wrapScript makes every evaluation yield a JSON string, so undefined and
// null results never reach chromedp's result decoding.
func wrapScript(script string) string {
	return `(async () => { const __r = await (` + script + `); return JSON.stringify(__r === undefined ? null : __r); })()`
}

func (b *Browser) ExecuteScript(ctx context.Context, script string) (json.RawMessage, error) {
	opCtx, cancel := context.WithTimeout(ctx, b.timeouts.Script)
	defer cancel()

	var encoded string
	err := b.run(opCtx, chromedp.Evaluate(wrapScript(script), &encoded, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
	}))
	if err != nil {
		if opCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("timeout during ExecuteScript: %w", opCtx.Err())
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("context error during ExecuteScript: %w", err)
		}
		return nil, fmt.Errorf("failed ExecuteScript evaluation: %w", err)
	}
	if encoded == "" {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(encoded), nil
}

// Quit closes the tab and stops the browser process. It runs detached from
// ctx's cancellation so an interrupted campaign still releases Chrome, but
// it gives up after the teardown timeout.
func (b *Browser) Quit(ctx context.Context) error {
	quitCtx, cancel := context.WithTimeout(detach(ctx), b.timeouts.Teardown)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Cancel(b.tabCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-quitCtx.Done():
		err = fmt.Errorf("browser did not close within %v", b.timeouts.Teardown)
	}
	b.tabCancel()
	b.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
