package cdp

import (
	"context"
	"time"
)

// combineContext derives a context from tabCtx, which carries the chromedp
// target, that is also canceled when opCtx is done. Values always come from
// tabCtx.
func combineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancelCause(tabCtx)
	stop := context.AfterFunc(opCtx, func() {
		cancel(context.Cause(opCtx))
	})
	return combined, func() {
		stop()
		cancel(context.Canceled)
	}
}

// valueOnlyContext keeps the chromedp values of its parent but drops its
// deadline and cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// detach returns a context for cleanup work that must outlive ctx.
func detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
