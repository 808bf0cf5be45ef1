package cdp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pollster/internal/browser"
	"github.com/xkilldash9x/pollster/internal/config"
)

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "target"

	t.Run("inherits values from the tab context", func(t *testing.T) {
		tab := context.WithValue(context.Background(), key, "tab")
		combined, cancel := combineContext(tab, context.Background())
		defer cancel()

		assert.Equal(t, "tab", combined.Value(key))
		assert.NoError(t, combined.Err())
	})

	t.Run("canceled by the operation context with its cause", func(t *testing.T) {
		op, cancelOp := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancelOp()
		combined, cancel := combineContext(context.Background(), op)
		defer cancel()

		<-combined.Done()
		assert.ErrorIs(t, context.Cause(combined), context.DeadlineExceeded)
	})

	t.Run("canceled by the tab context", func(t *testing.T) {
		tab, cancelTab := context.WithCancel(context.Background())
		combined, cancel := combineContext(tab, context.Background())
		defer cancel()

		cancelTab()
		assert.Eventually(t, func() bool { return combined.Err() != nil }, time.Second, 5*time.Millisecond)
	})

	t.Run("explicit cancel", func(t *testing.T) {
		combined, cancel := combineContext(context.Background(), context.Background())
		cancel()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}

func TestDetach(t *testing.T) {
	type ctxKey string
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey("k"), "v"))
	cancel()

	d := detach(parent)
	assert.NoError(t, d.Err())
	assert.Nil(t, d.Done())
	_, hasDeadline := d.Deadline()
	assert.False(t, hasDeadline)
	assert.Equal(t, "v", d.Value(ctxKey("k")))
}

func TestAcceptLanguage(t *testing.T) {
	assert.Equal(t, "ru-RU,ru;q=0.9", acceptLanguage("ru-RU"))
	assert.Equal(t, "en", acceptLanguage("en"))
}

func TestPersonaTasks(t *testing.T) {
	logger := zaptest.NewLogger(t)

	full := personaTasks(config.BrowserConfig{UserAgent: "UA", Lang: "ru-RU", Stealth: true}, logger)
	assert.Len(t, full, 4)

	bare := personaTasks(config.BrowserConfig{}, logger)
	assert.Empty(t, bare)
}

func TestWrapScript(t *testing.T) {
	wrapped := wrapScript("document.title")
	assert.Contains(t, wrapped, "await (document.title)")
	assert.Contains(t, wrapped, "JSON.stringify")
}

func TestAllocatorOptions(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser
	opts := AllocatorOptions(cfg)
	// chromedp defaults, four overrides, then the shared launch flags.
	assert.Len(t, opts, len(chromedp.DefaultExecAllocatorOptions)+4+len(browser.LaunchFlags(cfg)))
}

// findChrome returns a Chrome binary on PATH, or "" when none is installed.
func findChrome() string {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell", "chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

const fixturePage = `<!doctype html>
<html><body>
<form id="f">
  <div role="radio" data-value="Red" onclick="window.picked = this.dataset.value">Red</div>
  <div role="radio" data-value="Blue" onclick="window.picked = this.dataset.value">Blue</div>
</form>
</body></html>`

func TestBrowser_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser integration test in short mode")
	}
	if findChrome() == "" {
		t.Skip("no Chrome binary found on PATH")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, fixturePage)
	}))
	defer server.Close()

	cfg := config.NewDefaultConfig()
	cfg.Browser.Headless = true
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	b, err := NewLauncher(cfg.Browser, cfg.Timeouts, zaptest.NewLogger(t)).Launch(ctx)
	require.NoError(t, err)
	defer func() { assert.NoError(t, b.Quit(context.Background())) }()

	require.NoError(t, b.Navigate(ctx, server.URL))

	h, err := b.WaitFor(ctx, browser.Query{Kind: browser.XPath, Expr: `//*[@data-value="Blue"]`, Visible: true}, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, b.ScrollIntoView(ctx, h))
	require.NoError(t, b.Click(ctx, h))

	picked, err := browser.ScriptString(ctx, b, "window.picked")
	require.NoError(t, err)
	assert.Equal(t, "Blue", picked)

	raw, err := b.ExecuteScript(ctx, "undefined")
	require.NoError(t, err)
	assert.JSONEq(t, "null", string(raw))

	_, err = b.WaitFor(ctx, browser.Query{Kind: browser.CSS, Expr: "#missing"}, 300*time.Millisecond)
	assert.True(t, errors.Is(err, browser.ErrTimeout), "got %v", err)
}
