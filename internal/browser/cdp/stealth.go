package cdp

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pollster/internal/config"
)

// evasionsScript runs before any page script on every new document.
const evasionsScript = `(() => {
	Object.defineProperty(Navigator.prototype, 'webdriver', { get: () => undefined });
	if (!window.chrome) { window.chrome = { runtime: {} }; }
})();`

// acceptLanguage renders "ru-RU" as "ru-RU,ru;q=0.9".
func acceptLanguage(lang string) string {
	base, _, found := strings.Cut(lang, "-")
	if !found || base == "" {
		return lang
	}
	return fmt.Sprintf("%s,%s;q=0.9", lang, base)
}

// personaTasks keeps the tab's user agent and language consistent with the
// launch flags, and hides the usual automation markers when stealth is on.
func personaTasks(cfg config.BrowserConfig, logger *zap.Logger) chromedp.Tasks {
	var tasks chromedp.Tasks
	if cfg.UserAgent != "" {
		ua := emulation.SetUserAgentOverride(cfg.UserAgent)
		if cfg.Lang != "" {
			ua = ua.WithAcceptLanguage(acceptLanguage(cfg.Lang))
		}
		tasks = append(tasks, ua)
	}
	if cfg.Lang != "" {
		tasks = append(tasks,
			emulation.SetLocaleOverride().WithLocale(strings.ReplaceAll(cfg.Lang, "-", "_")),
			network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": acceptLanguage(cfg.Lang)}),
		)
	}
	if cfg.Stealth {
		logger.Debug("Injecting evasions script.")
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			if _, err := page.AddScriptToEvaluateOnNewDocument(evasionsScript).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}))
	}
	return tasks
}
