package browser

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/xkilldash9x/pollster/internal/config"
)

// Flag is one Chrome command-line switch. An empty Value marks a boolean
// switch that is simply present.
type Flag struct {
	Name  string
	Value string
}

// LaunchFlags assembles the Chrome switches for cfg, minus headless mode,
// which each backend sets through its own launcher API. Later entries win
// when a backend applies them in order, so custom args come last.
func LaunchFlags(cfg config.BrowserConfig) []Flag {
	var out []Flag
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		out = append(out, Flag{Name: "window-size", Value: fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight)})
	}
	if cfg.Lang != "" {
		out = append(out, Flag{Name: "lang", Value: cfg.Lang})
	}
	if cfg.UserAgent != "" {
		out = append(out, Flag{Name: "user-agent", Value: cfg.UserAgent})
	}
	if cfg.Stealth {
		// Hides navigator.webdriver from the page.
		out = append(out, Flag{Name: "disable-blink-features", Value: "AutomationControlled"})
	}
	if cfg.IgnoreTLSErrors {
		out = append(out, Flag{Name: "ignore-certificate-errors"})
	}
	if runtime.GOOS == "linux" {
		out = append(out,
			Flag{Name: "no-sandbox"},
			Flag{Name: "disable-dev-shm-usage"},
		)
	}
	return append(out, ParseArgs(cfg.Args)...)
}

// ParseArgs turns "--name=value" and "--name" strings into flags. Leading
// dashes are optional.
func ParseArgs(args []string) []Flag {
	var out []Flag
	for _, arg := range args {
		trimmed := strings.TrimLeft(strings.TrimSpace(arg), "-")
		if trimmed == "" {
			continue
		}
		name, value, _ := strings.Cut(trimmed, "=")
		out = append(out, Flag{Name: name, Value: value})
	}
	return out
}
