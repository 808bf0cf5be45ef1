package browser_test

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pollster/internal/browser"
	"github.com/xkilldash9x/pollster/internal/config"
)

func hasFlag(flags []browser.Flag, name, value string) bool {
	for _, f := range flags {
		if f.Name == name && f.Value == value {
			return true
		}
	}
	return false
}

func TestLaunchFlags(t *testing.T) {
	t.Run("default profile", func(t *testing.T) {
		cfg := config.NewDefaultConfig().Browser
		flags := browser.LaunchFlags(cfg)

		assert.True(t, hasFlag(flags, "window-size", "1920,1080"))
		assert.True(t, hasFlag(flags, "lang", "ru-RU"))
		assert.True(t, hasFlag(flags, "user-agent", cfg.UserAgent))
		assert.True(t, hasFlag(flags, "disable-blink-features", "AutomationControlled"))
		assert.False(t, hasFlag(flags, "ignore-certificate-errors", ""))
		if runtime.GOOS == "linux" {
			assert.True(t, hasFlag(flags, "no-sandbox", ""))
		}
	})

	t.Run("stealth off and tls errors ignored", func(t *testing.T) {
		cfg := config.BrowserConfig{IgnoreTLSErrors: true}
		flags := browser.LaunchFlags(cfg)

		assert.False(t, hasFlag(flags, "disable-blink-features", "AutomationControlled"))
		assert.True(t, hasFlag(flags, "ignore-certificate-errors", ""))
		for _, f := range flags {
			assert.NotEqual(t, "window-size", f.Name)
		}
	})

	t.Run("custom args come last", func(t *testing.T) {
		cfg := config.BrowserConfig{Lang: "en-US", Args: []string{"--lang=de-DE", "mute-audio"}}
		flags := browser.LaunchFlags(cfg)

		require.GreaterOrEqual(t, len(flags), 3)
		assert.Equal(t, browser.Flag{Name: "lang", Value: "de-DE"}, flags[len(flags)-2])
		assert.Equal(t, browser.Flag{Name: "mute-audio"}, flags[len(flags)-1])
	})
}

func TestParseArgs(t *testing.T) {
	got := browser.ParseArgs([]string{"--a=1", "-b", "c=x=y", "  ", "--"})
	assert.Equal(t, []browser.Flag{
		{Name: "a", Value: "1"},
		{Name: "b"},
		{Name: "c", Value: "x=y"},
	}, got)
}

// scriptStub answers every script with a fixed JSON value.
type scriptStub struct {
	raw json.RawMessage
	err error
}

func (s scriptStub) Navigate(context.Context, string) error { return nil }
func (s scriptStub) WaitFor(context.Context, browser.Query, time.Duration) (browser.Handle, error) {
	return nil, browser.ErrTimeout
}
func (s scriptStub) ScrollIntoView(context.Context, browser.Handle) error { return nil }
func (s scriptStub) Click(context.Context, browser.Handle) error          { return nil }
func (s scriptStub) ExecuteScript(context.Context, string) (json.RawMessage, error) {
	return s.raw, s.err
}
func (s scriptStub) Quit(context.Context) error { return nil }

func TestScriptHelpers(t *testing.T) {
	ctx := context.Background()

	ok, err := browser.ScriptBool(ctx, scriptStub{raw: json.RawMessage("true")}, "x")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = browser.ScriptBool(ctx, scriptStub{raw: json.RawMessage("null")}, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	s, err := browser.ScriptString(ctx, scriptStub{raw: json.RawMessage(`"https://x/formResponse"`)}, "x")
	require.NoError(t, err)
	assert.Equal(t, "https://x/formResponse", s)

	boom := errors.New("boom")
	_, err = browser.ScriptBool(ctx, scriptStub{err: boom}, "x")
	assert.ErrorIs(t, err, boom)
}

func TestJSEncoding(t *testing.T) {
	assert.Equal(t, `["it's \"quoted\""]`, browser.JSStrings([]string{`it's "quoted"`}))
	assert.Equal(t, `["Отправить","Send"]`, browser.JSStrings([]string{"Отправить", "Send"}))
	assert.Equal(t, `[]`, browser.JSStrings(nil))
}

func TestQueryString(t *testing.T) {
	q := browser.Query{Kind: browser.CSS, Expr: "form"}
	assert.Equal(t, "css(form)", q.String())
}
