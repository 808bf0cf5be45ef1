// Package browser defines the capability set the survey driver needs from a
// browser automation backend. Concrete backends live in the cdp and rodriver
// subpackages.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by WaitFor when no element matched within the bound.
var ErrTimeout = errors.New("browser: wait timed out")

// QueryKind selects the selector language of a Query.
type QueryKind int

const (
	XPath QueryKind = iota
	CSS
)

func (k QueryKind) String() string {
	if k == CSS {
		return "css"
	}
	return "xpath"
}

// Query describes the element a WaitFor call is waiting for.
type Query struct {
	Kind QueryKind
	Expr string
	// Visible requires the element to be rendered, not just attached.
	Visible bool
}

func (q Query) String() string { return fmt.Sprintf("%s(%s)", q.Kind, q.Expr) }

// Handle references one element resolved by WaitFor. It is only valid on the
// Browser that produced it and until the next navigation.
type Handle interface {
	Query() Query
}

// Browser is a single tab owned by one campaign. Implementations are not
// safe for concurrent use.
type Browser interface {
	// Navigate loads url and returns once the document has loaded.
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until an element matching q exists, at most timeout.
	// It returns ErrTimeout when the bound elapses.
	WaitFor(ctx context.Context, q Query, timeout time.Duration) (Handle, error)
	ScrollIntoView(ctx context.Context, h Handle) error
	Click(ctx context.Context, h Handle) error
	// ExecuteScript evaluates a JavaScript expression and returns its value
	// encoded as JSON. Promises are awaited. An undefined result is "null".
	ExecuteScript(ctx context.Context, script string) (json.RawMessage, error)
	// Quit closes the tab and the browser process behind it.
	Quit(ctx context.Context) error
}

// Launcher starts a Browser. The campaign calls it once at startup.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context) (Browser, error)

func (f LauncherFunc) Launch(ctx context.Context) (Browser, error) { return f(ctx) }

// ScriptBool evaluates script and decodes a boolean result. A null or
// non-boolean result is reported as false.
func ScriptBool(ctx context.Context, b Browser, script string) (bool, error) {
	raw, err := b.ExecuteScript(ctx, script)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil {
		return false, nil
	}
	return ok, nil
}

// ScriptString evaluates script and decodes a string result.
func ScriptString(ctx context.Context, b Browser, script string) (string, error) {
	raw, err := b.ExecuteScript(ctx, script)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", nil
	}
	return s, nil
}

// JSStrings encodes values as a JavaScript array literal.
func JSStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(b)
}
