// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pollster/internal/browser"
)

// -- Browser Mock --

// MockBrowser mocks the browser.Browser interface.
type MockBrowser struct {
	mock.Mock
}

var _ browser.Browser = (*MockBrowser)(nil)

func (m *MockBrowser) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockBrowser) WaitFor(ctx context.Context, q browser.Query, timeout time.Duration) (browser.Handle, error) {
	args := m.Called(ctx, q, timeout)
	var h browser.Handle
	if v := args.Get(0); v != nil {
		h = v.(browser.Handle)
	}
	return h, args.Error(1)
}

func (m *MockBrowser) ScrollIntoView(ctx context.Context, h browser.Handle) error {
	return m.Called(ctx, h).Error(0)
}

func (m *MockBrowser) Click(ctx context.Context, h browser.Handle) error {
	return m.Called(ctx, h).Error(0)
}

func (m *MockBrowser) ExecuteScript(ctx context.Context, script string) (json.RawMessage, error) {
	args := m.Called(ctx, script)
	var raw json.RawMessage
	if v := args.Get(0); v != nil {
		raw = v.(json.RawMessage)
	}
	return raw, args.Error(1)
}

func (m *MockBrowser) Quit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Handle is a trivial browser.Handle for tests.
type Handle struct {
	Q browser.Query
}

func (h *Handle) Query() browser.Query { return h.Q }

// NewHandle returns a Handle for q.
func NewHandle(q browser.Query) *Handle { return &Handle{Q: q} }

// -- Launcher Mock --

// MockLauncher mocks browser.Launcher.
type MockLauncher struct {
	mock.Mock
}

func (m *MockLauncher) Launch(ctx context.Context) (browser.Browser, error) {
	args := m.Called(ctx)
	var b browser.Browser
	if v := args.Get(0); v != nil {
		b = v.(browser.Browser)
	}
	return b, args.Error(1)
}
