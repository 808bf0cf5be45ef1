package locator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pollster/internal/browser"
	"github.com/xkilldash9x/pollster/internal/config"
	"github.com/xkilldash9x/pollster/internal/humanoid"
	"github.com/xkilldash9x/pollster/internal/mocks"
	"github.com/xkilldash9x/pollster/internal/survey"
)

func exprIs(expr string) interface{} {
	return mock.MatchedBy(func(q browser.Query) bool { return q.Expr == expr })
}

func TestResolve_FallsThroughStrategiesInOrder(t *testing.T) {
	l := newTestLocator(t, nil)
	b := new(mocks.MockBrowser)
	target := AnswerOption{Value: "Blue", Kind: survey.SingleChoice}
	queries := renderAll(t, l, target)

	hit := mocks.NewHandle(browser.Query{Expr: queries[2]})
	b.On("WaitFor", mock.Anything, exprIs(queries[0]), 3*time.Second).Return(nil, browser.ErrTimeout).Once()
	b.On("WaitFor", mock.Anything, exprIs(queries[1]), 3*time.Second).Return(nil, errors.New("node detached")).Once()
	b.On("WaitFor", mock.Anything, exprIs(queries[2]), 3*time.Second).Return(hit, nil).Once()

	m, err := l.Resolve(context.Background(), b, target)
	require.NoError(t, err)
	assert.Same(t, hit, m.Handle)
	assert.Equal(t, "structural-role:role", m.Strategy.Name())
	b.AssertExpectations(t)
	b.AssertNumberOfCalls(t, "WaitFor", 3)
}

func TestResolve_NotFoundAfterEveryStrategy(t *testing.T) {
	l := newTestLocator(t, nil)
	b := new(mocks.MockBrowser)
	b.On("WaitFor", mock.Anything, mock.Anything, 5*time.Second).Return(nil, browser.ErrTimeout)

	_, err := l.Resolve(context.Background(), b, SubmitControl{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "submit-control")
	b.AssertNumberOfCalls(t, "WaitFor", len(SubmitControl{}.Strategies()))
}

func TestResolve_UsesPerTargetTimeouts(t *testing.T) {
	l := newTestLocator(t, func(c *config.Config) {
		c.Timeouts.ContinueStrategy = 750 * time.Millisecond
	})
	b := new(mocks.MockBrowser)
	b.On("WaitFor", mock.Anything, mock.Anything, 750*time.Millisecond).Return(nil, browser.ErrTimeout)

	_, err := l.Resolve(context.Background(), b, ContinueLink{})
	assert.ErrorIs(t, err, ErrNotFound)
	b.AssertExpectations(t)
}

func TestResolve_StopsOnCancellation(t *testing.T) {
	l := newTestLocator(t, nil)
	b := new(mocks.MockBrowser)
	ctx, cancel := context.WithCancel(context.Background())

	b.On("WaitFor", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled).Once()

	_, err := l.Resolve(ctx, b, AnswerOption{Value: "Red"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNotFound)
	b.AssertNumberOfCalls(t, "WaitFor", 1)
}

// recordingPauser remembers every requested pause.
type recordingPauser struct {
	pauses []time.Duration
}

func (r *recordingPauser) Pause(ctx context.Context, mean time.Duration) error {
	r.pauses = append(r.pauses, mean)
	return ctx.Err()
}

func TestLocate_ScrollsAndSettles(t *testing.T) {
	cfg := config.NewDefaultConfig()
	pauser := &recordingPauser{}
	l := New(cfg, pauser, zaptest.NewLogger(t))
	b := new(mocks.MockBrowser)

	h := mocks.NewHandle(browser.Query{Expr: "//x"})
	b.On("WaitFor", mock.Anything, mock.Anything, mock.Anything).Return(h, nil).Once()
	b.On("ScrollIntoView", mock.Anything, h).Return(nil).Once()

	m, err := l.Locate(context.Background(), b, AnswerOption{Value: "Red"})
	require.NoError(t, err)
	assert.Same(t, h, m.Handle)
	assert.Equal(t, []time.Duration{cfg.Pauses.Settle}, pauser.pauses)
	b.AssertExpectations(t)
}

func TestLocate_ToleratesScrollFailure(t *testing.T) {
	l := newTestLocator(t, nil)
	b := new(mocks.MockBrowser)

	h := mocks.NewHandle(browser.Query{Expr: "//x"})
	b.On("WaitFor", mock.Anything, mock.Anything, mock.Anything).Return(h, nil).Once()
	b.On("ScrollIntoView", mock.Anything, h).Return(errors.New("not scrollable")).Once()

	m, err := l.Locate(context.Background(), b, SubmitControl{})
	require.NoError(t, err)
	assert.Same(t, h, m.Handle)
}

func TestLocate_PropagatesNotFound(t *testing.T) {
	l := New(config.NewDefaultConfig(), humanoid.Instant(), zaptest.NewLogger(t))
	b := new(mocks.MockBrowser)
	b.On("WaitFor", mock.Anything, mock.Anything, mock.Anything).Return(nil, browser.ErrTimeout)

	_, err := l.Locate(context.Background(), b, ContinueLink{})
	assert.ErrorIs(t, err, ErrNotFound)
	b.AssertNotCalled(t, "ScrollIntoView", mock.Anything, mock.Anything)
}
