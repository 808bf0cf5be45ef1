package locator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pollster/internal/config"
	"github.com/xkilldash9x/pollster/internal/humanoid"
	"github.com/xkilldash9x/pollster/internal/survey"
)

func renderAll(t *testing.T, l *Locator, target Target) []string {
	t.Helper()
	var out []string
	for _, s := range target.Strategies() {
		if q, ok := l.Query(target, s); ok {
			out = append(out, q.Expr)
		}
	}
	return out
}

func newTestLocator(t *testing.T, mutate func(*config.Config)) *Locator {
	cfg := config.NewDefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg, humanoid.Instant(), zaptest.NewLogger(t))
}

func TestStrategies_AnswerOption(t *testing.T) {
	l := newTestLocator(t, nil)

	got := renderAll(t, l, AnswerOption{Value: "Red", Kind: survey.SingleChoice})
	want := []string{
		`//*[@data-value='Red']`,
		`//div[@jsname][@data-value='Red']`,
		`//*[@role='radio' or @role='checkbox'][@aria-label='Red']`,
		`//*[@aria-label='Red']`,
		`//span[contains(normalize-space(.), 'Red')]/ancestor::*[@role='radio' or @role='checkbox' or @data-value='Red' or contains(@class, 'option')][1]`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("answer-option strategies mismatch (-want +got):\n%s", diff)
	}

	multi := renderAll(t, l, AnswerOption{Value: "Apples", Kind: survey.MultiChoice})
	assert.Equal(t, `//*[@role='checkbox' or @role='radio'][@aria-label='Apples']`, multi[2])
}

func TestStrategies_SubmitControl(t *testing.T) {
	l := newTestLocator(t, func(c *config.Config) {
		c.Vocabulary.SubmitLabels = []string{"Отправить", "Submit"}
	})

	got := renderAll(t, l, SubmitControl{})
	want := []string{
		`//div[@jsname='M2UYVd']`,
		`//div[contains(@class, 'freebirdFormviewerViewNavigationSubmitButton')]`,
		`//span[contains(normalize-space(.), 'Отправить') or contains(normalize-space(.), 'Submit')]/ancestor::div[@role='button'][1]`,
		`//button[@type='submit']`,
		`//input[@type='submit']`,
		`//*[@aria-label='Отправить' or @aria-label='Submit']`,
		`//div[contains(@jsaction, 'submit')]`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("submit-control strategies mismatch (-want +got):\n%s", diff)
	}
}

func TestStrategies_ContinueLink(t *testing.T) {
	t.Run("with labels", func(t *testing.T) {
		l := newTestLocator(t, func(c *config.Config) {
			c.Vocabulary.ContinueLabels = []string{"Submit another response"}
		})
		got := renderAll(t, l, ContinueLink{})
		want := []string{
			`//a[contains(normalize-space(.), 'Submit another response')]`,
			`//a[@aria-label='Submit another response']`,
			`//a[contains(@href, 'viewform')]`,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("continue-link strategies mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("label strategies are skipped without labels", func(t *testing.T) {
		l := newTestLocator(t, func(c *config.Config) { c.Vocabulary.ContinueLabels = nil })
		assert.Equal(t, []string{`//a[contains(@href, 'viewform')]`}, renderAll(t, l, ContinueLink{}))
	})
}

func TestStrategies_QueryVisibility(t *testing.T) {
	l := newTestLocator(t, nil)

	q, ok := l.Query(SubmitControl{}, SubmitControl{}.Strategies()[0])
	assert.True(t, ok)
	assert.True(t, q.Visible)

	q, ok = l.Query(AnswerOption{Value: "x"}, ExactAttribute{Attr: "data-value"})
	assert.True(t, ok)
	assert.False(t, q.Visible)
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", `'plain'`},
		{"it's", `"it's"`},
		{`say "hi"`, `'say "hi"'`},
		{`it's "x"`, `concat('it', "'", 's "x"')`},
		{`'"`, `concat("'", '"')`},
		{"", `''`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Literal(tt.in), "Literal(%q)", tt.in)
	}
}

func TestTargetStrings(t *testing.T) {
	assert.Equal(t, `answer-option("Red", radio)`, AnswerOption{Value: "Red"}.String())
	assert.Equal(t, "submit-control", SubmitControl{}.String())
	assert.Equal(t, "continue-link", ContinueLink{}.String())
}

func TestStrategyNames(t *testing.T) {
	names := map[string]bool{}
	for _, s := range (AnswerOption{}).Strategies() {
		names[s.Name()] = true
	}
	assert.True(t, names["exact-attribute:data-value"])
	assert.True(t, names["structural-role:jsname"])
	assert.True(t, names["structural-role:role"])
	assert.True(t, names["accessible-label"])
	assert.True(t, names["fuzzy-text"])
}
