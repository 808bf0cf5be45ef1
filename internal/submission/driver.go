// Package submission fills and submits one instance of the survey form.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pollster/internal/browser"
	"github.com/xkilldash9x/pollster/internal/config"
	"github.com/xkilldash9x/pollster/internal/locator"
	"github.com/xkilldash9x/pollster/internal/survey"
	"github.com/xkilldash9x/pollster/internal/weighted"
)

// formQuery identifies a loaded form.
var formQuery = browser.Query{Kind: browser.CSS, Expr: "form"}

// Locator is the part of *locator.Locator the driver uses.
type Locator interface {
	Locate(ctx context.Context, b browser.Browser, target locator.Target) (locator.Match, error)
}

// Driver runs the AwaitingForm → Filling → Submitting →
// AwaitingConfirmation → Done state machine for one attempt. It only reads
// the survey, so one Driver serves every attempt of a campaign.
type Driver struct {
	survey   *survey.Config
	locator  Locator
	source   weighted.Source
	pacer    locator.Pauser
	timeouts config.TimeoutsConfig
	pauses   config.PausesConfig
	vocab    config.VocabularyConfig
	logger   *zap.Logger
}

// NewDriver creates a Driver. source feeds every weighted draw.
func NewDriver(cfg *config.Config, sv *survey.Config, loc Locator, source weighted.Source, pacer locator.Pauser, logger *zap.Logger) *Driver {
	return &Driver{
		survey:   sv,
		locator:  loc,
		source:   source,
		pacer:    pacer,
		timeouts: cfg.Timeouts,
		pauses:   cfg.Pauses,
		vocab:    cfg.Vocabulary,
		logger:   logger.Named("driver"),
	}
}

// Submit performs one attempt against the page currently loaded in b. It
// never returns an error: failures are reported in the Outcome.
func (d *Driver) Submit(ctx context.Context, b browser.Browser, attempt int) Outcome {
	start := time.Now()
	out := Outcome{Attempt: attempt, State: AwaitingForm}
	logger := d.logger.With(zap.Int("attempt", attempt))

	fail := func(reason Reason, err error) Outcome {
		if ctx.Err() != nil {
			reason, err = ReasonCanceled, ctx.Err()
		}
		logger.Debug("Attempt failed.", zap.Stringer("state", out.State), zap.String("reason", string(reason)), zap.Error(err))
		out.State = Failed
		out.Reason = reason
		out.Err = err
		out.Duration = time.Since(start)
		return out
	}

	// AwaitingForm
	if _, err := b.WaitFor(ctx, formQuery, d.timeouts.FormLoad); err != nil {
		return fail(ReasonFormNotLoaded, err)
	}
	if err := d.pacer.Pause(ctx, d.pauses.FormSettle); err != nil {
		return fail(ReasonCanceled, err)
	}

	// Filling
	out.State = Filling
	for i, q := range d.survey.Questions() {
		choice, err := d.fill(ctx, b, q)
		if err != nil {
			return fail(ReasonFillIncomplete, fmt.Errorf("question %d %q: %w", i+1, q.Prompt(), err))
		}
		out.Choices = append(out.Choices, Choice{Ordinal: i + 1, Question: q.Prompt(), Answer: choice})
		logger.Debug("Answer selected.", zap.Int("question", i+1), zap.String("answer", choice))
	}
	out.Filled = true

	// Submitting
	out.State = Submitting
	method, err := d.submit(ctx, b, logger)
	if err != nil {
		return fail(ReasonSubmitNotFound, err)
	}
	out.Method = method
	out.Submitted = true
	if err := d.pacer.Pause(ctx, d.pauses.PostSubmit); err != nil {
		// The form is already on its way; whatever the confirmation would
		// have said, the attempt ends here as a soft success.
		out.State = Done
		out.Duration = time.Since(start)
		return out
	}

	// AwaitingConfirmation
	out.State = AwaitingConfirmation
	out.Confirmed = d.awaitConfirmation(ctx, b, logger)

	out.State = Done
	out.Duration = time.Since(start)
	return out
}

// fill draws an answer for q and clicks it.
func (d *Driver) fill(ctx context.Context, b browser.Browser, q survey.Question) (string, error) {
	if d.pauses.ScrollStep > 0 {
		if _, err := b.ExecuteScript(ctx, fmt.Sprintf("window.scrollBy(0, %d)", d.pauses.ScrollStep)); err != nil && ctx.Err() == nil {
			d.logger.Debug("Pre-question scroll failed.", zap.Error(err))
		}
	}

	options := q.Options()
	weightedOptions := make([]weighted.Option[string], len(options))
	for i, o := range options {
		weightedOptions[i] = weighted.Option[string]{Value: o.Text, Weight: o.Weight}
	}
	value, err := weighted.Choose(d.source, weightedOptions)
	if err != nil {
		return "", err
	}

	m, err := d.locator.Locate(ctx, b, locator.AnswerOption{Value: value, Kind: q.Kind()})
	if err != nil {
		return "", err
	}
	if err := b.Click(ctx, m.Handle); err != nil {
		return "", fmt.Errorf("click %q: %w", value, err)
	}
	if err := d.pacer.Pause(ctx, d.pauses.Question); err != nil {
		return "", err
	}
	return value, nil
}

// submit sends the form through the first method that works: the located
// submit control, the form's own submit(), then a text search over every
// button-like element.
func (d *Driver) submit(ctx context.Context, b browser.Browser, logger *zap.Logger) (SubmitMethod, error) {
	m, err := d.locator.Locate(ctx, b, locator.SubmitControl{})
	if err == nil {
		if err = b.Click(ctx, m.Handle); err == nil {
			return SubmitViaControl, nil
		}
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	logger.Debug("Submit control unusable, trying form.submit().", zap.Error(err))

	ok, scriptErr := browser.ScriptBool(ctx, b, formSubmitScript)
	if scriptErr == nil && ok {
		return SubmitViaForm, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	logger.Debug("form.submit() unavailable, searching buttons by text.", zap.Error(scriptErr))

	ok, scriptErr = browser.ScriptBool(ctx, b, textSearchScript(d.vocab.SubmitLabels))
	if scriptErr == nil && ok {
		return SubmitViaTextSearch, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return "", errors.Join(err, scriptErr, errors.New("no submit method succeeded"))
}

// awaitConfirmation looks for any known confirmation signal within the
// confirmation timeout. Not finding one is not an error.
func (d *Driver) awaitConfirmation(ctx context.Context, b browser.Browser, logger *zap.Logger) bool {
	if q, ok := confirmationQuery(d.vocab); ok {
		_, err := b.WaitFor(ctx, q, d.timeouts.Confirmation)
		if err == nil {
			return true
		}
		if !errors.Is(err, browser.ErrTimeout) {
			logger.Debug("Confirmation lookup failed.", zap.Error(err))
		}
	}
	if ctx.Err() != nil || len(d.vocab.ConfirmationURLs) == 0 {
		return false
	}
	href, err := browser.ScriptString(ctx, b, "location.href")
	if err != nil {
		logger.Debug("Could not read the page URL.", zap.Error(err))
		return false
	}
	for _, marker := range d.vocab.ConfirmationURLs {
		if marker != "" && strings.Contains(href, marker) {
			return true
		}
	}
	return false
}

// confirmationQuery matches any confirmation text or the confirmation
// container class.
func confirmationQuery(v config.VocabularyConfig) (browser.Query, bool) {
	var parts []string
	for _, text := range v.ConfirmationTexts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("//*[contains(text(), %s)]", locator.Literal(text)))
	}
	if v.ConfirmationClass != "" {
		parts = append(parts, fmt.Sprintf("//*[contains(@class, %s)]", locator.Literal(v.ConfirmationClass)))
	}
	if len(parts) == 0 {
		return browser.Query{}, false
	}
	return browser.Query{Kind: browser.XPath, Expr: strings.Join(parts, " | ")}, true
}

const formSubmitScript = `(() => {
	const form = document.querySelector('form');
	if (!form) { return false; }
	form.submit();
	return true;
})()`

// textSearchScript clicks the first button-like element whose text contains
// one of labels.
func textSearchScript(labels []string) string {
	return `((labels) => {
	const candidates = document.querySelectorAll('[role="button"], button, input[type="submit"], span');
	for (const el of candidates) {
		const text = (el.innerText || el.value || '').trim();
		if (text && labels.some((l) => text.includes(l))) {
			(el.closest('[role="button"], button') || el).click();
			return true;
		}
	}
	return false;
})(` + browser.JSStrings(labels) + `)`
}
