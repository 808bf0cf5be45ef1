package submission

import (
	"fmt"
	"time"
)

// State is a step of one submission attempt.
type State int

const (
	AwaitingForm State = iota
	Filling
	Submitting
	AwaitingConfirmation
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingForm:
		return "awaiting_form"
	case Filling:
		return "filling"
	case Submitting:
		return "submitting"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reason explains a Failed outcome.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonFormNotLoaded    Reason = "form_not_loaded"
	ReasonFillIncomplete   Reason = "fill_incomplete"
	ReasonSubmitNotFound   Reason = "submit_not_found"
	ReasonNavigationFailed Reason = "navigation_failed"
	ReasonPanic            Reason = "panic"
	ReasonCanceled         Reason = "canceled"
)

// Result is the terminal classification of an attempt.
type Result string

const (
	ResultConfirmed   Result = "submitted-confirmed"
	ResultUnconfirmed Result = "submitted-unconfirmed"
	ResultFailed      Result = "failed"
)

// SubmitMethod records which fallback finally sent the form.
type SubmitMethod string

const (
	SubmitViaControl    SubmitMethod = "control"
	SubmitViaForm       SubmitMethod = "form-submit"
	SubmitViaTextSearch SubmitMethod = "text-search"
)

// Choice is the answer drawn for one question.
type Choice struct {
	// Ordinal is the 1-based position of the question in the survey.
	Ordinal  int
	Question string
	Answer   string
}

// Outcome describes one attempt. It is transient: the campaign logs and
// counts it, nothing stores it.
type Outcome struct {
	Attempt   int
	Filled    bool
	Submitted bool
	Confirmed bool
	State     State
	Reason    Reason
	Err       error
	Method    SubmitMethod
	Choices   []Choice
	Duration  time.Duration
}

// Result classifies the outcome. An attempt that reached Done without an
// observed confirmation is a soft success.
func (o Outcome) Result() Result {
	switch {
	case o.State != Done:
		return ResultFailed
	case o.Confirmed:
		return ResultConfirmed
	default:
		return ResultUnconfirmed
	}
}

// Succeeded reports whether the attempt counts as a submission.
func (o Outcome) Succeeded() bool { return o.State == Done }

// FailedOutcome builds a Failed outcome for failures detected outside the
// driver, such as a navigation that never reached the form.
func FailedOutcome(attempt int, reason Reason, err error) Outcome {
	return Outcome{Attempt: attempt, State: Failed, Reason: reason, Err: err}
}
