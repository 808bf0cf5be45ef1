package locator

import (
	"fmt"
	"time"

	"github.com/xkilldash9x/pollster/internal/config"
	"github.com/xkilldash9x/pollster/internal/survey"
)

// Target is a semantic description of the element to act on. It is a closed
// set: AnswerOption, SubmitControl and ContinueLink.
type Target interface {
	fmt.Stringer
	// Strategies lists the lookups for the target, most specific first.
	Strategies() []Strategy

	needles(v config.VocabularyConfig) []string
	roles() []string
	visible() bool
	timeout(t config.TimeoutsConfig) time.Duration
}

// AnswerOption is the selectable control whose value or label is Value.
type AnswerOption struct {
	Value string
	Kind  survey.QuestionKind
}

func (a AnswerOption) String() string {
	return fmt.Sprintf("answer-option(%q, %s)", a.Value, a.Kind)
}

func (a AnswerOption) Strategies() []Strategy {
	return []Strategy{
		ExactAttribute{Attr: "data-value"},
		StructuralRole{Tag: "div", Marker: "jsname", Attr: "data-value"},
		StructuralRole{Role: true, Attr: "aria-label"},
		AccessibleLabel{},
		FuzzyText{TextTag: "span", AncestorRoles: true, AncestorDataValue: true, ClassHint: "option"},
	}
}

func (a AnswerOption) needles(config.VocabularyConfig) []string { return []string{a.Value} }

// roles puts the declared kind's role first, but still accepts the other
// one: forms do not always agree with the answers file.
func (a AnswerOption) roles() []string {
	if a.Kind == survey.MultiChoice {
		return []string{"checkbox", "radio"}
	}
	return []string{"radio", "checkbox"}
}

func (a AnswerOption) visible() bool { return false }

func (a AnswerOption) timeout(t config.TimeoutsConfig) time.Duration { return t.Strategy }

// SubmitControl is the form's submit button.
type SubmitControl struct{}

func (SubmitControl) String() string { return "submit-control" }

func (SubmitControl) Strategies() []Strategy {
	return []Strategy{
		ExactAttribute{Tag: "div", Attr: "jsname", Value: "M2UYVd"},
		ExactAttribute{Tag: "div", Attr: "class", Value: "freebirdFormviewerViewNavigationSubmitButton", Contains: true},
		FuzzyText{TextTag: "span", AncestorTag: "div", AncestorRoles: true},
		ExactAttribute{Tag: "button", Attr: "type", Value: "submit"},
		ExactAttribute{Tag: "input", Attr: "type", Value: "submit"},
		AccessibleLabel{},
		ExactAttribute{Tag: "div", Attr: "jsaction", Value: "submit", Contains: true},
	}
}

func (SubmitControl) needles(v config.VocabularyConfig) []string { return v.SubmitLabels }
func (SubmitControl) roles() []string                            { return []string{"button"} }
func (SubmitControl) visible() bool                              { return true }

func (SubmitControl) timeout(t config.TimeoutsConfig) time.Duration { return t.SubmitStrategy }

// ContinueLink is the "submit another response" affordance shown after a
// recorded response.
type ContinueLink struct{}

func (ContinueLink) String() string { return "continue-link" }

func (ContinueLink) Strategies() []Strategy {
	return []Strategy{
		FuzzyText{TextTag: "a"},
		AccessibleLabel{Tag: "a"},
		ExactAttribute{Tag: "a", Attr: "href", Value: "viewform", Contains: true},
	}
}

func (ContinueLink) needles(v config.VocabularyConfig) []string { return v.ContinueLabels }
func (ContinueLink) roles() []string                            { return []string{"link"} }
func (ContinueLink) visible() bool                              { return true }

func (ContinueLink) timeout(t config.TimeoutsConfig) time.Duration { return t.ContinueStrategy }
