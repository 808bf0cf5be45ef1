// Package survey holds the weighted-answer model of a survey and the parser
// that builds it from a markdown answers document.
package survey

import "strings"

// QuestionKind distinguishes radio-style from checkbox-style questions.
type QuestionKind int

const (
	SingleChoice QuestionKind = iota
	MultiChoice
)

// String returns the form-control vocabulary for the kind.
func (k QuestionKind) String() string {
	if k == MultiChoice {
		return "checkbox"
	}
	return "radio"
}

// AnswerOption is one selectable answer and its relative weight.
type AnswerOption struct {
	Text   string
	Weight float64
}

// Question is a prompt with an ordered, non-empty list of weighted options.
// Its fields are unexported so a loaded survey cannot be altered by the
// attempts that share it.
type Question struct {
	prompt  string
	kind    QuestionKind
	options []AnswerOption
}

// NewQuestion copies options into a new Question. It returns false when the
// prompt is blank or there are no options.
func NewQuestion(prompt string, kind QuestionKind, options []AnswerOption) (Question, bool) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" || len(options) == 0 {
		return Question{}, false
	}
	return Question{
		prompt:  prompt,
		kind:    kind,
		options: append([]AnswerOption(nil), options...),
	}, true
}

func (q Question) Prompt() string     { return q.prompt }
func (q Question) Kind() QuestionKind { return q.kind }
func (q Question) Len() int           { return len(q.options) }

// Options returns a copy of the question's options in declaration order.
func (q Question) Options() []AnswerOption {
	return append([]AnswerOption(nil), q.options...)
}

// TotalWeight sums the weights of all options. Weights need not add up to 1.
func (q Question) TotalWeight() float64 {
	var total float64
	for _, o := range q.options {
		total += o.Weight
	}
	return total
}

// Config is the ordered list of questions of one survey. It is built once
// at startup and shared read-only for the whole campaign.
type Config struct {
	questions []Question
}

// NewConfig builds a Config from questions, preserving their order.
func NewConfig(questions []Question) *Config {
	return &Config{questions: append([]Question(nil), questions...)}
}

// Questions returns a copy of the questions in source order.
func (c *Config) Questions() []Question {
	if c == nil {
		return nil
	}
	return append([]Question(nil), c.questions...)
}

// Len reports the number of questions.
func (c *Config) Len() int {
	if c == nil {
		return 0
	}
	return len(c.questions)
}
