package survey

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// headingPattern opens a question block: "### Вопрос 3:" or "## Question 3".
var headingPattern = regexp.MustCompile(`(?im)^[ \t]*#{1,6}[ \t]*(?:вопрос|question)[ \t]+\d+[ \t]*[:.)]?`)

var (
	typeKeys    = []string{"тип:", "type:"}
	answersKeys = []string{"ответы:", "answers:"}
	// multiChoiceKeyword marks a type declaration as checkbox-style. Google
	// Forms calls its radio type "Multiple choice", so "multi" alone is not enough.
	multiChoiceKeyword = "checkbox"
)

var (
	errNoSeparator    = errors.New("no label/weight separator")
	errEmptyLabel     = errors.New("empty label")
	errWeightSyntax   = errors.New("weight is not a number")
	errWeightNotReal  = errors.New("weight is not a finite number")
	errWeightOutRange = errors.New("weight is outside [0, 1]")
)

// DropKind classifies a fragment the parser did not turn into model data.
type DropKind int

const (
	// IgnoredPreamble is text before the first question heading.
	IgnoredPreamble DropKind = iota
	// IgnoredLine is an unrecognized line inside a question block.
	IgnoredLine
	// DroppedAnswer is an answer entry whose label or weight could not be parsed.
	DroppedAnswer
	// DroppedQuestion is a question block with no prompt or no valid answers.
	DroppedQuestion
)

func (k DropKind) String() string {
	switch k {
	case IgnoredPreamble:
		return "preamble ignored"
	case IgnoredLine:
		return "line ignored"
	case DroppedAnswer:
		return "answer dropped"
	case DroppedQuestion:
		return "question dropped"
	default:
		return "unknown"
	}
}

// Drop records one tolerated defect in the answers document.
type Drop struct {
	Kind     DropKind
	Line     int
	Question string
	Text     string
	Reason   string
}

func (d Drop) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "line %d: %s", d.Line, d.Kind)
	if d.Reason != "" {
		fmt.Fprintf(&b, " (%s)", d.Reason)
	}
	if d.Question != "" {
		fmt.Fprintf(&b, " in %q", d.Question)
	}
	if d.Text != "" {
		fmt.Fprintf(&b, ": %s", d.Text)
	}
	return b.String()
}

// Report lists everything Parse skipped. An empty report means every line
// of the document was understood.
type Report struct {
	Drops []Drop
}

func (r *Report) add(d Drop) { r.Drops = append(r.Drops, d) }

// Count returns how many drops of the given kind were recorded.
func (r *Report) Count(kind DropKind) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, d := range r.Drops {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Empty reports whether nothing was skipped.
func (r *Report) Empty() bool { return r == nil || len(r.Drops) == 0 }

// Parse turns an answers document into a Config. It never fails: malformed
// entries and questions are left out and described in the returned Report.
//
// The document is a sequence of blocks introduced by a question heading. The
// first non-blank line of a block is its prompt; a "Type:" line whose value
// contains "checkbox" makes it multi-choice; an "Answers:" line is followed by
// "- label: weight" entries up to the next blank or "#" line. Only the last
// colon of an entry separates label from weight.
func Parse(document string) (*Config, *Report) {
	report := &Report{}
	doc := strings.ReplaceAll(document, "\r\n", "\n")

	locs := headingPattern.FindAllStringIndex(doc, -1)
	preambleEnd := len(doc)
	if len(locs) > 0 {
		preambleEnd = locs[0][0]
	}
	if pre := strings.TrimSpace(doc[:preambleEnd]); pre != "" {
		report.add(Drop{Kind: IgnoredPreamble, Line: 1, Text: firstLine(pre)})
	}

	questions := make([]Question, 0, len(locs))
	for i, loc := range locs {
		end := len(doc)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		headingLine := 1 + strings.Count(doc[:loc[0]], "\n")
		if q, ok := parseBlock(doc[loc[1]:end], headingLine, report); ok {
			questions = append(questions, q)
		}
	}
	return NewConfig(questions), report
}

// parseBlock parses the text following one heading. firstLineNo is the
// document line number of fragment's first line.
func parseBlock(fragment string, firstLineNo int, report *Report) (Question, bool) {
	lines := strings.Split(fragment, "\n")

	idx := 0
	for idx < len(lines) && strings.TrimSpace(lines[idx]) == "" {
		idx++
	}
	if idx == len(lines) {
		report.add(Drop{Kind: DroppedQuestion, Line: firstLineNo, Reason: "empty question block"})
		return Question{}, false
	}
	prompt := strings.TrimSpace(lines[idx])

	kind := SingleChoice
	var options []AnswerOption

	for i := idx + 1; i < len(lines); {
		line := strings.TrimSpace(lines[i])
		lineNo := firstLineNo + i

		if line == "" {
			i++
			continue
		}
		if value, ok := keyedValue(line, typeKeys); ok {
			kind = kindOf(value)
			i++
			continue
		}
		if _, ok := keyedValue(line, answersKeys); ok {
			i++
			for i < len(lines) {
				entry := strings.TrimSpace(lines[i])
				if entry == "" || strings.HasPrefix(entry, "#") {
					break
				}
				opt, err := parseAnswer(entry)
				if err != nil {
					report.add(Drop{Kind: DroppedAnswer, Line: firstLineNo + i, Question: prompt, Text: entry, Reason: err.Error()})
				} else {
					options = append(options, opt)
				}
				i++
			}
			continue
		}

		report.add(Drop{Kind: IgnoredLine, Line: lineNo, Question: prompt, Text: line})
		i++
	}

	q, ok := NewQuestion(prompt, kind, options)
	if !ok {
		report.add(Drop{Kind: DroppedQuestion, Line: firstLineNo + idx, Question: prompt, Reason: "no valid answers"})
	}
	return q, ok
}

// keyedValue matches "Key: value" lines case-insensitively, tolerating
// markdown emphasis around the key ("**Type:** radio").
func keyedValue(line string, keys []string) (string, bool) {
	bare := strings.TrimLeft(line, "*_ ")
	lower := strings.ToLower(bare)
	for _, key := range keys {
		if strings.HasPrefix(lower, key) {
			// Lowercasing may change byte lengths for some scripts, so cut on the colon.
			_, value, _ := strings.Cut(bare, ":")
			return strings.Trim(value, "*_ \t"), true
		}
	}
	return "", false
}

func kindOf(typeValue string) QuestionKind {
	if strings.Contains(strings.ToLower(typeValue), multiChoiceKeyword) {
		return MultiChoice
	}
	return SingleChoice
}

// parseAnswer splits "- label: weight" on its last colon.
func parseAnswer(entry string) (AnswerOption, error) {
	text := strings.TrimLeft(entry, "-*•+ \t")
	sep := strings.LastIndex(text, ":")
	if sep < 0 {
		return AnswerOption{}, errNoSeparator
	}
	label := strings.TrimSpace(text[:sep])
	if label == "" {
		return AnswerOption{}, errEmptyLabel
	}
	weight, err := parseWeight(text[sep+1:])
	if err != nil {
		return AnswerOption{}, err
	}
	return AnswerOption{Text: label, Weight: weight}, nil
}

// parseWeight accepts "0.35", "0,35" and "35%".
func parseWeight(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	percent := strings.HasSuffix(s, "%")
	if percent {
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	w, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errWeightSyntax, strings.TrimSpace(raw))
	}
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return 0, errWeightNotReal
	}
	if percent {
		w /= 100
	}
	if w < 0 || w > 1 {
		return 0, fmt.Errorf("%w: %v", errWeightOutRange, w)
	}
	return w, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
