package campaign

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/pollster/internal/submission"
)

// Summary is the final account of a campaign.
type Summary struct {
	CampaignID  string `json:"campaign_id"`
	URL         string `json:"url"`
	Requested   int    `json:"requested"`
	Attempts    int    `json:"attempts"`
	Confirmed   int    `json:"confirmed"`
	Unconfirmed int    `json:"unconfirmed"`
	Failed      int    `json:"failed"`
	// Failures counts failed attempts by reason.
	Failures map[submission.Reason]int `json:"failures,omitempty"`
	// Answers counts the drawn answer per question over submitted attempts,
	// keyed "<ordinal>. <prompt>".
	Answers     map[string]map[string]int `json:"answers,omitempty"`
	Interrupted bool                      `json:"interrupted"`
	StartedAt   time.Time                 `json:"started_at"`
	FinishedAt  time.Time                 `json:"finished_at"`
}

func newSummary(id, url string, requested int) Summary {
	return Summary{
		CampaignID: id,
		URL:        url,
		Requested:  requested,
		Failures:   map[submission.Reason]int{},
		Answers:    map[string]map[string]int{},
		StartedAt:  time.Now().UTC(),
	}
}

func (s *Summary) record(out submission.Outcome) {
	s.Attempts++
	switch out.Result() {
	case submission.ResultConfirmed:
		s.Confirmed++
	case submission.ResultUnconfirmed:
		s.Unconfirmed++
	default:
		s.Failed++
		s.Failures[out.Reason]++
		return
	}
	for _, c := range out.Choices {
		key := fmt.Sprintf("%d. %s", c.Ordinal, c.Question)
		if s.Answers[key] == nil {
			s.Answers[key] = map[string]int{}
		}
		s.Answers[key][c.Answer]++
	}
}

func (s *Summary) finish() { s.FinishedAt = time.Now().UTC() }

// Succeeded counts confirmed and soft-success attempts.
func (s Summary) Succeeded() int { return s.Confirmed + s.Unconfirmed }

// Duration is the wall-clock length of the campaign.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// WriteReport writes s to path as indented JSON, creating parent
// directories as needed.
func WriteReport(path string, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode campaign summary: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write campaign summary %s: %w", path, err)
	}
	return nil
}
