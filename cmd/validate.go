package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pollster/internal/config"
	"github.com/xkilldash9x/pollster/internal/survey"
)

// maxParallelLoads bounds how many answers files validate reads at once.
const maxParallelLoads = 4

type loadResult struct {
	path   string
	survey *survey.Config
	report *survey.Report
	err    error
}

// newValidateCmd creates the `validate` command.
func newValidateCmd() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate [answers files...]",
		Short: "Parses answers files and reports what would be used and what was skipped",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				cfg, err := configFrom(cmd)
				if err != nil {
					return err
				}
				paths = []string{cfg.Campaign.AnswersFile}
			}
			results, err := loadAll(cmd.Context(), paths)
			if err != nil {
				return err
			}

			var failures []error
			for _, r := range results {
				printResult(cmd.OutOrStdout(), r)
				if r.err != nil {
					failures = append(failures, r.err)
				}
			}
			return errors.Join(failures...)
		},
	}
	validateCmd.Flags().String("config", config.NewDefaultConfig().Campaign.AnswersFile, "Path to the answers file")
	return validateCmd
}

// loadAll parses every path concurrently. Per-file problems are carried in
// the results; only cancellation fails the whole call.
func loadAll(ctx context.Context, paths []string) ([]loadResult, error) {
	results := make([]loadResult, len(paths))
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)

	for i, path := range paths {
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			sv, report, err := survey.Load(path)
			if err == nil && sv.Len() == 0 {
				err = fmt.Errorf("%w: %s", survey.ErrNoQuestions, path)
			}
			results[i] = loadResult{path: path, survey: sv, report: report, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printResult(w io.Writer, r loadResult) {
	if r.survey == nil {
		fmt.Fprintf(w, "%s: %v\n", r.path, r.err)
		return
	}

	fmt.Fprintf(w, "%s: %d question(s)\n", r.path, r.survey.Len())
	for i, q := range r.survey.Questions() {
		fmt.Fprintf(w, "  %d. %s [%s]\n", i+1, q.Prompt(), q.Kind())
		total := q.TotalWeight()
		for _, o := range q.Options() {
			share := 0.0
			if total > 0 {
				share = o.Weight / total * 100
			}
			fmt.Fprintf(w, "     - %s: %.2f (%.1f%%)\n", o.Text, o.Weight, share)
		}
	}
	if !r.report.Empty() {
		fmt.Fprintf(w, "  skipped %d fragment(s):\n", len(r.report.Drops))
		for _, d := range r.report.Drops {
			fmt.Fprintf(w, "     %s\n", d)
		}
	}
	if r.err != nil {
		fmt.Fprintf(w, "  error: %v\n", r.err)
	}
}
