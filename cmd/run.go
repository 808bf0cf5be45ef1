package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pollster/internal/browser"
	"github.com/xkilldash9x/pollster/internal/browser/cdp"
	"github.com/xkilldash9x/pollster/internal/browser/rodriver"
	"github.com/xkilldash9x/pollster/internal/campaign"
	"github.com/xkilldash9x/pollster/internal/config"
	"github.com/xkilldash9x/pollster/internal/humanoid"
	"github.com/xkilldash9x/pollster/internal/locator"
	"github.com/xkilldash9x/pollster/internal/observability"
	"github.com/xkilldash9x/pollster/internal/submission"
	"github.com/xkilldash9x/pollster/internal/survey"
)

// launcherFactory picks the browser backend for a run.
type launcherFactory func(cfg *config.Config, logger *zap.Logger) (browser.Launcher, error)

func defaultLauncherFactory(cfg *config.Config, logger *zap.Logger) (browser.Launcher, error) {
	switch strings.ToLower(cfg.Browser.Backend) {
	case config.BackendChromedp:
		return cdp.NewLauncher(cfg.Browser, cfg.Timeouts, logger), nil
	case config.BackendRod:
		return rodriver.NewLauncher(cfg.Browser, cfg.Timeouts, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser backend %q", cfg.Browser.Backend)
	}
}

// newRunCmd creates the `run` command.
func newRunCmd(factory launcherFactory) *cobra.Command {
	var sleepSeconds float64

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Submits the survey form repeatedly with weighted random answers",
		Long: `Run opens the form in a browser and submits it --count times. Every answer is
drawn from the weights in the answers file (--config). Failed attempts are
logged and skipped; the campaign always runs to the end unless interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("sleep") {
				if sleepSeconds < 0 {
					return fmt.Errorf("--sleep must not be negative")
				}
				cfg.Campaign.Delay = time.Duration(sleepSeconds * float64(time.Second))
			}
			if strings.TrimSpace(cfg.Campaign.URL) == "" {
				return fmt.Errorf("a form URL is required (--url or campaign.url)")
			}

			logger := observability.GetLogger()
			launcher, err := factory(cfg, logger)
			if err != nil {
				return err
			}
			return runCampaign(cmd.Context(), cfg, launcher, logger, cmd.OutOrStdout())
		},
	}

	defaults := config.NewDefaultConfig()
	runCmd.Flags().String("url", "", "URL of the survey form (required)")
	runCmd.Flags().IntP("count", "n", defaults.Campaign.Count, "Number of submissions")
	runCmd.Flags().Float64Var(&sleepSeconds, "sleep", defaults.Campaign.Delay.Seconds(), "Delay between submissions, in seconds")
	runCmd.Flags().Bool("headless", defaults.Browser.Headless, "Run the browser without a window")
	runCmd.Flags().String("config", defaults.Campaign.AnswersFile, "Path to the answers file")
	runCmd.Flags().String("backend", defaults.Browser.Backend, "Browser backend: chromedp or rod")
	runCmd.Flags().String("report", "", "Write a JSON campaign summary to this path")
	return runCmd
}

// runCampaign loads the answers file, wires the attempt pipeline and runs the
// campaign to completion.
func runCampaign(ctx context.Context, cfg *config.Config, launcher browser.Launcher, logger *zap.Logger, out io.Writer) error {
	sv, err := loadSurvey(cfg.Campaign.AnswersFile, logger)
	if err != nil {
		return err
	}

	pacer := humanoid.NewPacer(cfg.Pauses.StdDevRatio)
	loc := locator.New(cfg, pacer, logger)
	source := rand.New(rand.NewSource(time.Now().UnixNano()))
	driver := submission.NewDriver(cfg, sv, loc, source, pacer, logger)
	runner := campaign.NewRunner(cfg, launcher, driver, loc, pacer, logger)

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.Campaign.ReportFile != "" {
		if err := campaign.WriteReport(cfg.Campaign.ReportFile, summary); err != nil {
			logger.Error("Failed to write campaign summary", zap.Error(err))
		} else {
			logger.Info("Campaign summary written", zap.String("path", cfg.Campaign.ReportFile))
		}
	}

	fmt.Fprintf(out, "Submitted %d of %d requested (%d confirmed, %d unconfirmed, %d failed).\n",
		summary.Succeeded(), summary.Requested, summary.Confirmed, summary.Unconfirmed, summary.Failed)
	if summary.Interrupted {
		fmt.Fprintf(out, "Campaign %s was interrupted after %d attempts.\n", summary.CampaignID, summary.Attempts)
	}
	return nil
}

// loadSurvey reads the answers file and logs every tolerated defect. A file
// without a single usable question is an error.
func loadSurvey(path string, logger *zap.Logger) (*survey.Config, error) {
	sv, report, err := survey.Load(path)
	if err != nil {
		return nil, err
	}
	for _, d := range report.Drops {
		logger.Debug("Answers file fragment skipped", zap.String("path", path), zap.Stringer("drop", d))
	}
	if n := report.Count(survey.DroppedAnswer) + report.Count(survey.DroppedQuestion); n > 0 {
		logger.Warn("Answers file has malformed entries", zap.String("path", path), zap.Int("dropped", n))
	}
	if sv.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", survey.ErrNoQuestions, path)
	}
	logger.Info("Answers file loaded", zap.String("path", path), zap.Int("questions", sv.Len()))
	return sv, nil
}
