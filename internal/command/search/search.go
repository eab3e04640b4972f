package search

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bornholm/rewarder/internal/command/common"
	"github.com/bornholm/rewarder/pkg/attempt"
	"github.com/bornholm/rewarder/pkg/browser"
	"github.com/bornholm/rewarder/pkg/browser/bing"
	"github.com/bornholm/rewarder/pkg/progress"
	"github.com/bornholm/rewarder/pkg/session"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var ErrExhaustedSearches = errors.New("some searches ran out of attempts")

func Search() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Perform the daily rewarded searches",
		Flags: []cli.Flag{
			common.ConfigFlag(),
			&cli.IntFlag{
				Name:    "searches",
				Aliases: []string{"n"},
				EnvVars: []string{"REWARDER_SEARCHES"},
				Usage:   "Number of logical searches, overrides the configuration",
			},
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				EnvVars: []string{"REWARDER_PROFILE"},
				Usage:   "Browser profile (desktop or mobile), overrides the configuration",
			},
			&cli.BoolFlag{
				Name:    "headless",
				EnvVars: []string{"REWARDER_HEADLESS"},
				Usage:   "Run the browser without window, overrides the configuration",
			},
			&cli.BoolFlag{
				Name:    "strict",
				EnvVars: []string{"REWARDER_STRICT"},
				Usage:   "Fail when at least one search ran out of attempts",
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				EnvVars: []string{"REWARDER_DRY_RUN"},
				Usage:   "Use an ephemeral term pool and do not record history",
			},
		},
		Action: func(cliCtx *cli.Context) error {
			conf, err := common.LoadConfig(cliCtx)
			if err != nil {
				return errors.WithStack(err)
			}

			if cliCtx.IsSet("searches") {
				conf.Searches = cliCtx.Int("searches")
			}

			if cliCtx.IsSet("profile") {
				conf.Profile = browser.Profile(cliCtx.String("profile"))
			}

			if cliCtx.IsSet("headless") {
				conf.Browser.Headless = cliCtx.Bool("headless")
			}

			if err := conf.Validate(); err != nil {
				return errors.WithStack(err)
			}

			dryRun := cliCtx.Bool("dry-run")

			ctx, stop := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			httpScraper := common.NewScraper(conf)

			refill, err := common.NewRefill(conf, httpScraper)
			if err != nil {
				return errors.WithStack(err)
			}

			relatedProvider, err := common.NewRelatedProvider(ctx, conf, httpScraper)
			if err != nil {
				return errors.WithStack(err)
			}

			b, err := browser.New(ctx, conf.Browser.Options(conf.Profile)...)
			if err != nil {
				return errors.WithStack(err)
			}

			defer b.Close()

			searchPage := bing.NewSearch(b, "")

			if err := searchPage.Open(ctx); err != nil {
				return errors.WithStack(err)
			}

			termPool, err := common.OpenPool(ctx, conf, dryRun)
			if err != nil {
				return errors.WithStack(err)
			}

			defer termPool.Close()

			engine := attempt.NewEngine(searchPage, relatedProvider, attempt.WithConfig(conf.Attempts.Engine()))

			minPacing, maxPacing := conf.Pacing.Bounds()

			sessionOptions := []session.OptionFunc{
				session.WithPacing(minPacing, maxPacing),
				session.WithRefill(refill, common.PoolSize(conf)),
			}

			if conf.History.Enabled && !dryRun {
				index, err := common.OpenHistory(conf)
				if err != nil {
					return errors.WithStack(err)
				}

				defer func() {
					if err := index.Close(); err != nil {
						slog.WarnContext(ctx, "could not close history", slog.Any("error", err))
					}
				}()

				sessionOptions = append(sessionOptions, session.WithRecorder(index))
			}

			progressCh, progressCallback := progress.Channel()
			ctx = progress.WithTracking(ctx, progressCallback)

			done := make(chan struct{})
			go logProgress(ctx, progressCh, done)

			report, err := session.New(termPool, engine, sessionOptions...).Run(ctx, conf.Searches)

			close(done)

			if err != nil {
				return errors.Wrap(err, "search session failed")
			}

			slog.InfoContext(ctx, "session report",
				slog.String("profile", string(conf.Profile)),
				slog.Int("starting_points", report.StartingPoints),
				slog.Int("final_points", report.FinalPoints),
				slog.Int("gained", report.FinalPoints-report.StartingPoints),
				slog.Int("succeeded", report.Succeeded),
				slog.Int("exhausted", report.Exhausted),
			)

			if cliCtx.Bool("strict") && report.Failed() {
				return errors.Wrapf(ErrExhaustedSearches, "%d/%d", report.Exhausted, len(report.Outcomes))
			}

			return nil
		},
	}
}

func logProgress(ctx context.Context, progressCh <-chan progress.Event, done <-chan struct{}) {
	for {
		select {
		case event := <-progressCh:
			attrs := []any{
				slog.String("phase", string(event.Phase)),
				slog.String("step", event.Step),
				slog.Duration("elapsed", event.Elapsed.Round(time.Second)),
			}

			switch event.Phase {
			case progress.PhaseSearching, progress.PhaseCompleted:
				slog.InfoContext(ctx, "session progress", append(attrs, slog.Int("progress", int(event.Progress*100)))...)
			case progress.PhaseAttempting:
				slog.DebugContext(ctx, "attempt progress", append(attrs, slog.Any("attempt", event.Details["attempt"]), slog.Any("max_attempts", event.Details["max_attempts"]))...)
			default:
				slog.DebugContext(ctx, "session progress", attrs...)
			}

		case <-done:
			return
		}
	}
}
