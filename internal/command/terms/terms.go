package terms

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bornholm/rewarder/internal/command/common"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func Terms() *cli.Command {
	return &cli.Command{
		Name:  "terms",
		Usage: "Manage the pool of search terms",
		Subcommands: []*cli.Command{
			refresh(),
			list(),
			clearPool(),
		},
	}
}

func refresh() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Rebuild the pool from the trend sources if it is stale",
		Flags: []cli.Flag{
			common.ConfigFlag(),
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Rebuild the pool even if it was already refreshed today",
			},
		},
		Action: func(cliCtx *cli.Context) error {
			ctx := cliCtx.Context

			conf, err := common.LoadConfig(cliCtx)
			if err != nil {
				return errors.WithStack(err)
			}

			refill, err := common.NewRefill(conf, common.NewScraper(conf))
			if err != nil {
				return errors.WithStack(err)
			}

			termPool, err := common.OpenPool(ctx, conf, false)
			if err != nil {
				return errors.WithStack(err)
			}

			defer termPool.Close()

			now := time.Now()
			size := common.PoolSize(conf)

			if cliCtx.Bool("force") {
				err = termPool.Refresh(ctx, now, size, refill)
			} else {
				err = termPool.EnsureFresh(ctx, now, size, refill)
			}
			if err != nil {
				return errors.WithStack(err)
			}

			slog.InfoContext(ctx, "term pool ready", slog.Int("size", termPool.Size()), slog.Time("load_date", termPool.LoadDate()))

			if err := termPool.Close(); err != nil {
				return errors.WithStack(err)
			}

			return nil
		},
	}
}

func list() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the unused terms in consumption order",
		Flags: []cli.Flag{
			common.ConfigFlag(),
		},
		Action: func(cliCtx *cli.Context) error {
			conf, err := common.LoadConfig(cliCtx)
			if err != nil {
				return errors.WithStack(err)
			}

			termPool, err := common.OpenPool(cliCtx.Context, conf, false)
			if err != nil {
				return errors.WithStack(err)
			}

			defer termPool.Close()

			out := cliCtx.App.Writer

			loadDate := "never"
			if !termPool.LoadDate().IsZero() {
				loadDate = termPool.LoadDate().Format(time.DateOnly)
			}

			fmt.Fprintf(out, "# loaded: %s, terms: %d\n", loadDate, termPool.Size())

			for i, term := range termPool.Terms() {
				fmt.Fprintf(out, "%d\t%s\n", i+1, term)
			}

			return nil
		},
	}
}

func clearPool() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Drop every unused term, the next search session rebuilds the pool",
		Flags: []cli.Flag{
			common.ConfigFlag(),
		},
		Action: func(cliCtx *cli.Context) error {
			ctx := cliCtx.Context

			conf, err := common.LoadConfig(cliCtx)
			if err != nil {
				return errors.WithStack(err)
			}

			termPool, err := common.OpenPool(ctx, conf, false)
			if err != nil {
				return errors.WithStack(err)
			}

			defer termPool.Close()

			if err := termPool.Clear(ctx); err != nil {
				return errors.WithStack(err)
			}

			slog.InfoContext(ctx, "term pool cleared", slog.String("store", conf.Terms.Store))

			return errors.WithStack(termPool.Close())
		},
	}
}
