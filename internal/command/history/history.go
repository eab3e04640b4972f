package history

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bornholm/rewarder/internal/command/common"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func History() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Search the history of performed searches",
		Flags: []cli.Flag{
			common.ConfigFlag(),
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Full text query, ie 'term:weather' or 'status:exhausted'",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   20,
			},
		},
		Action: func(cliCtx *cli.Context) error {
			conf, err := common.LoadConfig(cliCtx)
			if err != nil {
				return errors.WithStack(err)
			}

			index, err := common.OpenHistory(conf)
			if err != nil {
				return errors.WithStack(err)
			}

			defer index.Close()

			entries, err := index.Search(cliCtx.String("query"), cliCtx.Int("limit"))
			if err != nil {
				return errors.WithStack(err)
			}

			writer := tabwriter.NewWriter(cliCtx.App.Writer, 0, 4, 2, ' ', 0)

			fmt.Fprintln(writer, "FINISHED\tSTATUS\tTERM\tGAINED\tATTEMPTS\tQUERIES")

			for _, e := range entries {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%d\t%s\n",
					e.FinishedAt.Local().Format(time.DateTime),
					e.Status,
					e.Term,
					e.Gained(),
					e.Attempts,
					strings.Join(e.Queries, ", "),
				)
			}

			if err := writer.Flush(); err != nil {
				return errors.WithStack(err)
			}

			total, err := index.Count()
			if err != nil {
				return errors.WithStack(err)
			}

			fmt.Fprintf(cliCtx.App.Writer, "# %d/%d entries\n", len(entries), total)

			return nil
		},
	}
}
