package config

import (
	"encoding/json"

	"github.com/bornholm/rewarder/internal/command/common"
	appconfig "github.com/bornholm/rewarder/internal/config"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.yaml.in/yaml/v3"
)

func Config() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "schema",
				Usage: "Print the JSON schema of the configuration file",
				Action: func(cliCtx *cli.Context) error {
					encoder := json.NewEncoder(cliCtx.App.Writer)
					encoder.SetIndent("", "  ")

					if err := encoder.Encode(appconfig.Schema()); err != nil {
						return errors.WithStack(err)
					}

					return nil
				},
			},
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Flags: []cli.Flag{
					common.ConfigFlag(),
				},
				Action: func(cliCtx *cli.Context) error {
					conf, err := common.LoadConfig(cliCtx)
					if err != nil {
						return errors.WithStack(err)
					}

					encoder := yaml.NewEncoder(cliCtx.App.Writer)
					encoder.SetIndent(2)

					if err := encoder.Encode(conf); err != nil {
						return errors.WithStack(err)
					}

					return errors.WithStack(encoder.Close())
				},
			},
		},
	}
}
