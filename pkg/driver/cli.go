package driver

import (
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "driver",
		Usage: "Driver-side tooling",
		Subcommands: []*cli.Command{
			{
				Name:  "simulate",
				Usage: "replay a simulated route through the driver client",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "route",
						Usage:    "path to the YAML route definition",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "print the expanded samples without connecting",
					},
				},
				Action: func(c *cli.Context) error {
					route, err := LoadSimulatedRoute(c.String("route"))
					if err != nil {
						return err
					}

					if c.Bool("dry-run") {
						pretty.Println(route)
						pretty.Println(route.Samples())
						return nil
					}

					client := NewClient(GetConfig())
					if err := client.Connect(); err != nil {
						log.Warn().Err(err).Msg("Gateway unreachable, samples will buffer")
					}
					defer client.Close()

					route.Replay(client)

					return nil
				},
			},
		},
	}
}
