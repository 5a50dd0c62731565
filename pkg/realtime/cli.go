package realtime

import (
	"github.com/trackmate/trackmate/pkg/realtime/gateway"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "realtime",
		Usage: "Realtime tracking core",
		Subcommands: []*cli.Command{
			gateway.RegisterCLI(),
		},
	}
}
