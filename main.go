package main

import (
	"context"
	stdlog "log"
	"os"

	"github.com/rubiojr/cardex/cmd"
	"github.com/rubiojr/cardex/pkg/config"
	"github.com/rubiojr/cardex/pkg/log"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "cardex",
		Usage: "Search a trading card catalog and track your collection",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			log.SetGlobalDebug(c.Bool("debug"))
			// CARDEX_DEBUG=search,storage enables debug output per service
			log.EnableDebugList(os.Getenv("CARDEX_DEBUG"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.ImportCommand(),
			cmd.SearchCommand(),
			cmd.FiltersCommand(),
			cmd.CollectionCommand(),
			cmd.WishlistCommand(),
			cmd.WebCommand(),
			cmd.StatsCommand(),
			cmd.OptimizeCommand(),
			cmd.MigrateCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		stdlog.Fatal(err)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		stdlog.Fatalf("Failed to get default config path: %v", err)
	}
	return path
}
