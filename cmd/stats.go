package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/cardex/pkg/index"
	"github.com/urfave/cli/v3"
)

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show catalog, collection and wishlist statistics",
		Action: func(ctx context.Context, c *cli.Command) error {
			return showStats(ctx, c.String("config"))
		},
	}
}

func showStats(ctx context.Context, configPath string) error {
	_, store, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}
	indexed, err := index.New(store.DB()).Count(ctx)
	if err != nil {
		return fmt.Errorf("counting indexed cards: %w", err)
	}

	fmt.Print(formatStats(stats, indexed))
	return nil
}
