package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/cardex/pkg/storage"
	"github.com/urfave/cli/v3"
)

// CollectionCommand creates the collection command
func CollectionCommand() *cli.Command {
	return &cli.Command{
		Name:  "collection",
		Usage: "Track owned cards",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List owned cards, most recently changed first",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print as JSON"},
					&cli.BoolFlag{Name: "no-pager", Usage: "Disable pager and output directly to terminal"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return listCollection(ctx, c.String("config"), c.Bool("json"), c.Bool("no-pager"))
				},
			},
			{
				Name:      "add",
				Usage:     "Add one copy of each card",
				ArgsUsage: "<card-id>...",
				Action: func(ctx context.Context, c *cli.Command) error {
					return changeOwnership(ctx, c.String("config"), c.Args().Slice(), addOwnership)
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove one copy of each card",
				ArgsUsage: "<card-id>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "Remove every copy"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					op := removeOwnership
					if c.Bool("all") {
						op = deleteOwnership
					}
					return changeOwnership(ctx, c.String("config"), c.Args().Slice(), op)
				},
			},
		},
	}
}

type ownershipOp func(ctx context.Context, store *storage.Store, id string) (int, error)

func addOwnership(ctx context.Context, store *storage.Store, id string) (int, error) {
	return store.AddOwnership(ctx, id)
}

func removeOwnership(ctx context.Context, store *storage.Store, id string) (int, error) {
	return store.RemoveOwnership(ctx, id)
}

func deleteOwnership(ctx context.Context, store *storage.Store, id string) (int, error) {
	return 0, store.DeleteOwnership(ctx, id)
}

func changeOwnership(ctx context.Context, configPath string, ids []string, op ownershipOp) error {
	if len(ids) == 0 {
		return fmt.Errorf("at least one card id is required")
	}

	_, store, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	for _, id := range ids {
		qty, err := op(ctx, store, id)
		if err != nil {
			return err
		}
		card, err := store.GetCard(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s now x%d\n", id, cardLabel(card), qty)
	}
	return nil
}

func listCollection(ctx context.Context, configPath string, asJSON, noPager bool) error {
	_, store, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	entries, err := store.ListCollection(ctx)
	if err != nil {
		return fmt.Errorf("listing collection: %w", err)
	}
	if asJSON {
		return printJSON(entries)
	}
	return output(formatCollection(entries), noPager)
}
