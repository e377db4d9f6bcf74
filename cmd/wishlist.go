package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/cardex/pkg/storage"
	"github.com/urfave/cli/v3"
)

// WishlistCommand creates the wishlist command
func WishlistCommand() *cli.Command {
	return &cli.Command{
		Name:  "wishlist",
		Usage: "Track wanted cards",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List wishlisted cards, newest first",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print as JSON"},
					&cli.BoolFlag{Name: "no-pager", Usage: "Disable pager and output directly to terminal"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return listWishlist(ctx, c.String("config"), c.Bool("json"), c.Bool("no-pager"))
				},
			},
			{
				Name:      "add",
				Usage:     "Add a card or update its priority and notes",
				ArgsUsage: "<card-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "priority",
						Usage: fmt.Sprintf("Priority from %d to %d", storage.MinPriority, storage.MaxPriority),
						Value: storage.DefaultPriority,
					},
					&cli.StringFlag{
						Name:  "notes",
						Usage: "Free-form notes",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					var notes *string
					if c.IsSet("notes") {
						n := c.String("notes")
						notes = &n
					}
					priority := c.Int("priority")
					return addWishlist(ctx, c.String("config"), c.Args().First(), &priority, notes)
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove cards from the wishlist",
				ArgsUsage: "<card-id>...",
				Action: func(ctx context.Context, c *cli.Command) error {
					return removeWishlist(ctx, c.String("config"), c.Args().Slice())
				},
			},
		},
	}
}

func addWishlist(ctx context.Context, configPath, id string, priority *int, notes *string) error {
	if id == "" {
		return fmt.Errorf("a card id is required")
	}

	_, store, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	entry, err := store.AddWishlist(ctx, id, priority, notes)
	if err != nil {
		return err
	}
	card, err := store.GetCard(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s wishlisted at priority %d\n", id, cardLabel(card), entry.Priority)
	return nil
}

func removeWishlist(ctx context.Context, configPath string, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("at least one card id is required")
	}

	_, store, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	for _, id := range ids {
		if err := store.RemoveWishlist(ctx, id); err != nil {
			return err
		}
		fmt.Printf("%s: removed from wishlist\n", id)
	}
	return nil
}

func listWishlist(ctx context.Context, configPath string, asJSON, noPager bool) error {
	_, store, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	entries, err := store.ListWishlist(ctx)
	if err != nil {
		return fmt.Errorf("listing wishlist: %w", err)
	}
	if asJSON {
		return printJSON(entries)
	}
	return output(formatWishlist(entries), noPager)
}
