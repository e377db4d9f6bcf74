package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/rubiojr/cardex/pkg/facets"
	"github.com/urfave/cli/v3"
)

// FiltersCommand creates the filters command
func FiltersCommand() *cli.Command {
	return &cli.Command{
		Name:  "filters",
		Usage: "List the sets, rarities and types present in the catalog",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print filters as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return showFilters(ctx, c.String("config"), c.Bool("json"))
		},
		Commands: []*cli.Command{
			{
				Name:      "sets",
				Usage:     "Suggest sets matching a partial name or id",
				ArgsUsage: "[query]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of sets",
						Value: facets.DefaultSuggestLimit,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return suggestSets(ctx, c.String("config"), strings.Join(c.Args().Slice(), " "), c.Int("limit"))
				},
			},
		},
	}
}

func showFilters(ctx context.Context, configPath string, asJSON bool) error {
	_, store, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	f, err := facets.NewAggregator(store).Facets(ctx)
	if err != nil {
		return fmt.Errorf("loading filters: %w", err)
	}
	if asJSON {
		return printJSON(f)
	}

	var sb strings.Builder
	for _, group := range []struct {
		name   string
		values []string
	}{
		{"Sets", f.Sets},
		{"Rarities", f.Rarities},
		{"Types", f.Types},
	} {
		sb.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", group.name, len(group.values))))
		sb.WriteString("\n")
		for _, v := range group.values {
			fmt.Fprintf(&sb, "  %s\n", v)
		}
		sb.WriteString("\n")
	}
	fmt.Print(sb.String())
	return nil
}

func suggestSets(ctx context.Context, configPath, query string, limit int) error {
	_, store, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	sets, err := facets.NewAggregator(store).SuggestSets(ctx, query, limit)
	if err != nil {
		return fmt.Errorf("suggesting sets: %w", err)
	}
	if len(sets) == 0 {
		fmt.Println(noDataStyle.Render("No matching sets."))
		return nil
	}

	for _, s := range sets {
		fmt.Printf("%-12s %s %s\n", s.ID, s.Name, metaStyle.Render(fmt.Sprintf("(%d cards)", s.Cards)))
	}
	return nil
}
