package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rubiojr/cardex/pkg/api"
	"github.com/rubiojr/cardex/pkg/search"
	"github.com/rubiojr/cardex/pkg/storage"
	"github.com/urfave/cli/v3"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the card catalog",
		ArgsUsage: "[text...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "set",
				Usage: "Set id, set name or part of a set name",
			},
			&cli.StringFlag{
				Name:  "rarity",
				Usage: "Exact rarity",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Card type",
			},
			&cli.BoolFlag{
				Name:  "owned",
				Usage: "Only cards in the collection",
			},
			&cli.BoolFlag{
				Name:  "wishlisted",
				Usage: "Only cards on the wishlist",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "relevance, name, set, rarity or number",
			},
			&cli.IntFlag{
				Name:  "page",
				Usage: "Page number",
				Value: search.DefaultPage,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Results per page",
				Value: search.DefaultLimit,
			},
			&cli.BoolFlag{
				Name:  "suggest",
				Usage: "Show typeahead suggestions instead of a result page",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print results as JSON",
			},
			&cli.BoolFlag{
				Name:  "no-pager",
				Usage: "Disable pager and output directly to terminal",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			params := search.SearchParams{
				Text:       strings.Join(c.Args().Slice(), " "),
				Set:        c.String("set"),
				Rarity:     c.String("rarity"),
				Type:       c.String("type"),
				Owned:      c.Bool("owned"),
				Wishlisted: c.Bool("wishlisted"),
				Sort:       c.String("sort"),
				Page:       c.Int("page"),
				Limit:      c.Int("limit"),
			}
			opts := searchOptions{
				suggest: c.Bool("suggest"),
				json:    c.Bool("json"),
				noPager: c.Bool("no-pager"),
			}
			return searchCards(ctx, c.String("config"), params, opts)
		},
	}
}

type searchOptions struct {
	suggest bool
	json    bool
	noPager bool
}

func searchCards(ctx context.Context, configPath string, params search.SearchParams, opts searchOptions) error {
	_, store, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	svc := search.NewSearchService(store)

	if opts.suggest {
		cards, err := svc.Suggest(ctx, params.Text, params.Limit)
		if err != nil {
			return fmt.Errorf("suggesting cards: %w", err)
		}
		if opts.json {
			return printJSON(cards)
		}
		return output(formatCards(fmt.Sprintf("Suggestions for %q", params.Text), cards), opts.noPager)
	}

	results, err := svc.Search(ctx, params)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	if opts.json {
		return printJSON(api.SearchResponse{
			Data:    results.Rows,
			Page:    results.Page,
			Limit:   results.Limit,
			Sort:    results.Sort,
			HasMore: results.HasMore,
			HasText: results.HasText,
		})
	}

	return output(formatSearchResults(results), opts.noPager)
}

func formatSearchResults(results *search.SearchResults) string {
	title := fmt.Sprintf("Page %d, sorted by %s", results.Page, titleCaser.String(results.Sort))
	out := formatCards(title, results.Rows)
	if results.HasMore {
		out += metaStyle.Render(fmt.Sprintf("More results on page %d", results.Page+1)) + "\n"
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// cardLabel is a short human description of a card.
func cardLabel(card *storage.ProjectedCard) string {
	if card.SetName != nil {
		return fmt.Sprintf("%s (%s)", card.Name, *card.SetName)
	}
	return card.Name
}
