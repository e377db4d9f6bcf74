package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rubiojr/cardex/pkg/catalog"
	"github.com/urfave/cli/v3"
)

// ImportCommand creates the import command
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import a card catalog checkout and rebuild the search index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Catalog directory (defaults to catalog_dir from the config)",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Keep running and re-import when catalog files change",
				Value: false,
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Quiet period before re-importing in watch mode",
				Value: catalog.DefaultDebounce,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runImport(ctx, c.String("config"), c.String("dir"), c.Bool("watch"), c.Duration("debounce"))
		},
	}
}

func runImport(ctx context.Context, configPath, dirFlag string, watch bool, debounce time.Duration) error {
	cfg, store, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	dir, err := catalogDir(cfg, dirFlag)
	if err != nil {
		return err
	}

	importer := catalog.NewImporter(store)
	res, err := importer.Import(ctx, dir)
	if err != nil {
		return fmt.Errorf("importing %s: %w", dir, err)
	}
	printImportResult(res)

	if !watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n", dir)
	return importer.Watch(ctx, dir, debounce, func(res *catalog.Result, err error) {
		if err != nil {
			fmt.Printf("Import failed: %v\n", err)
			return
		}
		printImportResult(res)
	})
}

func printImportResult(res *catalog.Result) {
	fmt.Printf("Imported %s cards from %d files across %d sets (%d skipped, %s indexed) in %s\n",
		formatNumber(res.Cards), res.Files, res.Sets, res.Skipped, formatNumber(res.Indexed),
		res.Duration.Round(time.Millisecond))
}
