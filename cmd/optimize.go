package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/cardex/pkg/index"
	"github.com/rubiojr/cardex/pkg/maintenance"
	"github.com/rubiojr/cardex/pkg/storage"
	"github.com/urfave/cli/v3"
)

// OptimizeCommand creates the optimize command
func OptimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Database optimization and maintenance commands",
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Run integrity checks on the database and the search index",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "quick",
						Usage: "Skip the FTS5 index integrity check",
						Value: false,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					quick := c.Bool("quick")
					return runOptimize(ctx, c.String("config"), "Integrity check", func(store *storage.Store, ix *index.Index) []maintenance.Task {
						tasks := []maintenance.Task{{Name: "database", Run: store.IntegrityCheck}}
						if !quick {
							tasks = append(tasks, maintenance.Task{Name: "search index", Run: ix.IntegrityCheck})
						}
						return tasks
					})
				},
			},
			{
				Name:  "fts-rebuild",
				Usage: "Rebuild the search index from the cards table",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Rebuild without checking the index first",
						Value: false,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					force := c.Bool("force")
					return runOptimize(ctx, c.String("config"), "FTS rebuild", func(store *storage.Store, ix *index.Index) []maintenance.Task {
						return []maintenance.Task{{Name: "rebuild", Run: func(ctx context.Context) error {
							if !force {
								if err := ix.IntegrityCheck(ctx); err == nil {
									fmt.Println("  index is healthy, rebuilding anyway")
								} else {
									fmt.Printf("  index check failed: %v\n", err)
								}
							}
							n, err := ix.Rebuild(ctx)
							if err == nil {
								fmt.Printf("  indexed %s cards\n", formatNumber(n))
							}
							return err
						}}}
					})
				},
			},
			{
				Name:  "analyze",
				Usage: "Run ANALYZE to update query planner statistics",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runOptimize(ctx, c.String("config"), "ANALYZE", func(store *storage.Store, ix *index.Index) []maintenance.Task {
						return []maintenance.Task{{Name: "analyze", Run: store.Analyze}}
					})
				},
			},
			{
				Name:  "vacuum",
				Usage: "Run VACUUM to defragment the database",
				Action: func(ctx context.Context, c *cli.Command) error {
					fmt.Println("This may take a while for large databases...")
					return runOptimize(ctx, c.String("config"), "VACUUM", func(store *storage.Store, ix *index.Index) []maintenance.Task {
						return []maintenance.Task{{Name: "vacuum", Run: store.Vacuum}}
					})
				},
			},
			{
				Name:  "checkpoint",
				Usage: "Run WAL checkpoint to flush changes",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runOptimize(ctx, c.String("config"), "WAL checkpoint", func(store *storage.Store, ix *index.Index) []maintenance.Task {
						return []maintenance.Task{{Name: "checkpoint", Run: store.WALCheckpoint}}
					})
				},
			},
			{
				Name:  "all",
				Usage: "Run all optimization operations (analyze, optimize, fts-optimize, checkpoint)",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runOptimize(ctx, c.String("config"), "All optimizations", func(store *storage.Store, ix *index.Index) []maintenance.Task {
						return append([]maintenance.Task{{Name: "analyze", Run: store.Analyze}}, maintenance.Tasks(store, ix)...)
					})
				},
			},
		},
	}
}

// runOptimize opens the store and runs the tasks built for it, reporting
// each one.
func runOptimize(ctx context.Context, configPath, title string, build func(*storage.Store, *index.Index) []maintenance.Task) error {
	_, store, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	tasks := build(store, index.New(store.DB()))

	fmt.Printf("Running %s on %s...\n\n", title, store.Path())
	failed := 0
	for _, task := range tasks {
		fmt.Printf("%s...\n", task.Name)
		if err := maintenance.RunTasks(ctx, []maintenance.Task{task}); err != nil {
			fmt.Printf("✗ %s FAILED - %v\n", task.Name, err)
			failed++
			continue
		}
		fmt.Printf("✓ %s OK\n", task.Name)
	}

	fmt.Println()
	if failed > 0 {
		return fmt.Errorf("%d of %d operations failed", failed, len(tasks))
	}
	fmt.Printf("%s completed successfully\n", title)
	return nil
}
