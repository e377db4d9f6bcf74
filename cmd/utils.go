package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rubiojr/cardex/pkg/config"
	"github.com/rubiojr/cardex/pkg/storage"
)

// openStore loads the configuration and opens the catalog database,
// applying pending migrations.
func openStore(ctx context.Context, configPath string) (*config.Config, *storage.Store, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating storage directory: %w", err)
	}

	store, err := storage.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	return cfg, store, nil
}

func closeStore(store *storage.Store) {
	if err := store.Close(); err != nil {
		fmt.Printf("Warning: failed to close store: %v\n", err)
	}
}

// catalogDir picks the catalog checkout: the flag wins over the config.
func catalogDir(cfg *config.Config, flagValue string) (string, error) {
	dir := strings.TrimSpace(flagValue)
	if dir == "" {
		dir = cfg.CatalogDir
	}
	if dir == "" {
		return "", fmt.Errorf("no catalog directory: pass --dir or set catalog_dir in the config")
	}
	return dir, nil
}

// isTerminal checks if stdout is a terminal
func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// displayWithPager displays content using a pager
func displayWithPager(content string) error {
	pagerCmd := os.Getenv("PAGER")
	if pagerCmd == "" {
		for _, pager := range []string{"less", "more"} {
			if _, err := exec.LookPath(pager); err == nil {
				pagerCmd = pager
				break
			}
		}
	}

	if pagerCmd == "" {
		fmt.Print(content)
		return nil
	}

	var args []string
	if strings.Contains(pagerCmd, "less") {
		args = []string{"-R", "-S", "-F", "-X"}
	}

	cmd := exec.Command(pagerCmd, args...)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// output prints content, through a pager when stdout is a terminal.
func output(content string, noPager bool) error {
	if noPager || !isTerminal() {
		fmt.Print(content)
		return nil
	}
	return displayWithPager(content)
}
