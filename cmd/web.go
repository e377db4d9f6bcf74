package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rubiojr/cardex/pkg/api"
	"github.com/rubiojr/cardex/pkg/catalog"
	"github.com/rubiojr/cardex/pkg/config"
	"github.com/rubiojr/cardex/pkg/log"
	"github.com/rubiojr/cardex/pkg/maintenance"
	"github.com/rubiojr/cardex/pkg/realtime"
	"github.com/rubiojr/cardex/pkg/search"
	"github.com/rubiojr/cardex/pkg/storage"
	"github.com/urfave/cli/v3"
)

var webLogger = log.ForService("web")

// WebCommand creates the web command
func WebCommand() *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Start the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "port",
				Usage: "Port to listen on (defaults to web.port from the config)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind to (defaults to web.host from the config)",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Re-import the catalog directory when it changes",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return startWebServer(ctx, c.String("config"), c.String("host"), c.String("port"), c.Bool("watch"))
		},
	}
}

// newAPIServer wires the search service, with the configured result cache,
// and a change event hub into the API server.
func newAPIServer(cfg *config.Config, store *storage.Store) (*api.Server, error) {
	searchService := search.NewSearchService(store)
	if err := searchService.EnableCache(cfg.CacheTTL(), cfg.Search.CacheSize); err != nil {
		return nil, err
	}
	server := api.NewServer(store, searchService)
	server.SetHub(realtime.NewHub(realtime.DefaultBufferSize))
	return server, nil
}

func startWebServer(ctx context.Context, configPath, host, port string, watch bool) error {
	cfg, store, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	if host == "" {
		host = cfg.Web.Host
	}
	if port == "" {
		port = cfg.Web.Port
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiServer, err := newAPIServer(cfg, store)
	if err != nil {
		return fmt.Errorf("creating API: %w", err)
	}

	if schedule := cfg.MaintenanceSchedule(); schedule != "" {
		scheduler := maintenance.NewScheduler(store, schedule)
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	if watch {
		dir, err := catalogDir(cfg, "")
		if err != nil {
			return err
		}
		wait := watchCatalog(ctx, store, dir, catalog.DefaultDebounce, func(res *catalog.Result) {
			apiServer.CatalogReloaded(res.RunID, res.Cards)
		})
		// the store is closed after this returns
		defer func() {
			stop()
			wait()
		}()
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(host, port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		webLogger.Infof("Starting web server on http://%s", server.Addr)
		webLogger.Infof("  GET    /api/search             - Search the catalog")
		webLogger.Infof("  GET    /api/suggest            - Typeahead suggestions")
		webLogger.Infof("  GET    /api/filters            - Sets, rarities and types")
		webLogger.Infof("  GET    /api/filters/sets       - Set suggestions")
		webLogger.Infof("  GET    /api/cards/{id}         - Card details")
		webLogger.Infof("  GET    /api/collection         - Owned cards")
		webLogger.Infof("  POST   /api/collection/{id}    - Add a copy")
		webLogger.Infof("  DELETE /api/collection/{id}    - Remove a copy (?all=1 for every copy)")
		webLogger.Infof("  GET    /api/wishlist           - Wishlisted cards")
		webLogger.Infof("  POST   /api/wishlist           - Add or update a wishlist entry")
		webLogger.Infof("  DELETE /api/wishlist/{id}      - Remove a wishlist entry")
		webLogger.Infof("  GET    /api/events             - Change notifications (WebSocket)")
		webLogger.Infof("  GET    /api/stats              - Catalog statistics")
		webLogger.Infof("  GET    /health                 - Health check")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	webLogger.Infof("Shutting down web server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// watchCatalog re-imports dir in the background until ctx is done, calling
// onReload after every successful import. The returned func blocks until the
// watcher, including any import in flight, has stopped.
func watchCatalog(ctx context.Context, store *storage.Store, dir string, debounce time.Duration, onReload func(*catalog.Result)) func() {
	done := make(chan struct{})
	importer := catalog.NewImporter(store)
	go func() {
		defer close(done)
		err := importer.Watch(ctx, dir, debounce, func(res *catalog.Result, err error) {
			if err == nil && onReload != nil {
				onReload(res)
			}
		})
		if err != nil {
			webLogger.Errorf("catalog watcher stopped: %v", err)
		}
	}()
	return func() { <-done }
}
