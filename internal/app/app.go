// Package app wires the partwise router service together and manages its
// lifecycle.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	httpapi "github.com/partwise/partwise/internal/api/http"
	"github.com/partwise/partwise/internal/archive"
	"github.com/partwise/partwise/internal/cache"
	"github.com/partwise/partwise/internal/catalog"
	"github.com/partwise/partwise/internal/config"
	"github.com/partwise/partwise/internal/creation"
	"github.com/partwise/partwise/internal/engine"
	"github.com/partwise/partwise/internal/errors"
	"github.com/partwise/partwise/internal/events"
	"github.com/partwise/partwise/internal/observability"
	"github.com/partwise/partwise/internal/server"
	"github.com/partwise/partwise/internal/typesys"
	"github.com/partwise/partwise/pkg/types"
)

// App manages the partwise service lifecycle.
type App struct {
	cfg *config.Config

	registry  *typesys.Registry
	catalog   *catalog.SQLiteCatalog
	evCatalog *catalog.EventedCatalog
	descCache *cache.DescriptorCache
	bus       *events.Bus
	engine    *engine.Engine
	archiver  *archive.Archiver
	stats     *observability.RoutingStats
	shutdown  *server.ShutdownManager

	httpServer *http.Server

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{cfg: cfg}, nil
}

// Engine exposes the routing engine, for embedding callers.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Start initializes shared resources and starts the HTTP server.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup()
		a.setStopped()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if err := a.startHTTPServer(); err != nil {
		a.cleanup()
		a.setStopped()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	log.Printf("partwise started")
	return nil
}

// initSharedResources builds the catalog, engine, and archive store.
func (a *App) initSharedResources(ctx context.Context) error {
	a.registry = typesys.NewRegistry()
	a.stats = observability.NewRoutingStats()

	cat, err := catalog.NewSQLiteCatalog(a.cfg.Routing.CatalogPath, a.registry)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	a.catalog = cat
	log.Printf("Catalog initialized: %s", a.cfg.Routing.CatalogPath)

	// Mutations publish lifecycle events; the descriptor cache watches them
	// so the routing hot path never serves a detached or missing partition
	// longer than the delivery lag.
	a.bus = events.NewBus(64)
	a.evCatalog = catalog.WithEvents(cat, a.bus)
	a.descCache = cache.NewDescriptorCache(a.evCatalog, cache.DefaultTTL)
	a.descCache.Watch(a.bus, "descriptor-cache")

	var delegate creation.DDLDelegate
	if a.cfg.Routing.AutoCreate {
		delegate, err = catalog.NewAutoRangeDelegate(a.evCatalog, a.registry, a.cfg.Routing.IntervalWidth)
		if err != nil {
			return fmt.Errorf("failed to build partition delegate: %w", err)
		}
		log.Printf("Auto partition creation enabled: interval_width=%d", a.cfg.Routing.IntervalWidth)
	} else {
		delegate = rejectingDelegate{}
		log.Printf("Auto partition creation disabled")
	}

	a.engine = engine.New(a.descCache, delegate, a.registry, a.stats)

	var store archive.ObjectStore
	switch a.cfg.Archive.Type {
	case "memory":
		store = archive.NewMemoryStore()
	case "s3":
		store, err = archive.NewS3Store(ctx, a.cfg.Archive.S3.Bucket, archive.S3Config{
			Region:       a.cfg.Archive.S3.Region,
			Endpoint:     a.cfg.Archive.S3.Endpoint,
			UsePathStyle: a.cfg.Archive.S3.UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize archive store: %w", err)
		}
		log.Printf("Archive store: s3 bucket=%s region=%s", a.cfg.Archive.S3.Bucket, a.cfg.Archive.S3.Region)
	default:
		return fmt.Errorf("unsupported archive type: %s", a.cfg.Archive.Type)
	}
	// Restores must publish lifecycle events too, so the archiver goes over
	// the evented catalog like every other writer.
	a.archiver = archive.NewArchiver(a.evCatalog, store, a.cfg.Archive.Prefix)

	a.shutdown = server.NewShutdownManager(server.DefaultShutdownConfig())
	a.shutdown.RegisterCloser(cat)
	a.shutdown.RegisterCloser(a.descCache)

	return nil
}

// startHTTPServer starts the routing API server.
func (a *App) startHTTPServer() error {
	handler := httpapi.NewHandler(a.engine, a.evCatalog, a.archiver)

	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      server.ShutdownMiddleware(a.shutdown)(handler.Mux()),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	// Registered after the catalog and cache, so the LIFO closer order
	// stops the server before the resources it serves from.
	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	}))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("HTTP server listening on %s", a.cfg.HTTP.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully stops the service and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	log.Printf("Initiating graceful shutdown...")

	if a.cancel != nil {
		a.cancel()
	}

	// Drains in-flight requests, then closes the HTTP server, cache, and
	// catalog in reverse registration order.
	err := a.shutdown.Shutdown(ctx, "stop requested")

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Printf("Shutdown timeout, some goroutines may not have finished")
	}

	log.Printf("partwise stopped")
	return err
}

func (a *App) setStopped() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// cleanup releases shared resources when Start fails partway through.
func (a *App) cleanup() {
	if a.descCache != nil {
		a.descCache.Close()
	}
	if a.catalog != nil {
		a.catalog.Close()
	}
}

// WaitForShutdown blocks until a shutdown signal or context cancellation,
// then stops the service.
func (a *App) WaitForShutdown(ctx context.Context) error {
	if err := a.shutdown.ListenForSignals(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	return a.Stop(ctx)
}

// rejectingDelegate refuses partition creation when auto_create is off.
type rejectingDelegate struct{}

func (rejectingDelegate) CreatePartition(ctx context.Context, parent types.RelationID, value types.Value, valueType types.TypeID) (types.ChildID, error) {
	return "", errors.Newf(errors.ErrCategoryCreation, errors.CodeDdlFailed,
		"automatic partition creation is disabled for %s", parent)
}
