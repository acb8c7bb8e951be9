package app

import (
	"context"
	"testing"

	"github.com/partwise/partwise/internal/config"
	"github.com/partwise/partwise/pkg/types"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.HTTP.Addr = "127.0.0.1:0"

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestStopDrivesShutdownManager(t *testing.T) {
	a := newTestApp(t)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if a.shutdown.IsShuttingDown() {
		t.Fatal("shutdown manager reports shutting down while running")
	}
	if err := a.evCatalog.CreateRelation(context.Background(), "events", types.StrategyRange, types.TypeInt64, 0); err != nil {
		t.Fatalf("CreateRelation: %v", err)
	}

	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !a.shutdown.IsShuttingDown() {
		t.Fatal("Stop did not run the shutdown manager")
	}

	// Closers ran: a reload from the closed catalog must fail.
	if _, err := a.catalog.LoadDescriptor(context.Background(), "events"); err == nil {
		t.Fatal("catalog still open after Stop")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	a := newTestApp(t)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
