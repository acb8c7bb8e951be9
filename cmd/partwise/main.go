// Package main implements the partwise router service binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/partwise/partwise/internal/app"
	"github.com/partwise/partwise/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile    string
		dataDir       string
		httpAddr      string
		catalogPath   string
		intervalWidth int64
		noAutoCreate  bool
		showVersion   bool
		showHelp      bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP address for the routing API")
	flag.StringVar(&catalogPath, "catalog", "", "Path to the catalog database")
	flag.Int64Var(&intervalWidth, "interval-width", 0, "Width of auto-created partitions")
	flag.BoolVar(&noAutoCreate, "no-auto-create", false, "Disable on-demand partition creation")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Partwise - Partition Routing Engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: partwise [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  partwise --data-dir /data/partwise\n")
		fmt.Fprintf(os.Stderr, "  partwise --config /etc/partwise/config.yaml\n")
		fmt.Fprintf(os.Stderr, "  partwise --http-addr :9000 --interval-width 86400000000\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PARTWISE_DATA_DIR        Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  PARTWISE_HTTP_ADDR       HTTP address for the routing API\n")
		fmt.Fprintf(os.Stderr, "  PARTWISE_CATALOG_PATH    Path to the catalog database\n")
		fmt.Fprintf(os.Stderr, "  PARTWISE_AUTO_CREATE     Enable on-demand partition creation\n")
		fmt.Fprintf(os.Stderr, "  PARTWISE_ARCHIVE_TYPE    Snapshot archive type (memory, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("partwise version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, httpAddr, catalogPath, intervalWidth, noAutoCreate)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	printBanner(cfg)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	if err := application.WaitForShutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, httpAddr, catalogPath string, intervalWidth int64, noAutoCreate bool) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Command line flags take highest priority.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if catalogPath != "" {
		cfg.Routing.CatalogPath = catalogPath
	}
	if intervalWidth != 0 {
		cfg.Routing.IntervalWidth = intervalWidth
	}
	if noAutoCreate {
		cfg.Routing.AutoCreate = false
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("Partwise - Partition Routing Engine")
	log.Printf("Configuration:")
	log.Printf("  Data Dir:    %s", cfg.DataDir)
	log.Printf("  HTTP:        %s", cfg.HTTP.Addr)
	log.Printf("  Catalog:     %s", cfg.Routing.CatalogPath)
	log.Printf("  Auto Create: %v (width %d)", cfg.Routing.AutoCreate, cfg.Routing.IntervalWidth)
	log.Printf("  Archive:     %s", cfg.Archive.Type)
}
