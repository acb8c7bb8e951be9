// Package main implements a small CLI for routing values against a catalog
// directly, without running the HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/partwise/partwise/internal/catalog"
	"github.com/partwise/partwise/internal/engine"
	"github.com/partwise/partwise/internal/routing"
	"github.com/partwise/partwise/internal/typesys"
	"github.com/partwise/partwise/pkg/types"
)

func main() {
	var (
		catalogPath   string
		relation      string
		valueType     string
		rawValue      string
		create        bool
		intervalWidth int64
	)

	flag.StringVar(&catalogPath, "catalog", "", "Path to the catalog database (required)")
	flag.StringVar(&relation, "relation", "", "Relation to route against (required)")
	flag.StringVar(&valueType, "type", "int64", "Value type: int64, float64, timestamp, text")
	flag.StringVar(&rawValue, "value", "", "Value to route (required)")
	flag.BoolVar(&create, "create", false, "Create the owning partition if none exists")
	flag.Int64Var(&intervalWidth, "interval-width", 1000, "Width of auto-created partitions")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "partwise-route - route one value against a partitioned relation\n\n")
		fmt.Fprintf(os.Stderr, "Usage: partwise-route --catalog PATH --relation NAME --value VALUE [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  partwise-route --catalog /data/partwise/catalog.db --relation events --value 42\n")
		fmt.Fprintf(os.Stderr, "  partwise-route --catalog catalog.db --relation logs --type timestamp --value 2026-08-28T00:00:00Z --create\n")
	}

	flag.Parse()

	if catalogPath == "" || relation == "" || rawValue == "" {
		flag.Usage()
		os.Exit(2)
	}

	value, tid, err := parseValue(valueType, rawValue)
	if err != nil {
		log.Fatalf("invalid value: %v", err)
	}

	registry := typesys.NewRegistry()
	cat, err := catalog.NewSQLiteCatalog(catalogPath, registry)
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}
	defer cat.Close()

	delegate, err := catalog.NewAutoRangeDelegate(cat, registry, intervalWidth)
	if err != nil {
		log.Fatalf("build delegate: %v", err)
	}
	eng := engine.New(cat, delegate, registry, nil)

	ctx := context.Background()
	rel := types.RelationID(relation)

	if create {
		child, err := eng.FindOrCreate(ctx, rel, value, tid)
		if err != nil {
			log.Fatalf("route: %v", err)
		}
		fmt.Printf("child: %s\n", child)
		return
	}

	res, err := eng.RouteValue(ctx, rel, value, tid)
	if err != nil {
		log.Fatalf("route: %v", err)
	}

	switch res.Outcome {
	case routing.OutcomeFound:
		fmt.Printf("found: %s\n", res.Child)
		return
	case routing.OutcomeGap:
		d, err := eng.Describe(ctx, rel)
		if err != nil {
			log.Fatalf("describe: %v", err)
		}
		fmt.Printf("gap: between %s and %s\n",
			d.Ranges[res.Lower].ChildID, d.Ranges[res.Upper].ChildID)
	default:
		fmt.Printf("%s\n", res.Outcome)
	}
	os.Exit(1)
}

// parseValue converts a raw flag value into the engine's value encoding.
func parseValue(valueType, raw string) (types.Value, types.TypeID, error) {
	switch types.TypeID(valueType) {
	case types.TypeInt64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, "", err
		}
		return types.Int64Value(n), types.TypeInt64, nil
	case types.TypeFloat64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, "", err
		}
		return types.Float64Value(f), types.TypeFloat64, nil
	case types.TypeTimestamp:
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return types.TimestampValue(t), types.TypeTimestamp, nil
		}
		micros, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("timestamp must be RFC 3339 or integer microseconds")
		}
		return types.Int64Value(micros), types.TypeTimestamp, nil
	case types.TypeText:
		return types.TextValue(raw), types.TypeText, nil
	default:
		return nil, "", fmt.Errorf("unknown value type %q", valueType)
	}
}
