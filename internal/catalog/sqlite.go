// Package catalog is the SQLite-backed reference implementation of the
// engine's descriptor source. It owns persistence of partitioning metadata;
// the routing engine itself only ever sees the immutable snapshots loaded
// here. Registration validates the range invariants (no overlap, min < max)
// before anything is written, so every snapshot the engine observes is valid
// by construction.
package catalog

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/partwise/partwise/internal/descriptor"
	"github.com/partwise/partwise/internal/errors"
	"github.com/partwise/partwise/internal/routing"
	"github.com/partwise/partwise/internal/typesys"
	"github.com/partwise/partwise/pkg/types"
)

// Catalog persists partitioning metadata and serves descriptor snapshots.
type Catalog interface {
	// LoadDescriptor returns a fresh snapshot of the relation's metadata.
	LoadDescriptor(ctx context.Context, rel types.RelationID) (*descriptor.Descriptor, error)

	// CreateRelation registers a new partitioned relation.
	CreateRelation(ctx context.Context, rel types.RelationID, strategy types.Strategy, attrType types.TypeID, hashPartitions uint32) error

	// RegisterRange attaches a range partition, rejecting overlaps.
	RegisterRange(ctx context.Context, rel types.RelationID, entry descriptor.RangeEntry) error

	// DetachRange removes a child partition's range entry.
	DetachRange(ctx context.Context, rel types.RelationID, child types.ChildID) error

	// ParentOf returns the relation a child partition belongs to.
	ParentOf(ctx context.Context, child types.ChildID) (types.RelationID, error)

	// Relations lists all registered relations.
	Relations(ctx context.Context) ([]types.RelationID, error)

	// Close closes the catalog database connections.
	Close() error
}

var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS relations (
		relation        TEXT PRIMARY KEY,
		strategy        TEXT NOT NULL,
		attr_type       TEXT NOT NULL,
		hash_partitions INTEGER NOT NULL DEFAULT 0,
		version         INTEGER NOT NULL DEFAULT 1,
		created_at      INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS range_entries (
		relation  TEXT NOT NULL REFERENCES relations(relation),
		child_id  TEXT NOT NULL,
		min_value BLOB NOT NULL,
		max_value BLOB NOT NULL,
		PRIMARY KEY (relation, child_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_range_entries_child ON range_entries(child_id)`,
	`CREATE INDEX IF NOT EXISTS idx_range_entries_relation ON range_entries(relation)`,
}

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db       *sql.DB // Write connection (single writer)
	readDB   *sql.DB // Read connection pool (concurrent readers)
	dbPath   string
	registry *typesys.Registry
	mu       sync.Mutex // Write-only lock (reads don't need this)
}

// NewSQLiteCatalog opens (or creates) a catalog database.
func NewSQLiteCatalog(dbPath string, registry *typesys.Registry) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.NewCatalogError(errors.CodeCatalogIO, "open catalog database", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)

	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		db.Close()
		return nil, errors.NewCatalogError(errors.CodeCatalogIO, "open catalog read pool", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	c := &SQLiteCatalog{
		db:       db,
		readDB:   readDB,
		dbPath:   dbPath,
		registry: registry,
	}
	if err := c.initSchema(); err != nil {
		readDB.Close()
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range schemaSQL {
		if _, err := c.db.Exec(stmt); err != nil {
			return errors.NewCatalogError(errors.CodeCatalogIO, "initialize catalog schema", err)
		}
	}
	return nil
}

// CreateRelation registers a new partitioned relation.
func (c *SQLiteCatalog) CreateRelation(ctx context.Context, rel types.RelationID, strategy types.Strategy, attrType types.TypeID, hashPartitions uint32) error {
	if strategy != types.StrategyRange && strategy != types.StrategyHash {
		return errors.Newf(errors.ErrCategoryDescriptor, errors.CodeWrongStrategy,
			"unknown strategy %q", strategy)
	}
	if strategy == types.StrategyHash && hashPartitions == 0 {
		return errors.NewRoutingError(errors.CodeInvalidPartitionCount,
			"hash relations need at least one partition")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO relations (relation, strategy, attr_type, hash_partitions, version, created_at)
		 VALUES (?, ?, ?, ?, 1, ?)`,
		string(rel), string(strategy), string(attrType), hashPartitions, time.Now().Unix())
	if err != nil {
		return errors.NewCatalogError(errors.CodeCatalogIO,
			fmt.Sprintf("create relation %s", rel), err)
	}
	return nil
}

// LoadDescriptor returns a fresh snapshot, ranges sorted ascending by min.
// Every call builds an independent descriptor; callers never share storage.
func (c *SQLiteCatalog) LoadDescriptor(ctx context.Context, rel types.RelationID) (*descriptor.Descriptor, error) {
	d := &descriptor.Descriptor{Relation: rel}

	var strategy, attrType string
	var hashPartitions uint32
	err := c.readDB.QueryRowContext(ctx,
		`SELECT strategy, attr_type, hash_partitions, version FROM relations WHERE relation = ?`,
		string(rel)).Scan(&strategy, &attrType, &hashPartitions, &d.Version)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrCategoryDescriptor, errors.CodeNotPartitioned,
			"relation %s is not partitioned", rel)
	}
	if err != nil {
		return nil, errors.NewCatalogError(errors.CodeCatalogIO,
			fmt.Sprintf("load relation %s", rel), err)
	}

	d.Strategy = types.Strategy(strategy)
	d.AttrType = types.TypeID(attrType)
	d.HashPartitions = hashPartitions

	if d.Strategy != types.StrategyRange {
		return d, nil
	}

	rows, err := c.readDB.QueryContext(ctx,
		`SELECT child_id, min_value, max_value FROM range_entries WHERE relation = ?`,
		string(rel))
	if err != nil {
		return nil, errors.NewCatalogError(errors.CodeCatalogIO,
			fmt.Sprintf("load ranges of %s", rel), err)
	}
	defer rows.Close()

	for rows.Next() {
		var child string
		var min, max []byte
		if err := rows.Scan(&child, &min, &max); err != nil {
			return nil, errors.NewCatalogError(errors.CodeCatalogIO,
				fmt.Sprintf("scan range of %s", rel), err)
		}
		d.Ranges = append(d.Ranges, descriptor.RangeEntry{
			ChildID: types.ChildID(child),
			Min:     types.Value(min),
			Max:     types.Value(max),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewCatalogError(errors.CodeCatalogIO,
			fmt.Sprintf("iterate ranges of %s", rel), err)
	}

	// BLOB ordering is not the attribute ordering in general, so sorting
	// happens here with the relation's comparator rather than in SQL.
	if err := c.sortRanges(d); err != nil {
		return nil, err
	}
	return d, nil
}

func (c *SQLiteCatalog) sortRanges(d *descriptor.Descriptor) error {
	cmp, err := c.registry.LookupComparator(d.AttrType, d.AttrType)
	if err != nil {
		return err
	}

	var sortErr error
	entries := d.Ranges
	// Insertion sort: range counts are small and entries arrive nearly
	// sorted from the index scan.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0; j-- {
			less, err := cmp(entries[j].Min, entries[j-1].Min)
			if err != nil {
				sortErr = err
				break
			}
			if less >= 0 {
				break
			}
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
		if sortErr != nil {
			return sortErr
		}
	}
	return nil
}

// RegisterRange attaches a range partition after validating that its
// interval is well-formed and does not overlap any registered range.
func (c *SQLiteCatalog) RegisterRange(ctx context.Context, rel types.RelationID, entry descriptor.RangeEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, err := c.LoadDescriptor(ctx, rel)
	if err != nil {
		return err
	}
	if d.Strategy != types.StrategyRange {
		return errors.Newf(errors.ErrCategoryDescriptor, errors.CodeWrongStrategy,
			"relation %s is not range partitioned", rel)
	}

	cmp, err := c.registry.LookupComparator(d.AttrType, d.AttrType)
	if err != nil {
		return err
	}

	wellFormed, err := cmp(entry.Min, entry.Max)
	if err != nil {
		return err
	}
	if wellFormed >= 0 {
		return errors.Newf(errors.ErrCategoryDescriptor, errors.CodeInvalidRange,
			"range for %s has min >= max", entry.ChildID)
	}

	overlaps, err := routing.Overlaps(d, cmp, cmp, entry.Min, entry.Max)
	if err != nil {
		return err
	}
	if overlaps {
		return errors.Newf(errors.ErrCategoryDescriptor, errors.CodeRangeOverlap,
			"range for %s overlaps an existing partition of %s", entry.ChildID, rel)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewCatalogError(errors.CodeCatalogIO, "begin register transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO range_entries (relation, child_id, min_value, max_value) VALUES (?, ?, ?, ?)`,
		string(rel), string(entry.ChildID), []byte(entry.Min), []byte(entry.Max)); err != nil {
		var sqlErr sqlite3.Error
		if stderrors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return errors.NewCatalogError(errors.CodeDuplicateChild,
				fmt.Sprintf("register range for %s", entry.ChildID), err)
		}
		return errors.NewCatalogError(errors.CodeCatalogIO,
			fmt.Sprintf("register range for %s", entry.ChildID), err)
	}
	if err := c.bumpVersion(ctx, tx, rel); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.NewCatalogError(errors.CodeCatalogIO, "commit register transaction", err)
	}
	return nil
}

// DetachRange removes a child partition's range entry.
func (c *SQLiteCatalog) DetachRange(ctx context.Context, rel types.RelationID, child types.ChildID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewCatalogError(errors.CodeCatalogIO, "begin detach transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM range_entries WHERE relation = ? AND child_id = ?`,
		string(rel), string(child))
	if err != nil {
		return errors.NewCatalogError(errors.CodeCatalogIO,
			fmt.Sprintf("detach %s", child), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewCatalogError(errors.CodeCatalogIO, "detach rows affected", err)
	}
	if affected == 0 {
		return errors.Newf(errors.ErrCategoryRouting, errors.CodeNoSuchPartition,
			"relation %s has no partition %s", rel, child)
	}

	if err := c.bumpVersion(ctx, tx, rel); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.NewCatalogError(errors.CodeCatalogIO, "commit detach transaction", err)
	}
	return nil
}

// ParentOf returns the relation a child partition belongs to.
func (c *SQLiteCatalog) ParentOf(ctx context.Context, child types.ChildID) (types.RelationID, error) {
	var rel string
	err := c.readDB.QueryRowContext(ctx,
		`SELECT relation FROM range_entries WHERE child_id = ?`, string(child)).Scan(&rel)
	if err == sql.ErrNoRows {
		return "", errors.Newf(errors.ErrCategoryRouting, errors.CodeNoSuchPartition,
			"%s is not a registered partition", child)
	}
	if err != nil {
		return "", errors.NewCatalogError(errors.CodeCatalogIO,
			fmt.Sprintf("look up parent of %s", child), err)
	}
	return types.RelationID(rel), nil
}

// Relations lists all registered relations.
func (c *SQLiteCatalog) Relations(ctx context.Context) ([]types.RelationID, error) {
	rows, err := c.readDB.QueryContext(ctx, `SELECT relation FROM relations ORDER BY relation`)
	if err != nil {
		return nil, errors.NewCatalogError(errors.CodeCatalogIO, "list relations", err)
	}
	defer rows.Close()

	var out []types.RelationID
	for rows.Next() {
		var rel string
		if err := rows.Scan(&rel); err != nil {
			return nil, errors.NewCatalogError(errors.CodeCatalogIO, "scan relation", err)
		}
		out = append(out, types.RelationID(rel))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewCatalogError(errors.CodeCatalogIO, "iterate relations", err)
	}
	return out, nil
}

func (c *SQLiteCatalog) bumpVersion(ctx context.Context, tx *sql.Tx, rel types.RelationID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE relations SET version = version + 1 WHERE relation = ?`, string(rel))
	if err != nil {
		return errors.NewCatalogError(errors.CodeCatalogIO,
			fmt.Sprintf("bump version of %s", rel), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewCatalogError(errors.CodeCatalogIO, "version rows affected", err)
	}
	if affected == 0 {
		return errors.Newf(errors.ErrCategoryCatalog, errors.CodeUnknownRelation,
			"relation %s does not exist", rel)
	}
	return nil
}

// Close closes the catalog database connections.
func (c *SQLiteCatalog) Close() error {
	if err := c.readDB.Close(); err != nil {
		c.db.Close()
		return err
	}
	return c.db.Close()
}
