package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/golang/snappy"
	"golang.org/x/sync/errgroup"

	"github.com/partwise/partwise/internal/catalog"
	"github.com/partwise/partwise/internal/descriptor"
	"github.com/partwise/partwise/internal/errors"
	"github.com/partwise/partwise/pkg/types"
)

// snapshotVersion guards the wire format. Bump on incompatible changes.
const snapshotVersion = 1

// Snapshot is the archived form of one relation's partitioning metadata.
type Snapshot struct {
	FormatVersion  int             `json:"format_version"`
	Relation       string          `json:"relation"`
	Strategy       string          `json:"strategy"`
	AttrType       string          `json:"attr_type"`
	HashPartitions uint32          `json:"hash_partitions,omitempty"`
	CatalogVersion uint64          `json:"catalog_version"`
	ExportedAt     time.Time       `json:"exported_at"`
	Ranges         []SnapshotRange `json:"ranges,omitempty"`
}

// SnapshotRange is one archived range entry. Min and Max carry the raw
// value encoding and marshal as base64.
type SnapshotRange struct {
	ChildID string `json:"child_id"`
	Min     []byte `json:"min"`
	Max     []byte `json:"max"`
}

// encodeSnapshot marshals and snappy-compresses a snapshot.
func encodeSnapshot(s *Snapshot) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, errors.NewArchiveError(errors.CodeExportFailed, "marshal snapshot", err)
	}
	return snappy.Encode(nil, raw), nil
}

// decodeSnapshot decompresses and unmarshals a snapshot, checking the
// format version.
func decodeSnapshot(data []byte) (*Snapshot, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.NewArchiveError(errors.CodeImportFailed, "decompress snapshot", err)
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.NewArchiveError(errors.CodeImportFailed, "unmarshal snapshot", err)
	}
	if s.FormatVersion != snapshotVersion {
		return nil, errors.Newf(errors.ErrCategoryArchive, errors.CodeImportFailed,
			"unsupported snapshot format version %d", s.FormatVersion)
	}
	return &s, nil
}

// Archiver exports catalog snapshots to an object store and restores them.
type Archiver struct {
	catalog catalog.Catalog
	store   ObjectStore
	prefix  string
}

// NewArchiver builds an archiver writing under the given key prefix.
func NewArchiver(cat catalog.Catalog, store ObjectStore, prefix string) *Archiver {
	return &Archiver{catalog: cat, store: store, prefix: prefix}
}

func (a *Archiver) key(rel types.RelationID) string {
	return path.Join(a.prefix, string(rel)+".snapshot")
}

// ExportRelation archives one relation's current descriptor.
func (a *Archiver) ExportRelation(ctx context.Context, rel types.RelationID) error {
	d, err := a.catalog.LoadDescriptor(ctx, rel)
	if err != nil {
		return err
	}

	s := &Snapshot{
		FormatVersion:  snapshotVersion,
		Relation:       string(d.Relation),
		Strategy:       string(d.Strategy),
		AttrType:       string(d.AttrType),
		HashPartitions: d.HashPartitions,
		CatalogVersion: d.Version,
		ExportedAt:     time.Now().UTC(),
	}
	for _, r := range d.Ranges {
		s.Ranges = append(s.Ranges, SnapshotRange{
			ChildID: string(r.ChildID),
			Min:     []byte(r.Min),
			Max:     []byte(r.Max),
		})
	}

	data, err := encodeSnapshot(s)
	if err != nil {
		return err
	}
	if err := a.store.Put(ctx, a.key(rel), data); err != nil {
		return errors.NewArchiveError(errors.CodeExportFailed,
			fmt.Sprintf("store snapshot of %s", rel), err)
	}
	return nil
}

// ExportAll archives every relation in the catalog, a few at a time.
func (a *Archiver) ExportAll(ctx context.Context) error {
	rels, err := a.catalog.Relations(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, rel := range rels {
		rel := rel
		g.Go(func() error {
			return a.ExportRelation(gctx, rel)
		})
	}
	return g.Wait()
}

// LoadSnapshot reads a relation's archived snapshot without touching the
// catalog.
func (a *Archiver) LoadSnapshot(ctx context.Context, rel types.RelationID) (*Snapshot, error) {
	data, err := a.store.Get(ctx, a.key(rel))
	if err != nil {
		return nil, errors.NewArchiveError(errors.CodeImportFailed,
			fmt.Sprintf("fetch snapshot of %s", rel), err)
	}
	return decodeSnapshot(data)
}

// ListArchived returns the relations that have a snapshot in the store.
func (a *Archiver) ListArchived(ctx context.Context) ([]types.RelationID, error) {
	keys, err := a.store.List(ctx, a.prefix)
	if err != nil {
		return nil, errors.NewArchiveError(errors.CodeImportFailed, "list snapshots", err)
	}
	var rels []types.RelationID
	for _, k := range keys {
		base := path.Base(k)
		if !strings.HasSuffix(base, ".snapshot") {
			continue
		}
		rels = append(rels, types.RelationID(strings.TrimSuffix(base, ".snapshot")))
	}
	return rels, nil
}

// Restore recreates a relation from its snapshot. The relation must not
// already exist in the catalog.
func (a *Archiver) Restore(ctx context.Context, rel types.RelationID) error {
	s, err := a.LoadSnapshot(ctx, rel)
	if err != nil {
		return err
	}

	err = a.catalog.CreateRelation(ctx, types.RelationID(s.Relation),
		types.Strategy(s.Strategy), types.TypeID(s.AttrType), s.HashPartitions)
	if err != nil {
		return err
	}
	for _, r := range s.Ranges {
		entry := descriptor.RangeEntry{
			ChildID: types.ChildID(r.ChildID),
			Min:     types.Value(r.Min),
			Max:     types.Value(r.Max),
		}
		if err := a.catalog.RegisterRange(ctx, types.RelationID(s.Relation), entry); err != nil {
			return err
		}
	}
	return nil
}
