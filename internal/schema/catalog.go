// Package schema supplies per-database schema snapshots to the analyzer and
// synthesizer. Snapshots are read-only here; refresh belongs to the catalog.
package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/queryfed/queryfed/internal/models"
)

// Catalog is the schema supply contract consumed by the pipeline.
type Catalog interface {
	GetSchema(ctx context.Context, databaseID string) (*models.SchemaSnapshot, error)
	GetAllSchemas(ctx context.Context) ([]*models.SchemaSnapshot, error)
}

// Snapshotter produces a schema snapshot for one database. Connectors
// implement this next to their execution duties.
type Snapshotter interface {
	DatabaseID() string
	Snapshot(ctx context.Context) (*models.SchemaSnapshot, error)
}

// StaticCatalog serves pre-built snapshots, used for config-declared
// schemas and tests.
type StaticCatalog struct {
	snapshots map[string]*models.SchemaSnapshot
}

func NewStaticCatalog(snapshots ...*models.SchemaSnapshot) *StaticCatalog {
	m := make(map[string]*models.SchemaSnapshot, len(snapshots))
	for _, s := range snapshots {
		m[s.DatabaseID] = s
	}
	return &StaticCatalog{snapshots: m}
}

func (c *StaticCatalog) GetSchema(_ context.Context, databaseID string) (*models.SchemaSnapshot, error) {
	s, ok := c.snapshots[databaseID]
	if !ok {
		return nil, fmt.Errorf("unknown database %q", databaseID)
	}
	return s, nil
}

func (c *StaticCatalog) GetAllSchemas(_ context.Context) ([]*models.SchemaSnapshot, error) {
	ids := make([]string, 0, len(c.snapshots))
	for id := range c.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*models.SchemaSnapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.snapshots[id])
	}
	return out, nil
}

// ConnectorCatalog builds snapshots by introspecting live connections.
type ConnectorCatalog struct {
	sources map[string]Snapshotter
	order   []string
}

func NewConnectorCatalog(sources ...Snapshotter) *ConnectorCatalog {
	c := &ConnectorCatalog{sources: make(map[string]Snapshotter, len(sources))}
	for _, s := range sources {
		c.sources[s.DatabaseID()] = s
		c.order = append(c.order, s.DatabaseID())
	}
	return c
}

func (c *ConnectorCatalog) GetSchema(ctx context.Context, databaseID string) (*models.SchemaSnapshot, error) {
	s, ok := c.sources[databaseID]
	if !ok {
		return nil, fmt.Errorf("unknown database %q", databaseID)
	}
	return s.Snapshot(ctx)
}

func (c *ConnectorCatalog) GetAllSchemas(ctx context.Context) ([]*models.SchemaSnapshot, error) {
	out := make([]*models.SchemaSnapshot, 0, len(c.order))
	for _, id := range c.order {
		snap, err := c.sources[id].Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", id, err)
		}
		out = append(out, snap)
	}
	return out, nil
}
