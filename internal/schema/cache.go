package schema

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/queryfed/queryfed/internal/models"
)

// CachedCatalog wraps another catalog with a TTL cache. Concurrent misses
// for the same database share one underlying fetch via singleflight, so a
// burst of requests costs a single introspection round-trip.
type CachedCatalog struct {
	inner Catalog
	ttl   time.Duration

	mu    sync.RWMutex
	store map[string]cacheEntry
	sf    singleflight.Group

	now func() time.Time // overridable in tests
}

type cacheEntry struct {
	snap      *models.SchemaSnapshot
	expiresAt time.Time
}

func NewCachedCatalog(inner Catalog, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		inner: inner,
		ttl:   ttl,
		store: make(map[string]cacheEntry),
		now:   time.Now,
	}
}

func (c *CachedCatalog) GetSchema(ctx context.Context, databaseID string) (*models.SchemaSnapshot, error) {
	if snap, ok := c.get(databaseID); ok {
		log.Debug().Str("database", databaseID).Msg("schema cache hit")
		return snap, nil
	}

	v, err, _ := c.sf.Do(databaseID, func() (interface{}, error) {
		// Another goroutine may have filled the slot while we queued.
		if snap, ok := c.get(databaseID); ok {
			return snap, nil
		}
		start := c.now()
		snap, err := c.inner.GetSchema(ctx, databaseID)
		if err != nil {
			return nil, err
		}
		c.set(databaseID, snap)
		log.Info().
			Str("database", databaseID).
			Int("tables", len(snap.Tables)).
			Dur("fetch", c.now().Sub(start)).
			Msg("schema cached")
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.SchemaSnapshot), nil
}

func (c *CachedCatalog) GetAllSchemas(ctx context.Context) ([]*models.SchemaSnapshot, error) {
	ids, err := c.databaseIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.SchemaSnapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := c.GetSchema(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Invalidate drops one database's cached snapshot so the next read
// re-introspects.
func (c *CachedCatalog) Invalidate(databaseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, databaseID)
}

func (c *CachedCatalog) get(databaseID string) (*models.SchemaSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[databaseID]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.snap, true
}

func (c *CachedCatalog) set(databaseID string, snap *models.SchemaSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[databaseID] = cacheEntry{snap: snap, expiresAt: c.now().Add(c.ttl)}
}

// databaseIDs asks the inner catalog for the full set once, then relies on
// cached per-database reads.
func (c *CachedCatalog) databaseIDs(ctx context.Context) ([]string, error) {
	if cc, ok := c.inner.(*ConnectorCatalog); ok {
		return append([]string(nil), cc.order...), nil
	}
	snaps, err := c.inner.GetAllSchemas(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(snaps))
	for i, s := range snaps {
		ids[i] = s.DatabaseID
		c.set(s.DatabaseID, s)
	}
	return ids, nil
}
