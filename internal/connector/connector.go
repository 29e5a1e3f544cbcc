// Package connector owns the read-only execution paths into the federated
// databases and their schema introspection.
package connector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/queryfed/queryfed/internal/models"
)

// Connector executes read-only SQL against one database and can snapshot
// its schema. Implementations enforce their own timeout and row cap.
type Connector interface {
	DatabaseID() string
	Dialect() string
	ExecuteReadOnly(ctx context.Context, sql string, maxRows int, timeout time.Duration) (*models.QueryExecutionResult, error)
	Snapshot(ctx context.Context) (*models.SchemaSnapshot, error)
	Ping(ctx context.Context) error
	Close() error
}

// Limits are one connection's configured execution caps. Zero values mean
// no cap beyond the caller's own bounds.
type Limits struct {
	MaxRows int
	Timeout time.Duration
}

// Registry holds the configured connectors keyed by database id.
type Registry struct {
	byID   map[string]Connector
	limits map[string]Limits
	order  []string
}

func NewRegistry(conns ...Connector) *Registry {
	r := &Registry{
		byID:   make(map[string]Connector, len(conns)),
		limits: make(map[string]Limits, len(conns)),
	}
	for _, c := range conns {
		r.byID[c.DatabaseID()] = c
		r.order = append(r.order, c.DatabaseID())
	}
	return r
}

// SetLimits records the execution caps of one registered connection.
func (r *Registry) SetLimits(databaseID string, l Limits) {
	r.limits[databaseID] = l
}

// LimitsFor returns the caps configured for a database, zero when none.
func (r *Registry) LimitsFor(databaseID string) Limits {
	return r.limits[databaseID]
}

func (r *Registry) Get(databaseID string) (Connector, error) {
	c, ok := r.byID[databaseID]
	if !ok {
		return nil, fmt.Errorf("no connector registered for database %q", databaseID)
	}
	return c, nil
}

// All returns the connectors in registration order.
func (r *Registry) All() []Connector {
	out := make([]Connector, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns the registered database ids, sorted.
func (r *Registry) IDs() []string {
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	return ids
}

// Close closes every connector, returning the first error.
func (r *Registry) Close() error {
	var first error
	for _, c := range r.byID {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
