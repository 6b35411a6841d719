package entity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/adobe/spacecat-shared-sub005/internal/naming"
	"github.com/adobe/spacecat-shared-sub005/store"
)

// Driver is the store surface the runtime needs. *store.Store implements it.
type Driver interface {
	Get(ctx context.Context, def *store.EntityDef, key store.Record) (store.Record, error)
	Query(ctx context.Context, def *store.EntityDef, keys store.Record, opts store.QueryOptions) ([]store.Record, error)
	Put(ctx context.Context, def *store.EntityDef, rec store.Record) error
	Patch(ctx context.Context, def *store.EntityDef, p *store.Patch) (store.Record, error)
	Delete(ctx context.Context, def *store.EntityDef, key store.Record) error
}

var _ Driver = (*store.Store)(nil)

// Definitions holds every schema known to the application.
// Build it once during bootstrap and hand it to NewRegistry.
type Definitions struct {
	schemas      []*Schema
	byCollection map[string]*Schema
}

// NewDefinitions creates an empty set of definitions.
func NewDefinitions() *Definitions {
	return &Definitions{
		byCollection: make(map[string]*Schema),
	}
}

// Register adds a schema. Collection names must be unique.
func (d *Definitions) Register(s *Schema) error {
	if s == nil {
		return configErrorf("schema is required")
	}
	if _, dup := d.byCollection[s.CollectionName()]; dup {
		return configErrorf("collection %s is already registered", s.CollectionName())
	}
	d.schemas = append(d.schemas, s)
	d.byCollection[s.CollectionName()] = s
	return nil
}

// Schemas returns the registered schemas in registration order.
func (d *Definitions) Schemas() []*Schema {
	out := make([]*Schema, len(d.schemas))
	copy(out, d.schemas)
	return out
}

// Entities returns the registered schemas keyed by entity name ("site").
func (d *Definitions) Entities() map[string]*Schema {
	out := make(map[string]*Schema, len(d.schemas))
	for _, s := range d.schemas {
		out[s.EntityName()] = s
	}
	return out
}

// Registry binds every registered schema to one store connection.
// Its collections are fixed at construction; it is safe for concurrent use.
type Registry struct {
	driver      Driver
	logger      *slog.Logger
	collections map[string]*Collection
	byEntity    map[string]*Collection

	mu          sync.Mutex
	reciprocals map[*Reference]*Reference
}

// NewRegistry builds one Collection per schema in defs.
func NewRegistry(driver Driver, defs *Definitions, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		driver:      driver,
		logger:      logger,
		collections: make(map[string]*Collection),
		byEntity:    make(map[string]*Collection),
		reciprocals: make(map[*Reference]*Reference),
	}
	if defs == nil {
		return r
	}
	for _, s := range defs.schemas {
		c := newCollection(r, s)
		r.collections[s.CollectionName()] = c
		r.byEntity[s.EntityDef().Entity] = c
	}
	return r
}

// Logger returns the logger shared by collections and models.
func (r *Registry) Logger() *slog.Logger {
	return r.logger
}

// GetCollection returns the collection registered under name ("SiteCollection").
func (r *Registry) GetCollection(name string) (*Collection, error) {
	c, ok := r.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

// GetCollections returns every collection keyed by entity name ("Site").
func (r *Registry) GetCollections() map[string]*Collection {
	out := make(map[string]*Collection, len(r.collections))
	for name, c := range r.collections {
		out[naming.CollectionNameToEntityName(name)] = c
	}
	return out
}

// CollectionForEntity returns the collection whose items carry the given
// entity marker.
func (r *Registry) CollectionForEntity(entity string) (*Collection, error) {
	c, ok := r.byEntity[entity]
	if !ok {
		return nil, fmt.Errorf("%w: entity %s", ErrCollectionNotFound, entity)
	}
	return c, nil
}

// reciprocalOf memoizes s.ReciprocalReference(r, ref). first is true only
// for the call that resolved it.
func (r *Registry) reciprocalOf(s *Schema, ref *Reference) (reciprocal *Reference, first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reciprocal, ok := r.reciprocals[ref]; ok {
		return reciprocal, false
	}
	reciprocal = s.ReciprocalReference(r, ref)
	r.reciprocals[ref] = reciprocal
	return reciprocal, true
}

// DependentsOf returns the references of a collection's schema flagged for
// cascading removal.
func (r *Registry) DependentsOf(collectionName string) []*Reference {
	c, ok := r.collections[collectionName]
	if !ok {
		return nil
	}
	var out []*Reference
	for _, ref := range c.schema.References() {
		if ref.Type() != BelongsTo && ref.RemoveDependents() {
			out = append(out, ref)
		}
	}
	return out
}

// HasDependents reports whether removing an entity of the collection cascades.
func (r *Registry) HasDependents(collectionName string) bool {
	return len(r.DependentsOf(collectionName)) > 0
}
