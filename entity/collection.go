package entity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/adobe/spacecat-shared-sub005/internal/naming"
	"github.com/adobe/spacecat-shared-sub005/store"
)

// maxConcurrentWrites bounds the fan-out of CreateMany and RemoveByIDs.
const maxConcurrentWrites = 10

// Collection queries and creates the entities of one schema.
type Collection struct {
	registry *Registry
	schema   *Schema
	logger   *slog.Logger

	mu        sync.RWMutex
	accessors map[string]*Accessor
}

func newCollection(r *Registry, s *Schema) *Collection {
	c := &Collection{
		registry:  r,
		schema:    s,
		logger:    r.logger,
		accessors: make(map[string]*Accessor),
	}

	for _, ia := range s.IndexAccessors() {
		for _, keys := range ia.KeySets {
			for _, cfg := range []AccessorConfig{
				{Name: naming.KeyNamesToMethodName(keys, "allBy"), All: true},
				{Name: naming.KeyNamesToMethodName(keys, "findBy")},
			} {
				cfg.Collection = c
				cfg.Context = c
				cfg.RequiredKeys = keys
				cfg.Index = ia.IndexName
				if err := CreateAccessor(cfg); err != nil {
					c.logger.Warn("failed to install index accessor",
						"collection", s.CollectionName(),
						"accessor", cfg.Name,
						"error", err,
					)
				}
			}
		}
	}
	return c
}

// Schema returns the collection's schema.
func (c *Collection) Schema() *Schema { return c.schema }

// Registry returns the registry the collection belongs to.
func (c *Collection) Registry() *Registry { return c.registry }

// EntityDef returns the store layout of the collection's entity.
func (c *Collection) EntityDef() *store.EntityDef { return c.schema.EntityDef() }

// Accessor returns the accessor installed under name.
func (c *Collection) Accessor(name string) (*Accessor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.accessors[name]
	return a, ok
}

func (c *Collection) setAccessor(a *Accessor) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.accessors[a.Name()]; exists {
		return false
	}
	c.accessors[a.Name()] = a
	return true
}

// Call invokes an index accessor such as "allBySiteId" or "findBySiteIdAndStatus".
func (c *Collection) Call(ctx context.Context, name string, args ...any) (Result, error) {
	a, ok := c.Accessor(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s on %s", ErrAccessorNotFound, name, c.schema.CollectionName())
	}
	return a.Invoke(ctx, args...)
}

// NewModel wraps a record of this collection's entity without touching the store.
func (c *Collection) NewModel(rec store.Record) *Model {
	return newModel(c, rec)
}

// FindByID returns the entity with the given identity, or nil if none exists.
func (c *Collection) FindByID(ctx context.Context, id string) (*Model, error) {
	entity := c.schema.EntityName()
	if !isUUID(id) {
		return nil, validationErrorf(entity, c.schema.IDName(), "Validation failed in %s: %s must be a valid UUID", entity, c.schema.IDName())
	}

	rec, err := c.registry.driver.Get(ctx, c.EntityDef(), store.Record{c.schema.IDName(): id})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.NewModel(rec), nil
}

// FindByIndexKeys returns the first entity matching keys, or nil.
func (c *Collection) FindByIndexKeys(ctx context.Context, keys store.Record, opts ...store.QueryOptions) (*Model, error) {
	o := firstOptions(opts)
	o.Limit = 1
	models, err := c.AllByIndexKeys(ctx, keys, o)
	if err != nil || len(models) == 0 {
		return nil, err
	}
	return models[0], nil
}

// AllByIndexKeys returns every entity matching keys.
func (c *Collection) AllByIndexKeys(ctx context.Context, keys store.Record, opts ...store.QueryOptions) ([]*Model, error) {
	if len(keys) == 0 {
		entity := c.schema.EntityName()
		return nil, validationErrorf(entity, "", "Validation failed in %s: keys are required", entity)
	}

	recs, err := c.registry.driver.Query(ctx, c.EntityDef(), maps.Clone(keys), firstOptions(opts))
	if err != nil {
		return nil, err
	}
	models := make([]*Model, len(recs))
	for i, rec := range recs {
		models[i] = c.NewModel(rec)
	}
	return models, nil
}

// Create validates item, fills defaults and writes a new entity.
func (c *Collection) Create(ctx context.Context, item store.Record) (*Model, error) {
	rec, err := c.prepare(item)
	if err != nil {
		return nil, err
	}
	if err := c.registry.driver.Put(ctx, c.EntityDef(), rec); err != nil {
		return nil, err
	}
	return c.NewModel(rec), nil
}

// CreateMany validates every item before writing any, then writes them
// concurrently. Items written before a failure stay written.
func (c *Collection) CreateMany(ctx context.Context, items []store.Record) ([]*Model, error) {
	recs := make([]store.Record, len(items))
	for i, item := range items {
		rec, err := c.prepare(item)
		if err != nil {
			return nil, err
		}
		recs[i] = rec
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentWrites)
	for _, rec := range recs {
		rec := rec
		g.Go(func() error {
			return c.registry.driver.Put(gctx, c.EntityDef(), rec)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	models := make([]*Model, len(recs))
	for i, rec := range recs {
		models[i] = c.NewModel(rec)
	}
	return models, nil
}

// RemoveByIDs removes entities by identity. Dependents are not cascaded.
func (c *Collection) RemoveByIDs(ctx context.Context, ids []string) error {
	entity := c.schema.EntityName()
	for _, id := range ids {
		if !isUUID(id) {
			return validationErrorf(entity, c.schema.IDName(), "Validation failed in %s: %s must be a valid UUID", entity, c.schema.IDName())
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentWrites)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			return c.registry.driver.Delete(gctx, c.EntityDef(), store.Record{c.schema.IDName(): id})
		})
	}
	return g.Wait()
}

// prepare applies defaults and checks every attribute of a new record.
func (c *Collection) prepare(item store.Record) (store.Record, error) {
	entity := c.schema.EntityName()
	rec := maps.Clone(item)
	if rec == nil {
		rec = store.Record{}
	}

	for name := range rec {
		if _, ok := c.schema.Attribute(name); !ok {
			return nil, validationErrorf(entity, name, "Property %s does not exist on entity %s.", name, entity)
		}
	}

	for _, name := range c.schema.AttributeNames() {
		attr, _ := c.schema.Attribute(name)
		if _, ok := rec[name]; !ok && attr.Default != nil {
			rec[name] = attr.Default()
		}
		v := rec[name]
		if err := guardValue(entity, name, attr, v, false); err != nil {
			return nil, err
		}
		if v != nil && attr.Validate != nil && !attr.Validate(v) {
			return nil, validationErrorf(entity, name, "Validation failed in %s: %s is invalid", entity, name)
		}
	}
	return rec, nil
}

func firstOptions(opts []store.QueryOptions) store.QueryOptions {
	if len(opts) == 0 {
		return store.QueryOptions{}
	}
	return opts[0]
}
