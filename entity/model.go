package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/adobe/spacecat-shared-sub005/store"
)

// Model is one entity instance. Types that need hand-written behavior embed
// *Model; their methods take precedence over the generic surface.
//
// Attribute reads and writes are not synchronized: concurrent Set calls on
// the same model race, and the last Save wins.
type Model struct {
	collection *Collection
	schema     *Schema
	registry   *Registry
	logger     *slog.Logger
	record     store.Record
	patcher    *Patcher

	mu        sync.Mutex
	accessors map[string]*Accessor
	cache     map[string]Result
}

func newModel(c *Collection, rec store.Record) *Model {
	if rec == nil {
		rec = store.Record{}
	}
	m := &Model{
		collection: c,
		schema:     c.schema,
		registry:   c.registry,
		logger:     c.logger,
		record:     rec,
		accessors:  make(map[string]*Accessor),
		cache:      make(map[string]Result),
	}
	m.patcher = NewPatcher(c.registry.driver, c.schema, rec)

	for _, ref := range m.schema.References() {
		configs, err := ref.ToAccessorConfigs(m.registry, m)
		if err != nil {
			m.logger.Warn("skipping reference accessors",
				"entity", m.schema.ModelName(),
				"target", ref.Target(),
				"error", err,
			)
			continue
		}
		for _, cfg := range configs {
			if err := CreateAccessor(cfg); err != nil {
				m.logger.Warn("failed to install accessor",
					"entity", m.schema.ModelName(),
					"accessor", cfg.Name,
					"error", err,
				)
			}
		}
	}
	return m
}

// Schema returns the model's schema.
func (m *Model) Schema() *Schema { return m.schema }

// Collection returns the collection the model belongs to.
func (m *Model) Collection() *Collection { return m.collection }

// ID returns the identity value.
func (m *Model) ID() string {
	s, _ := m.record[m.schema.IDName()].(string)
	return s
}

// CreatedAt returns the creation timestamp.
func (m *Model) CreatedAt() string {
	s, _ := m.record["createdAt"].(string)
	return s
}

// UpdatedAt returns the timestamp of the last successful write.
func (m *Model) UpdatedAt() string {
	s, _ := m.record["updatedAt"].(string)
	return s
}

// Get returns the value of an attribute, or nil.
func (m *Model) Get(name string) any {
	return m.record[name]
}

// Set stages a new attribute value. Identity and read-only attributes are
// rejected; foreign keys must be identities. Changing a foreign key drops
// cached accessor results.
func (m *Model) Set(name string, value any) (*Model, error) {
	if access, ok := m.schema.AccessPolicy(name); ok && access != AccessWritable {
		entity := m.schema.EntityName()
		return nil, validationErrorf(entity, name, "The property %s is read-only and cannot be updated.", name)
	}
	isReference := m.schema.IsForeignKey(name)
	if err := m.patcher.PatchValue(name, value, isReference); err != nil {
		return nil, err
	}
	if isReference {
		m.invalidate()
	}
	return m, nil
}

// Patcher returns the model's change tracker.
func (m *Model) Patcher() *Patcher { return m.patcher }

// Accessor returns the relationship accessor installed under name.
func (m *Model) Accessor(name string) (*Accessor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accessors[name]
	return a, ok
}

func (m *Model) setAccessor(a *Accessor) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accessors[a.Name()]; exists {
		return false
	}
	m.accessors[a.Name()] = a
	return true
}

// Call invokes a relationship accessor such as "getSite", "getWidgets" or
// "getWidgetsByUpdatedAt". Results of calls without arguments are cached
// until the next successful Save or Remove.
func (m *Model) Call(ctx context.Context, name string, args ...any) (Result, error) {
	a, ok := m.Accessor(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s on %s", ErrAccessorNotFound, name, m.schema.ModelName())
	}

	if len(args) == 0 {
		m.mu.Lock()
		r, hit := m.cache[name]
		m.mu.Unlock()
		if hit {
			return r, nil
		}
	}

	r, err := a.Invoke(ctx, args...)
	if err != nil {
		return Result{}, err
	}
	if len(args) == 0 {
		m.mu.Lock()
		m.cache[name] = r
		m.mu.Unlock()
	}
	return r, nil
}

// Dependents fetches the live targets of every has_many and has_one
// reference flagged for cascading removal.
func (m *Model) Dependents(ctx context.Context) ([]*Model, error) {
	var out []*Model
	for _, ref := range m.schema.References() {
		if ref.Type() == BelongsTo || !ref.RemoveDependents() {
			continue
		}
		a, ok := m.Accessor(ref.AccessorName())
		if !ok {
			m.logger.Warn("no accessor for dependent reference",
				"entity", m.schema.ModelName(),
				"target", ref.Target(),
			)
			continue
		}
		r, err := a.Invoke(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch %s dependents: %w", ref.Target(), err)
		}
		out = append(out, r.Models()...)
	}
	return out, nil
}

// Remove deletes the entity and, recursively, its dependents. All removals
// run concurrently; the first failure cancels the rest and is returned.
// Removals that already completed are not rolled back.
func (m *Model) Remove(ctx context.Context) (*Model, error) {
	m.logger.Info("removing entity",
		"entity", m.schema.ModelName(),
		"id", m.ID(),
	)

	dependents, err := m.Dependents(ctx)
	if err != nil {
		m.logger.Error("failed to remove record",
			"entity", m.schema.ModelName(),
			"id", m.ID(),
			"error", err,
		)
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range dependents {
		d := d
		g.Go(func() error {
			_, err := d.Remove(gctx)
			return err
		})
	}
	g.Go(func() error {
		return m.registry.driver.Delete(gctx, m.schema.EntityDef(), store.Record{m.schema.IDName(): m.ID()})
	})
	if err := g.Wait(); err != nil {
		m.logger.Error("failed to remove record",
			"entity", m.schema.ModelName(),
			"id", m.ID(),
			"dependents", len(dependents),
			"error", err,
		)
		return nil, err
	}

	m.invalidate()
	return m, nil
}

// Save persists staged changes.
func (m *Model) Save(ctx context.Context) (*Model, error) {
	if m.patcher.HasUpdates() {
		m.logger.Info("saving entity",
			"entity", m.schema.ModelName(),
			"id", m.ID(),
		)
	}
	if err := m.patcher.Save(ctx); err != nil {
		m.logger.Error("failed to save record",
			"entity", m.schema.ModelName(),
			"id", m.ID(),
			"error", err,
		)
		return nil, err
	}
	m.invalidate()
	return m, nil
}

// ToJSON returns a snapshot of every declared attribute present on the record.
func (m *Model) ToJSON() map[string]any {
	out := make(map[string]any)
	for name := range m.schema.raw.Attributes {
		if v, ok := m.record[name]; ok {
			out[name] = v
		}
	}
	return out
}

// MarshalJSON encodes ToJSON.
func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToJSON())
}

// Record returns a copy of the underlying record.
func (m *Model) Record() store.Record {
	return maps.Clone(m.record)
}

func (m *Model) invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.cache)
}
