package entity_test

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adobe/spacecat-shared-sub005/entity"
	"github.com/adobe/spacecat-shared-sub005/store"
)

const (
	siteID    = "5d6d4439-6659-46c2-b646-92d110fa5a52"
	otherSite = "78fec9c7-2141-4600-b7b1-ea5c78752b91"
	widgetA   = "0d5a1f8c-7b8c-4f2d-9b1a-3c4e5f6a7b81"
	widgetB   = "1e6b2a9d-8c9d-4a3e-8c2b-4d5f6a7b8c92"
	widgetC   = "2f7c3bae-9dae-4b4f-9d3c-5e6a7b8c9da3"
)

// memDriver is an in-memory entity.Driver. Queries match keys by equality.
type memDriver struct {
	mu    sync.Mutex
	items map[string]map[string]store.Record

	gets, queries, puts, patches int
	deleted                      []string
	lastQuery                    store.QueryOptions
	lastPatch                    *store.Patch

	patchErr   error
	deleteErrs map[string]error
}

func newMemDriver() *memDriver {
	return &memDriver{
		items:      map[string]map[string]store.Record{},
		deleteErrs: map[string]error{},
	}
}

func primaryID(def *store.EntityDef, rec store.Record) string {
	idx, _ := def.Primary()
	return fmt.Sprint(rec[idx.PK.Facets[0]])
}

func (d *memDriver) Get(_ context.Context, def *store.EntityDef, key store.Record) (store.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gets++
	rec, ok := d.items[def.Entity][primaryID(def, key)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return maps.Clone(rec), nil
}

func (d *memDriver) Query(_ context.Context, def *store.EntityDef, keys store.Record, opts store.QueryOptions) ([]store.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries++
	d.lastQuery = opts

	var out []store.Record
	for _, id := range sortedKeys(d.items[def.Entity]) {
		rec := d.items[def.Entity][id]
		match := true
		for k, v := range keys {
			if fmt.Sprint(rec[k]) != fmt.Sprint(v) {
				match = false
				break
			}
		}
		if match {
			out = append(out, maps.Clone(rec))
		}
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (d *memDriver) Put(_ context.Context, def *store.EntityDef, rec store.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.puts++
	id := primaryID(def, rec)
	if _, ok := d.items[def.Entity][id]; ok {
		return store.ErrAlreadyExists
	}
	if d.items[def.Entity] == nil {
		d.items[def.Entity] = map[string]store.Record{}
	}
	d.items[def.Entity][id] = maps.Clone(rec)
	return nil
}

func (d *memDriver) Patch(_ context.Context, def *store.EntityDef, p *store.Patch) (store.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patches++
	d.lastPatch = p
	if d.patchErr != nil {
		return nil, d.patchErr
	}
	id := primaryID(def, p.Key())
	rec, ok := d.items[def.Entity][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	written := p.Updates()
	for name, compute := range def.Computed {
		if _, ok := written[name]; !ok {
			written[name] = compute()
		}
	}
	maps.Copy(rec, written)
	return written, nil
}

func (d *memDriver) Delete(_ context.Context, def *store.EntityDef, key store.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := primaryID(def, key)
	if err := d.deleteErrs[id]; err != nil {
		return err
	}
	d.deleted = append(d.deleted, id)
	delete(d.items[def.Entity], id)
	return nil
}

func (d *memDriver) seed(entityName string, rec store.Record, idName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.items[entityName] == nil {
		d.items[entityName] = map[string]store.Record{}
	}
	d.items[entityName][fmt.Sprint(rec[idName])] = maps.Clone(rec)
}

func (d *memDriver) counts() (gets, queries int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gets, d.queries
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustSchema(t *testing.T, model string, b *entity.SchemaBuilder) *entity.Schema {
	t.Helper()
	raw, err := b.Build()
	require.NoError(t, err)
	s, err := entity.NewSchema(model, model+"Collection", raw)
	require.NoError(t, err)
	return s
}

func newBuilder(t *testing.T, name string) *entity.SchemaBuilder {
	t.Helper()
	b, err := entity.NewSchemaBuilder(name, 1, "SpaceCat")
	require.NoError(t, err)
	return b
}

// siteSchema: Site has many Widgets (cascading) and Gadgets, and one Profile.
func siteSchema(t *testing.T) *entity.Schema {
	return mustSchema(t, "Site", newBuilder(t, "Site").
		AddAttribute("baseURL", entity.Attribute{Type: entity.TypeString, Required: true}).
		AddReference(entity.HasMany, "Widget", entity.WithRemoveDependents()).
		AddReference(entity.HasMany, "Gadget").
		AddReference(entity.HasOne, "Profile", entity.WithRemoveDependents()).
		AddReference(entity.HasMany, "Orphan"))
}

func widgetSchema(t *testing.T) *entity.Schema {
	return mustSchema(t, "Widget", newBuilder(t, "Widget").
		AddAttribute("name", entity.Attribute{Type: entity.TypeString, Required: true}).
		AddAttribute("status", entity.Attribute{Type: entity.TypeEnum, Enum: []string{"NEW", "DONE"}}).
		AddAttribute("count", entity.Attribute{Type: entity.TypeNumber}).
		AddAttribute("tags", entity.Attribute{Type: entity.TypeList}).
		AddAttribute("meta", entity.Attribute{Type: entity.TypeMap}).
		AddReference(entity.BelongsTo, "Site"))
}

func gadgetSchema(t *testing.T) *entity.Schema {
	return mustSchema(t, "Gadget", newBuilder(t, "Gadget").
		AddAttribute("status", entity.Attribute{Type: entity.TypeString}).
		AddAttribute("name", entity.Attribute{Type: entity.TypeString}).
		AddAttribute("rank", entity.Attribute{Type: entity.TypeNumber}).
		AddReference(entity.BelongsTo, "Site", entity.WithSortKeys("status", "name", "updatedAt")))
}

func profileSchema(t *testing.T) *entity.Schema {
	return mustSchema(t, "Profile", newBuilder(t, "Profile").
		AddAttribute("bio", entity.Attribute{Type: entity.TypeString}).
		AddReference(entity.BelongsTo, "Site", entity.WithSortKeys()))
}

// orphanSchema declares no belongs_to back to Site.
func orphanSchema(t *testing.T) *entity.Schema {
	return mustSchema(t, "Orphan", newBuilder(t, "Orphan").
		AddAttribute("siteId", entity.Attribute{Type: entity.TypeString}))
}

func newTestRegistry(t *testing.T) (*entity.Registry, *memDriver) {
	t.Helper()
	d := newMemDriver()
	return newRegistry(t, d, discardLogger(), fixtureSchemas(t)...), d
}

func fixtureSchemas(t *testing.T) []*entity.Schema {
	return []*entity.Schema{siteSchema(t), widgetSchema(t), gadgetSchema(t), profileSchema(t), orphanSchema(t)}
}

func newRegistry(t *testing.T, d entity.Driver, logger *slog.Logger, schemas ...*entity.Schema) *entity.Registry {
	t.Helper()
	defs := entity.NewDefinitions()
	for _, s := range schemas {
		require.NoError(t, defs.Register(s))
	}
	return entity.NewRegistry(d, defs, logger)
}

func collection(t *testing.T, reg *entity.Registry, name string) *entity.Collection {
	t.Helper()
	c, err := reg.GetCollection(name)
	require.NoError(t, err)
	return c
}

func siteRecord() store.Record {
	return store.Record{
		"siteId":    siteID,
		"baseURL":   "https://example.com",
		"createdAt": "2024-01-01T00:00:00.000Z",
		"updatedAt": "2024-01-01T00:00:00.000Z",
	}
}

func widgetRecord(id, site string) store.Record {
	return store.Record{
		"widgetId":  id,
		"siteId":    site,
		"name":      "widget " + id[:4],
		"createdAt": "2024-01-01T00:00:00.000Z",
		"updatedAt": "2024-01-02T00:00:00.000Z",
	}
}

// seedSiteWithWidgets stores one site and three widgets belonging to it.
func seedSiteWithWidgets(t *testing.T, reg *entity.Registry, d *memDriver) *entity.Model {
	t.Helper()
	d.seed("Site", siteRecord(), "siteId")
	for _, id := range []string{widgetA, widgetB, widgetC} {
		d.seed("Widget", widgetRecord(id, siteID), "widgetId")
	}
	return collection(t, reg, "SiteCollection").NewModel(siteRecord())
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
