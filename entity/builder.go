package entity

import (
	"maps"
	"slices"
	"strconv"

	"github.com/adobe/spacecat-shared-sub005/internal/naming"
	"github.com/adobe/spacecat-shared-sub005/store"
)

// Names reserved for indexes the builder manages itself.
const (
	PrimaryIndex = store.PrimaryIndex
	AllIndex     = "all"
)

// RawSchema is the built description of one entity type.
type RawSchema struct {
	Entity  string
	Service string
	Version int

	Attributes map[string]Attribute

	// Indexes are ordered: primary, all, belongs_to lookups, then the rest.
	Indexes []store.IndexDef

	References []*Reference
}

// SchemaBuilder assembles a RawSchema. Methods chain; the first error is
// kept and reported by Build.
type SchemaBuilder struct {
	entityName string
	idName     string
	service    string
	version    int

	attributes map[string]Attribute
	primary    store.IndexDef
	all        *store.IndexDef
	belongsTo  map[string]store.IndexDef
	other      map[string]store.IndexDef
	references []*Reference

	err error
}

// NewSchemaBuilder seeds the identity, createdAt and updatedAt attributes and
// the primary index of entityName.
func NewSchemaBuilder(entityName string, version int, service string) (*SchemaBuilder, error) {
	if entityName == "" {
		return nil, configErrorf("entityName is required and must be a non-empty string")
	}
	if version < 1 {
		return nil, configErrorf("schemaVersion is required and must be a positive integer")
	}
	if service == "" {
		return nil, configErrorf("serviceName is required and must be a non-empty string")
	}

	b := &SchemaBuilder{
		entityName: entityName,
		idName:     naming.EntityNameToIDName(entityName),
		service:    service,
		version:    version,
		attributes: map[string]Attribute{},
		belongsTo:  map[string]store.IndexDef{},
		other:      map[string]store.IndexDef{},
	}

	b.attributes[b.idName] = identityAttribute()
	b.attributes["createdAt"] = createdAtAttribute()
	b.attributes["updatedAt"] = updatedAtAttribute()

	b.primary = store.IndexDef{
		Name: PrimaryIndex,
		PK:   store.KeyDef{Field: "pk", Facets: []string{b.idName}},
		SK:   store.KeyDef{Field: "sk", Facets: []string{}},
	}
	return b, nil
}

// AddAttribute registers or overwrites an attribute.
func (b *SchemaBuilder) AddAttribute(name string, attr Attribute) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if name == "" {
		b.err = configErrorf("attribute name is required and must be non-empty")
		return b
	}
	if attr.Type == "" {
		b.err = configErrorf("attribute %q must declare a type", name)
		return b
	}
	b.attributes[name] = attr
	return b
}

// AddAllIndex adds the index listing every entity of this type, sorted by
// the given facets. It replaces any previous one.
func (b *SchemaBuilder) AddAllIndex(sortFacets ...string) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if len(sortFacets) == 0 {
		b.err = configErrorf("at least one composite attribute name is required")
		return b
	}
	b.all = &store.IndexDef{
		Name:      AllIndex,
		IndexName: naming.PhysicalIndexName(b.service, b.entityName, AllIndex),
		PK:        store.KeyDef{Field: "gsi1pk", Template: naming.EntityNameToAllPKValue(b.entityName)},
		SK:        store.KeyDef{Field: "gsi1sk", Facets: slices.Clone(sortFacets)},
	}
	return b
}

// AddAllIndexTemplate adds the all index with its sort key written to field
// from template, e.g. "${name}". It replaces any previous one.
func (b *SchemaBuilder) AddAllIndexTemplate(field, template string) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	switch {
	case field == "":
		b.err = configErrorf("field name is required and must be a non-empty string")
	case template == "":
		b.err = configErrorf("template is required and must be a non-empty string")
	default:
		b.all = &store.IndexDef{
			Name:      AllIndex,
			IndexName: naming.PhysicalIndexName(b.service, b.entityName, AllIndex),
			PK:        store.KeyDef{Field: "gsi1pk", Template: naming.EntityNameToAllPKValue(b.entityName)},
			SK:        store.KeyDef{Field: field, Template: template, Facets: store.TemplateFacets(template)},
		}
	}
	return b
}

// AddIndex adds a secondary index. Physical key fields left empty are
// numbered at build time.
func (b *SchemaBuilder) AddIndex(name string, pk, sk store.KeyDef) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	switch {
	case name == "":
		b.err = configErrorf("index name is required and must be a non-empty string")
	case name == PrimaryIndex || name == AllIndex:
		b.err = configErrorf("index name %q is reserved", name)
	case pk.IsZero():
		b.err = configErrorf("partition key of index %q is required", name)
	case sk.IsZero():
		b.err = configErrorf("sort key of index %q is required", name)
	default:
		b.other[name] = b.newIndex(name, pk, sk)
	}
	return b
}

// ReferenceOption adjusts a reference added with AddReference.
type ReferenceOption func(*ReferenceOptions)

// WithSortKeys replaces the default sort keys (["updatedAt"]) of a belongs_to reference.
func WithSortKeys(keys ...string) ReferenceOption {
	return func(o *ReferenceOptions) { o.SortKeys = keys }
}

// Optional makes a belongs_to foreign key optional. Optional references get no lookup index.
func Optional() ReferenceOption {
	return func(o *ReferenceOptions) { o.Required = false }
}

// WithRemoveDependents marks a has_many or has_one reference for cascading removal.
func WithRemoveDependents() ReferenceOption {
	return func(o *ReferenceOptions) { o.RemoveDependents = true }
}

// AddReference records a relationship edge. A belongs_to edge also adds the
// foreign key attribute and, when required, an index keyed by it.
func (b *SchemaBuilder) AddReference(typ ReferenceType, target string, opts ...ReferenceOption) *SchemaBuilder {
	if b.err != nil {
		return b
	}

	options := ReferenceOptions{SortKeys: []string{"updatedAt"}, Required: true}
	for _, opt := range opts {
		opt(&options)
	}

	ref, err := NewReference(typ, target, options)
	if err != nil {
		b.err = err
		return b
	}
	b.references = append(b.references, ref)

	if typ != BelongsTo {
		return b
	}

	fk := naming.EntityNameToIDName(target)
	required := options.Required
	b.attributes[fk] = Attribute{
		Type:     TypeString,
		Required: required,
		Validate: func(v any) bool {
			if required {
				return isUUID(v)
			}
			return v == nil || v == "" || isUUID(v)
		},
	}

	if required {
		name := naming.KeyNamesToIndexName([]string{fk})
		b.belongsTo[name] = b.newIndex(name,
			store.KeyDef{Facets: []string{fk}},
			store.KeyDef{Facets: slices.Clone(options.SortKeys)},
		)
	}
	return b
}

func (b *SchemaBuilder) newIndex(name string, pk, sk store.KeyDef) store.IndexDef {
	pk.Facets = slices.Clone(pk.Facets)
	sk.Facets = slices.Clone(sk.Facets)
	return store.IndexDef{
		Name:      name,
		IndexName: naming.PhysicalIndexName(b.service, b.entityName, name),
		PK:        pk,
		SK:        sk,
	}
}

// Build returns the schema description. Indexes are ordered primary, all,
// belongs_to lookups by name, then other indexes by name; unnamed key fields
// are numbered gsi1.. in that order, starting after the all index.
func (b *SchemaBuilder) Build() (*RawSchema, error) {
	if b.err != nil {
		return nil, b.err
	}

	indexes := []store.IndexDef{b.primary}
	counter := 0
	if b.all != nil {
		indexes = append(indexes, *b.all)
		counter = 1
	}

	for _, group := range []map[string]store.IndexDef{b.belongsTo, b.other} {
		for _, name := range sortedKeys(group) {
			idx := group[name]
			if idx.PK.Field == "" || idx.SK.Field == "" {
				counter++
			}
			if idx.PK.Field == "" {
				idx.PK.Field = "gsi" + strconv.Itoa(counter) + "pk"
			}
			if idx.SK.Field == "" {
				idx.SK.Field = "gsi" + strconv.Itoa(counter) + "sk"
			}
			indexes = append(indexes, idx)
		}
	}

	return &RawSchema{
		Entity:     b.entityName,
		Service:    b.service,
		Version:    b.version,
		Attributes: maps.Clone(b.attributes),
		Indexes:    indexes,
		References: slices.Clone(b.references),
	}, nil
}
