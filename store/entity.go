package store

import (
	"slices"
)

// Record is one item as seen by callers: attribute name to value, with the
// composite key fields and entity markers removed.
type Record = map[string]any

// Marker attributes written on every item of the single table.
const (
	EntityAttr  = "_entity"
	VersionAttr = "_version"
)

// PrimaryIndex is the name of the index keyed by an entity's identity.
const PrimaryIndex = "primary"

// KeyDef describes one half of an index key.
type KeyDef struct {
	// Field is the physical attribute holding the composed key (e.g. "gsi1pk").
	Field string

	// Facets are the attributes composed into the key, in order.
	Facets []string

	// Template is a key value used instead of facets (e.g. "all_sites").
	// ${attr} placeholders are replaced by attribute values; Facets then
	// lists the placeholders in order (see TemplateFacets).
	Template string
}

// IsZero reports whether the key definition carries nothing at all.
func (k KeyDef) IsZero() bool {
	return k.Field == "" && len(k.Facets) == 0 && k.Template == ""
}

// IndexDef describes one index of an entity.
type IndexDef struct {
	// Name is the logical index name (e.g. "primary", "bySiteId").
	Name string

	// IndexName is the physical GSI name. Empty for the primary index.
	IndexName string

	PK KeyDef
	SK KeyDef
}

// Facets returns the partition facets followed by the sort facets.
func (i IndexDef) Facets() []string {
	out := make([]string, 0, len(i.PK.Facets)+len(i.SK.Facets))
	out = append(out, i.PK.Facets...)
	return append(out, i.SK.Facets...)
}

// HasFacet reports whether name participates in either key of the index.
func (i IndexDef) HasFacet(name string) bool {
	return slices.Contains(i.PK.Facets, name) || slices.Contains(i.SK.Facets, name)
}

// EntityDef is everything the store needs to lay out one entity type in the table.
type EntityDef struct {
	Service string
	Entity  string
	Version string

	// Indexes in declaration order. Exactly one is named PrimaryIndex.
	Indexes []IndexDef

	// Computed attributes are recomputed on every write.
	Computed map[string]func() any
}

// Index returns the index named name.
func (d *EntityDef) Index(name string) (IndexDef, bool) {
	for _, idx := range d.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexDef{}, false
}

// Primary returns the primary index.
func (d *EntityDef) Primary() (IndexDef, error) {
	idx, ok := d.Index(PrimaryIndex)
	if !ok {
		return IndexDef{}, ErrIndexNotFound
	}
	return idx, nil
}

// keyFields returns every physical key field of the entity.
func (d *EntityDef) keyFields() []string {
	var fields []string
	for _, idx := range d.Indexes {
		if idx.PK.Field != "" {
			fields = append(fields, idx.PK.Field)
		}
		if idx.SK.Field != "" {
			fields = append(fields, idx.SK.Field)
		}
	}
	return fields
}

// Order of query results on the sort key.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Between restricts a query to a range of one sort facet.
type Between struct {
	Attribute string
	Start     any
	End       any
}

// QueryOptions tune an index query.
type QueryOptions struct {
	// Index forces a specific index instead of deriving one from the keys.
	Index string

	// Order is OrderAsc or OrderDesc. Default: OrderDesc.
	Order string

	// Limit caps the number of returned records. Zero means no limit.
	Limit int

	// Attributes projects the result to the named attributes.
	Attributes []string

	Between *Between
}
