package entity

import (
	"cmp"
	"maps"
	"regexp"
	"slices"
	"strconv"

	"github.com/adobe/spacecat-shared-sub005/internal/naming"
	"github.com/adobe/spacecat-shared-sub005/store"
)

var (
	modelNamePattern      = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	collectionNamePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*Collection$`)
)

// Schema is the read-only runtime view of a RawSchema bound to its model and
// collection names. It is safe for concurrent use.
type Schema struct {
	modelName      string
	collectionName string
	raw            RawSchema

	access      map[string]Access
	foreignKeys map[string]bool
	def         *store.EntityDef
}

// NewSchema binds raw to a model name (e.g. "Site") and a collection name
// (e.g. "SiteCollection").
func NewSchema(modelName, collectionName string, raw *RawSchema) (*Schema, error) {
	switch {
	case !modelNamePattern.MatchString(modelName):
		return nil, configErrorf("model name %q is not a valid entity model type", modelName)
	case !collectionNamePattern.MatchString(collectionName):
		return nil, configErrorf("collection name %q is not a valid entity collection type", collectionName)
	case raw == nil:
		return nil, configErrorf("raw schema is required")
	case raw.Service == "":
		return nil, configErrorf("schema service name is required")
	case raw.Version < 1:
		return nil, configErrorf("schema version must be a positive integer")
	case len(raw.Attributes) == 0:
		return nil, configErrorf("schema attributes must not be empty")
	case len(raw.Indexes) == 0:
		return nil, configErrorf("schema indexes must not be empty")
	}

	s := &Schema{
		modelName:      modelName,
		collectionName: collectionName,
		raw: RawSchema{
			Entity:     raw.Entity,
			Service:    raw.Service,
			Version:    raw.Version,
			Attributes: maps.Clone(raw.Attributes),
			Indexes:    slices.Clone(raw.Indexes),
			References: slices.Clone(raw.References),
		},
		access:      map[string]Access{},
		foreignKeys: map[string]bool{},
	}
	if s.raw.Entity == "" {
		s.raw.Entity = s.EntityName()
	}
	if _, ok := s.IndexByName(PrimaryIndex); !ok {
		return nil, configErrorf("schema of %s has no primary index", modelName)
	}

	idName := s.IDName()
	for name, attr := range s.raw.Attributes {
		switch {
		case name == idName:
			s.access[name] = AccessIdentity
		case attr.ReadOnly:
			s.access[name] = AccessReadOnly
		default:
			s.access[name] = AccessWritable
		}
	}
	for _, ref := range s.raw.References {
		if ref.Type() == BelongsTo {
			s.foreignKeys[naming.EntityNameToIDName(ref.Target())] = true
		}
	}

	s.def = &store.EntityDef{
		Service:  s.raw.Service,
		Entity:   s.raw.Entity,
		Version:  strconv.Itoa(s.raw.Version),
		Indexes:  s.raw.Indexes,
		Computed: map[string]func() any{},
	}
	for name, attr := range s.raw.Attributes {
		if attr.OnWrite != nil {
			s.def.Computed[name] = attr.OnWrite
		}
	}
	return s, nil
}

// ModelName returns the bound model name ("Site").
func (s *Schema) ModelName() string { return s.modelName }

// EntityName returns the decapitalized model name ("site").
func (s *Schema) EntityName() string { return naming.ModelNameToEntityName(s.modelName) }

// CollectionName returns the bound collection name ("SiteCollection").
func (s *Schema) CollectionName() string { return s.collectionName }

// IDName returns the identity attribute name ("siteId").
func (s *Schema) IDName() string { return naming.EntityNameToIDName(s.modelName) }

// ServiceName returns the service namespace of the entity.
func (s *Schema) ServiceName() string { return s.raw.Service }

// Version returns the schema version.
func (s *Schema) Version() int { return s.raw.Version }

// EntityDef returns the store layout of the entity.
func (s *Schema) EntityDef() *store.EntityDef { return s.def }

// Attribute returns the definition of name.
func (s *Schema) Attribute(name string) (Attribute, bool) {
	attr, ok := s.raw.Attributes[name]
	return attr, ok
}

// Attributes returns a copy of all attribute definitions.
func (s *Schema) Attributes() map[string]Attribute {
	return maps.Clone(s.raw.Attributes)
}

// AttributeNames returns the attribute names in sorted order.
func (s *Schema) AttributeNames() []string {
	return sortedKeys(s.raw.Attributes)
}

// AccessPolicy returns the setter policy of name.
func (s *Schema) AccessPolicy(name string) (Access, bool) {
	a, ok := s.access[name]
	return a, ok
}

// IsForeignKey reports whether name holds the identity of a belongs_to target.
func (s *Schema) IsForeignKey(name string) bool {
	return s.foreignKeys[name]
}

// IndexByName returns the index called name.
func (s *Schema) IndexByName(name string) (store.IndexDef, bool) {
	for _, idx := range s.raw.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return store.IndexDef{}, false
}

// Indexes returns every index not named in exclude, in declaration order.
func (s *Schema) Indexes(exclude ...string) []store.IndexDef {
	out := make([]store.IndexDef, 0, len(s.raw.Indexes))
	for _, idx := range s.raw.Indexes {
		if !slices.Contains(exclude, idx.Name) {
			out = append(out, idx)
		}
	}
	return out
}

// IndexKeys returns the partition facets followed by the sort facets of an
// index, or an empty list for an unknown index.
func (s *Schema) IndexKeys(name string) []string {
	idx, ok := s.IndexByName(name)
	if !ok {
		return []string{}
	}
	return idx.Facets()
}

// IndexAccessor lists the key sets a secondary index can be queried by.
type IndexAccessor struct {
	IndexName string
	KeySets   [][]string
}

// IndexAccessors returns, for each secondary index keyed by facets, the
// progressive key sets from its full partition key to its full sort key.
func (s *Schema) IndexAccessors() []IndexAccessor {
	var out []IndexAccessor
	for _, idx := range s.Indexes(PrimaryIndex, AllIndex) {
		if len(idx.PK.Facets) == 0 {
			continue
		}
		keys := idx.Facets()
		ia := IndexAccessor{IndexName: idx.Name}
		for n := len(idx.PK.Facets); n <= len(keys); n++ {
			ia.KeySets = append(ia.KeySets, slices.Clone(keys[:n]))
		}
		out = append(out, ia)
	}
	return out
}

// References returns every relationship edge in declaration order.
func (s *Schema) References() []*Reference {
	return slices.Clone(s.raw.References)
}

// ReferencesByType returns the edges of one type.
func (s *Schema) ReferencesByType(typ ReferenceType) []*Reference {
	var out []*Reference
	for _, ref := range s.raw.References {
		if ref.Type() == typ {
			out = append(out, ref)
		}
	}
	return out
}

// ReferenceByTypeAndTarget returns the first edge of typ pointing at target, or nil.
func (s *Schema) ReferenceByTypeAndTarget(typ ReferenceType, target string) *Reference {
	for _, ref := range s.raw.References {
		if ref.Type() == typ && ref.Target() == target {
			return ref
		}
	}
	return nil
}

// ReciprocalReference returns the belongs_to edge on ref's target that points
// back at this schema's model, or nil.
func (s *Schema) ReciprocalReference(reg *Registry, ref *Reference) *Reference {
	if ref == nil || ref.Type() == BelongsTo {
		return nil
	}
	target, err := reg.GetCollection(naming.EntityNameToCollectionName(ref.Target()))
	if err != nil {
		return nil
	}
	return target.Schema().ReferenceByTypeAndTarget(BelongsTo, s.modelName)
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
