package entity

import (
	"slices"

	"github.com/adobe/spacecat-shared-sub005/internal/naming"
)

// ReferenceType is the kind of a relationship edge.
type ReferenceType string

const (
	BelongsTo ReferenceType = "belongs_to"
	HasMany   ReferenceType = "has_many"
	HasOne    ReferenceType = "has_one"
)

func (t ReferenceType) valid() bool {
	return t == BelongsTo || t == HasMany || t == HasOne
}

// ReferenceOptions tune a relationship edge.
type ReferenceOptions struct {
	// RemoveDependents marks a has_many or has_one edge for cascading removal.
	RemoveDependents bool

	// SortKeys are the sort facets of a belongs_to edge's lookup index. The
	// reciprocal has_many side narrows on their prefixes.
	SortKeys []string

	// Required makes a belongs_to foreign key mandatory.
	Required bool
}

// Reference is an immutable relationship edge to another entity.
type Reference struct {
	typ     ReferenceType
	target  string
	options ReferenceOptions
}

// NewReference validates and builds a relationship edge.
func NewReference(typ ReferenceType, target string, opts ReferenceOptions) (*Reference, error) {
	if !typ.valid() {
		return nil, configErrorf("invalid reference type: %q", typ)
	}
	if target == "" {
		return nil, configErrorf("invalid target: reference target is required")
	}
	if opts.RemoveDependents && typ == BelongsTo {
		return nil, configErrorf("removeDependents is not supported on %s references", BelongsTo)
	}
	opts.SortKeys = slices.Clone(opts.SortKeys)
	return &Reference{typ: typ, target: target, options: opts}, nil
}

// Type returns the edge type.
func (r *Reference) Type() ReferenceType { return r.typ }

// Target returns the target entity name.
func (r *Reference) Target() string { return r.target }

// RemoveDependents reports whether targets are removed with the owner.
func (r *Reference) RemoveDependents() bool { return r.options.RemoveDependents }

// SortKeys returns the declared sort facets.
func (r *Reference) SortKeys() []string { return slices.Clone(r.options.SortKeys) }

// Required reports whether the foreign key is mandatory.
func (r *Reference) Required() bool { return r.options.Required }

// AccessorName is the name of the primary accessor generated for the edge.
func (r *Reference) AccessorName() string {
	return naming.EntityNameToReferenceMethodName(r.target, r.typ == HasMany)
}

// ToAccessorConfigs expands the edge into the accessors installed on owner.
//
// A belongs_to edge yields one lookup by the owner's foreign key. A has_one
// edge yields one lookup of the target by the owner's identity. A has_many
// edge yields the same lookup returning all matches, plus one narrowing
// accessor per prefix of the sort keys declared by the reciprocal belongs_to
// edge on the target.
func (r *Reference) ToAccessorConfigs(reg *Registry, owner *Model) ([]AccessorConfig, error) {
	if reg == nil {
		return nil, configErrorf("registry is required")
	}
	if owner == nil {
		return nil, configErrorf("owner is required")
	}

	target, err := reg.GetCollection(naming.EntityNameToCollectionName(r.target))
	if err != nil {
		return nil, err
	}

	switch r.typ {
	case BelongsTo:
		fk := naming.EntityNameToIDName(r.target)
		return []AccessorConfig{{
			Name:       r.AccessorName(),
			Collection: target,
			Context:    owner,
			ByID:       true,
			ForeignKey: &ForeignKey{Name: fk, Value: owner.Get(fk)},
		}}, nil

	case HasOne:
		return []AccessorConfig{{
			Name:       r.AccessorName(),
			Collection: target,
			Context:    owner,
			ForeignKey: ownerKey(owner),
		}}, nil
	}

	base := r.AccessorName()
	configs := []AccessorConfig{{
		Name:       base,
		Collection: target,
		Context:    owner,
		All:        true,
		ForeignKey: ownerKey(owner),
	}}

	reciprocal, first := reg.reciprocalOf(owner.Schema(), r)
	if reciprocal == nil {
		if first {
			reg.logger.Warn("reciprocal reference not found",
				"entity", owner.Schema().ModelName(),
				"target", r.target,
			)
		}
		return configs, nil
	}

	sortKeys := reciprocal.SortKeys()
	if len(sortKeys) == 0 {
		if first {
			reg.logger.Debug("reciprocal reference declares no sort keys",
				"entity", owner.Schema().ModelName(),
				"target", r.target,
			)
		}
		return configs, nil
	}

	for i := 1; i <= len(sortKeys); i++ {
		keys := slices.Clone(sortKeys[:i])
		configs = append(configs, AccessorConfig{
			Name:         naming.KeyNamesToMethodName(keys, base+"By"),
			Collection:   target,
			Context:      owner,
			RequiredKeys: keys,
			All:          true,
			ForeignKey:   ownerKey(owner),
		})
	}
	return configs, nil
}

func ownerKey(owner *Model) *ForeignKey {
	return &ForeignKey{Name: owner.Schema().IDName(), Value: owner.ID()}
}
