package entity

import (
	"context"

	"github.com/adobe/spacecat-shared-sub005/store"
)

// ForeignKey is a fixed key merged into every lookup of an accessor.
type ForeignKey struct {
	Name  string
	Value any
}

// AccessorConfig describes an accessor before it is installed.
type AccessorConfig struct {
	// Name the accessor is installed and called under.
	Name string

	// Collection is queried on invocation.
	Collection *Collection

	// Context receives the accessor.
	Context AccessorHost

	// RequiredKeys are matched positionally against invocation arguments.
	RequiredKeys []string

	// All returns every match instead of the first.
	All bool

	// ByID fetches the target by the identity held in ForeignKey.
	ByID bool

	ForeignKey *ForeignKey

	// Index pins the queried index. Empty derives it from the keys.
	Index string
}

// AccessorHost is a value accessors can be installed on.
type AccessorHost interface {
	Accessor(name string) (*Accessor, bool)
	setAccessor(a *Accessor) bool
}

// Accessor is an installed lookup.
type Accessor struct {
	cfg AccessorConfig
}

// CreateAccessor installs the accessor described by cfg on cfg.Context. An
// accessor already installed under the same name is kept.
func CreateAccessor(cfg AccessorConfig) error {
	switch {
	case cfg.Collection == nil:
		return configErrorf("accessor collection is required")
	case cfg.Context == nil:
		return configErrorf("accessor context is required")
	case cfg.Name == "":
		return configErrorf("accessor name is required")
	}
	cfg.Context.setAccessor(&Accessor{cfg: cfg})
	return nil
}

// Name returns the installed name.
func (a *Accessor) Name() string { return a.cfg.Name }

// Config returns the accessor's description.
func (a *Accessor) Config() AccessorConfig { return a.cfg }

// Invoke runs the lookup. Arguments are the values of the required keys in
// order, optionally followed by a store.QueryOptions.
func (a *Accessor) Invoke(ctx context.Context, args ...any) (Result, error) {
	c := a.cfg

	if c.ByID {
		id := a.foreignKeyValue()
		if s, _ := id.(string); s != "" {
			m, err := c.Collection.FindByID(ctx, s)
			return Result{one: m}, err
		}
		return Result{}, nil
	}

	schema := c.Collection.Schema()
	entity := schema.EntityName()
	keys := store.Record{}
	for i, key := range c.RequiredKeys {
		var v any
		if i < len(args) {
			v = args[i]
		}
		if attr, ok := schema.Attribute(key); ok && attr.Type == TypeNumber {
			if !isNumber(v) {
				return Result{}, validationErrorf(entity, key, "Validation failed in %s: %s must be a number", entity, key)
			}
		} else if !hasText(v) {
			return Result{}, validationErrorf(entity, key, "Validation failed in %s: %s is required", entity, key)
		}
		keys[key] = v
	}

	var opts store.QueryOptions
	if len(args) > len(c.RequiredKeys) {
		rest := args[len(c.RequiredKeys):]
		if len(rest) > 1 {
			return Result{}, validationErrorf(entity, "", "%s accepts at most %d arguments", c.Name, len(c.RequiredKeys)+1)
		}
		switch o := rest[0].(type) {
		case store.QueryOptions:
			opts = o
		case *store.QueryOptions:
			if o != nil {
				opts = *o
			}
		default:
			return Result{}, validationErrorf(entity, "", "%s: trailing argument must be query options, got %T", c.Name, rest[0])
		}
	}
	if opts.Index == "" {
		opts.Index = c.Index
	}

	if c.ForeignKey != nil {
		keys[c.ForeignKey.Name] = c.ForeignKey.Value
	}

	if c.All {
		ms, err := c.Collection.AllByIndexKeys(ctx, keys, opts)
		return Result{many: ms, all: true}, err
	}
	m, err := c.Collection.FindByIndexKeys(ctx, keys, opts)
	return Result{one: m}, err
}

// foreignKeyValue prefers the host's current value so that a foreign key
// changed through a setter is followed.
func (a *Accessor) foreignKeyValue() any {
	fk := a.cfg.ForeignKey
	if fk == nil {
		return nil
	}
	if m, ok := a.cfg.Context.(*Model); ok {
		return m.Get(fk.Name)
	}
	return fk.Value
}

// Result holds what an accessor returned: one model (possibly nil) or a list.
type Result struct {
	one  *Model
	many []*Model
	all  bool
}

// One returns the single model, or nil.
func (r Result) One() *Model { return r.one }

// All returns the list of models.
func (r Result) All() []*Model { return r.many }

// IsAll reports whether the accessor returns a list.
func (r Result) IsAll() bool { return r.all }

// Models normalizes the result into a flat list of zero or more models.
func (r Result) Models() []*Model {
	if r.all {
		return r.many
	}
	if r.one != nil {
		return []*Model{r.one}
	}
	return nil
}
