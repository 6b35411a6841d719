package entity

import (
	"context"
	"maps"
	"time"

	"github.com/adobe/spacecat-shared-sub005/store"
)

// Patcher stages validated attribute changes of one entity and persists them.
// It is not safe for concurrent use.
type Patcher struct {
	driver Driver
	schema *Schema
	record store.Record

	updates store.Record
	patch   *store.Patch
	now     func() time.Time
}

// NewPatcher tracks changes to record. Staged values are written into record
// immediately.
func NewPatcher(driver Driver, schema *Schema, record store.Record) *Patcher {
	return &Patcher{
		driver:  driver,
		schema:  schema,
		record:  record,
		updates: store.Record{},
		now:     time.Now,
	}
}

// PatchValue validates value against the attribute's declaration and stages
// it. isReference validates the value as an identity instead.
func (p *Patcher) PatchValue(name string, value any, isReference bool) error {
	entity := p.schema.EntityName()

	attr, ok := p.schema.Attribute(name)
	if !ok {
		return validationErrorf(entity, name, "Property %s does not exist on entity %s.", name, entity)
	}
	if access, _ := p.schema.AccessPolicy(name); attr.ReadOnly || access != AccessWritable {
		return validationErrorf(entity, name, "The property %s is read-only and cannot be updated.", name)
	}
	if err := guardValue(entity, name, attr, value, isReference); err != nil {
		return err
	}
	if value != nil && attr.Validate != nil && !attr.Validate(value) {
		return validationErrorf(entity, name, "Validation failed in %s: %s is invalid", entity, name)
	}

	if p.patch == nil {
		idName := p.schema.IDName()
		p.patch = store.NewPatch(store.Record{idName: p.record[idName]})
	}
	p.patch.Set(name, value)
	p.record[name] = value
	p.updates[name] = value
	return nil
}

// HasUpdates reports whether Save would write.
func (p *Patcher) HasUpdates() bool {
	return len(p.updates) > 0
}

// Updates returns the staged values.
func (p *Patcher) Updates() store.Record {
	return maps.Clone(p.updates)
}

// Save writes the staged values. Every facet of every index that is present
// on the record but not staged is carried along so the store can rebuild
// complete index keys. Without staged values Save does nothing.
func (p *Patcher) Save(ctx context.Context) error {
	if !p.HasUpdates() {
		return nil
	}

	carry := store.Record{}
	for _, idx := range p.schema.Indexes() {
		for _, facet := range idx.Facets() {
			if _, staged := p.updates[facet]; staged {
				continue
			}
			if v, ok := p.record[facet]; ok {
				carry[facet] = v
			}
		}
	}
	p.patch.Composite(carry)

	written, err := p.driver.Patch(ctx, p.schema.EntityDef(), p.patch)
	if err != nil {
		return err
	}

	if v, ok := written["updatedAt"]; ok {
		p.record["updatedAt"] = v
	} else {
		p.record["updatedAt"] = isoTimestamp(p.now())
	}
	p.updates = store.Record{}
	p.patch = nil
	return nil
}
