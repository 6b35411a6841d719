package store

import "maps"

// Patch accumulates a partial update of one item.
//
// Set values are written. Composite values are only used to rebuild the
// keys of indexes touched by the written values; they are never written
// on their own.
type Patch struct {
	key       Record
	set       Record
	composite Record
}

// NewPatch starts a patch of the item identified by key.
func NewPatch(key Record) *Patch {
	return &Patch{
		key:       maps.Clone(key),
		set:       Record{},
		composite: Record{},
	}
}

// Set stages an attribute value.
func (p *Patch) Set(name string, value any) *Patch {
	p.set[name] = value
	return p
}

// Composite supplies facet values needed to rebuild index keys.
func (p *Patch) Composite(values Record) *Patch {
	maps.Copy(p.composite, values)
	return p
}

// Key returns the identity of the patched item.
func (p *Patch) Key() Record { return maps.Clone(p.key) }

// Updates returns the staged attribute values.
func (p *Patch) Updates() Record { return maps.Clone(p.set) }

// Composites returns the carried facet values.
func (p *Patch) Composites() Record { return maps.Clone(p.composite) }

// Empty reports whether nothing has been staged.
func (p *Patch) Empty() bool { return len(p.set) == 0 }
