package entity

import (
	"time"

	"github.com/google/uuid"
)

// AttributeType is the declared type of an attribute.
type AttributeType string

const (
	TypeAny     AttributeType = "any"
	TypeBoolean AttributeType = "boolean"
	TypeEnum    AttributeType = "enum"
	TypeList    AttributeType = "list"
	TypeMap     AttributeType = "map"
	TypeNumber  AttributeType = "number"
	TypeSet     AttributeType = "set"
	TypeString  AttributeType = "string"
)

// Item types accepted by list and set attributes, besides the attribute types.
const (
	ItemObject AttributeType = "object"
	ItemUUID   AttributeType = "uuid"
)

// Attribute declares one attribute of an entity.
type Attribute struct {
	Type     AttributeType
	Required bool
	ReadOnly bool

	// Enum lists the accepted values of a TypeEnum attribute.
	Enum []string

	// Items is the element type of a TypeList or TypeSet attribute.
	// Default: TypeString
	Items AttributeType

	// Default produces the value of an attribute missing at creation.
	Default func() any

	// Validate is run against non-nil values at creation and on update.
	Validate func(any) bool

	// OnWrite recomputes the attribute on every write.
	OnWrite func() any
}

// Access is the setter policy of an attribute.
type Access int

const (
	AccessWritable Access = iota
	AccessReadOnly
	AccessIdentity
)

func (a Access) String() string {
	switch a {
	case AccessWritable:
		return "writable"
	case AccessReadOnly:
		return "read-only"
	case AccessIdentity:
		return "identity"
	default:
		return "unknown"
	}
}

const isoLayout = "2006-01-02T15:04:05.000Z"

func isoTimestamp(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

func isoNow() any {
	return isoTimestamp(time.Now())
}

// isUUID accepts only the canonical 36 character form.
func isUUID(v any) bool {
	s, ok := v.(string)
	return ok && len(s) == 36 && uuid.Validate(s) == nil
}

func identityAttribute() Attribute {
	return Attribute{
		Type:     TypeString,
		Required: true,
		ReadOnly: true,
		Default:  func() any { return uuid.NewString() },
		Validate: isUUID,
	}
}

func createdAtAttribute() Attribute {
	return Attribute{
		Type:     TypeString,
		Required: true,
		ReadOnly: true,
		Default:  isoNow,
	}
}

func updatedAtAttribute() Attribute {
	return Attribute{
		Type:     TypeString,
		Required: true,
		ReadOnly: true,
		Default:  isoNow,
		OnWrite:  isoNow,
	}
}
