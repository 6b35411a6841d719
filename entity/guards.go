package entity

import (
	"math"
	"reflect"
	"slices"
	"strings"
)

// guardValue checks value against attr. Values of attributes that are not
// required may be nil. isReference validates the value as an identity
// regardless of the declared type.
func guardValue(entity, name string, attr Attribute, value any, isReference bool) error {
	if !isReference && !knownType(attr.Type) {
		return validationErrorf(entity, name, "Unsupported type for property %s", name)
	}
	if value == nil {
		if attr.Required {
			return validationErrorf(entity, name, "Validation failed in %s: %s is required", entity, name)
		}
		return nil
	}
	if isReference {
		if !isUUID(value) {
			return validationErrorf(entity, name, "Validation failed in %s: %s must be a valid UUID", entity, name)
		}
		return nil
	}

	switch attr.Type {
	case TypeAny:
		return nil
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return validationErrorf(entity, name, "Validation failed in %s: %s must be a boolean", entity, name)
		}
	case TypeEnum:
		if s, ok := value.(string); !ok || !slices.Contains(attr.Enum, s) {
			return validationErrorf(entity, name, "Validation failed in %s: %s must be one of %s", entity, name, strings.Join(attr.Enum, ","))
		}
	case TypeList:
		return guardItems(entity, name, value, attr.Items, false)
	case TypeSet:
		return guardItems(entity, name, value, attr.Items, true)
	case TypeMap:
		if !isObject(value) {
			return validationErrorf(entity, name, "Validation failed in %s: %s must be an object", entity, name)
		}
	case TypeNumber:
		if !isNumber(value) {
			return validationErrorf(entity, name, "Validation failed in %s: %s must be a number", entity, name)
		}
	case TypeString:
		if !hasText(value) {
			return validationErrorf(entity, name, "Validation failed in %s: %s must be a non-empty string", entity, name)
		}
	}
	return nil
}

func knownType(t AttributeType) bool {
	switch t {
	case TypeAny, TypeBoolean, TypeEnum, TypeList, TypeMap, TypeNumber, TypeSet, TypeString:
		return true
	}
	return false
}

func guardItems(entity, name string, value any, itemType AttributeType, unique bool) error {
	if itemType == "" {
		itemType = TypeString
	}
	kind := "array"
	if unique {
		kind = "set"
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return validationErrorf(entity, name, "Validation failed in %s: %s must be a %s", entity, name, kind)
	}

	var check func(any) bool
	switch itemType {
	case TypeString:
		check = func(v any) bool { _, ok := v.(string); return ok }
	case TypeNumber:
		check = isNumber
	case TypeBoolean:
		check = func(v any) bool { _, ok := v.(bool); return ok }
	case ItemObject:
		check = isObject
	case ItemUUID:
		check = isUUID
	default:
		return validationErrorf(entity, name, "Validation failed in %s: %s has unsupported item type %s", entity, name, itemType)
	}
	if unique && itemType == ItemObject {
		return validationErrorf(entity, name, "Validation failed in %s: %s has unsupported item type %s", entity, name, itemType)
	}

	seen := map[any]struct{}{}
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i).Interface()
		if !check(item) {
			return validationErrorf(entity, name, "Validation failed in %s: %s must be a %s of %s", entity, name, kind, itemType)
		}
		if unique {
			if _, dup := seen[item]; dup {
				return validationErrorf(entity, name, "Validation failed in %s: %s must not contain duplicates", entity, name)
			}
			seen[item] = struct{}{}
		}
	}
	return nil
}

func hasText(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

func isNumber(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return false
}

func isObject(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
}
