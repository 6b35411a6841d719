// Package naming derives attribute, collection, index and method names from entity names.
package naming

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-openapi/inflect"
)

// Capitalize upper-cases the first rune of s.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// Decapitalize lower-cases the first rune of s.
func Decapitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

// EntityNameToIDName returns the identity attribute name of an entity ("Site" -> "siteId").
func EntityNameToIDName(entityName string) string {
	return Decapitalize(entityName) + "Id"
}

// ModelNameToEntityName returns the entity name for a model type name ("ApiKey" -> "apiKey").
func ModelNameToEntityName(modelName string) string {
	return Decapitalize(modelName)
}

// EntityNameToCollectionName returns the collection name of an entity ("sites" -> "SiteCollection").
func EntityNameToCollectionName(entityName string) string {
	return Capitalize(inflect.Singularize(entityName)) + "Collection"
}

// CollectionNameToEntityName strips the Collection suffix ("SiteCollection" -> "Site").
func CollectionNameToEntityName(collectionName string) string {
	return strings.TrimSuffix(collectionName, "Collection")
}

// EntityNameToReferenceMethodName returns the accessor name for a relationship
// to entityName. Many-valued relationships use the plural form.
func EntityNameToReferenceMethodName(entityName string, many bool) string {
	if many {
		return "get" + Capitalize(inflect.Pluralize(entityName))
	}
	return "get" + Capitalize(entityName)
}

// KeyNamesToMethodName joins capitalized key names with "And" behind prefix:
// (["siteId", "status"], "allBy") -> "allBySiteIdAndStatus".
func KeyNamesToMethodName(keyNames []string, prefix string) string {
	parts := make([]string, len(keyNames))
	for i, k := range keyNames {
		parts[i] = Capitalize(k)
	}
	return prefix + strings.Join(parts, "And")
}

// KeyNamesToIndexName returns the conventional index name for a key list.
func KeyNamesToIndexName(keyNames []string) string {
	return KeyNamesToMethodName(keyNames, "by")
}

// EntityNameToAllPKValue is the fixed partition value of an entity's "all" index.
func EntityNameToAllPKValue(entityName string) string {
	return "all_" + strings.ToLower(inflect.Pluralize(entityName))
}

// PhysicalIndexName returns the table-level name of a secondary index.
func PhysicalIndexName(service, entityName, indexName string) string {
	return fmt.Sprintf("%s-data-%s-%s", strings.ToLower(service), entityName, indexName)
}

// IncrementVersion returns the next integer version. Anything that is not an
// integer restarts at "1".
func IncrementVersion(version string) string {
	n, err := strconv.Atoi(version)
	if err != nil {
		return "1"
	}
	return strconv.Itoa(n + 1)
}
