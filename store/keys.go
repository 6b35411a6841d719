package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{(\w+)\}`)

// partitionPrefix is the leading segment of every partition key value.
func (d *EntityDef) partitionPrefix() string {
	return "$" + strings.ToLower(d.Service)
}

// sortPrefix is the leading segment of every sort key value.
func (d *EntityDef) sortPrefix() string {
	return "$" + strings.ToLower(d.Entity) + "_" + d.Version
}

// composeKey renders a key value like "$service#siteid_abc#status_new".
// It stops at the first facet without a value and reports whether all
// facets were present.
func composeKey(prefix string, key KeyDef, values Record) (string, bool) {
	if key.Template != "" {
		return renderTemplate(key.Template, values)
	}
	var b strings.Builder
	b.WriteString(prefix)
	for _, facet := range key.Facets {
		v, ok := values[facet]
		if !ok || v == nil {
			return strings.ToLower(b.String()), false
		}
		b.WriteString("#")
		b.WriteString(facet)
		b.WriteString("_")
		b.WriteString(formatFacet(v))
	}
	return strings.ToLower(b.String()), true
}

// renderTemplate substitutes ${attr} placeholders. Like composeKey it stops
// at the first placeholder without a value. Templates are not lowercased.
func renderTemplate(template string, values Record) (string, bool) {
	var b strings.Builder
	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(template, -1) {
		b.WriteString(template[last:m[0]])
		v, ok := values[template[m[2]:m[3]]]
		if !ok || v == nil {
			return b.String(), false
		}
		b.WriteString(formatFacet(v))
		last = m[1]
	}
	b.WriteString(template[last:])
	return b.String(), true
}

// TemplateFacets returns the attribute names of the ${attr} placeholders in
// template, in order.
func TemplateFacets(template string) []string {
	var out []string
	for _, m := range placeholder.FindAllStringSubmatch(template, -1) {
		out = append(out, m[1])
	}
	return out
}

// indexKeys composes both halves of idx from values.
func (d *EntityDef) indexKeys(idx IndexDef, values Record) (pk, sk string, complete bool) {
	pk, pkOK := composeKey(d.partitionPrefix(), idx.PK, values)
	sk, skOK := composeKey(d.sortPrefix(), idx.SK, values)
	return pk, sk, pkOK && skOK
}

func formatFacet(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
