package entity

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/adobe/spacecat-shared-sub005/internal/naming"
)

type keyDoc struct {
	Field    string   `yaml:"field"`
	Facets   []string `yaml:"facets,omitempty"`
	Template string   `yaml:"template,omitempty"`
}

type indexDoc struct {
	Name      string `yaml:"name"`
	IndexName string `yaml:"index,omitempty"`
	PK        keyDoc `yaml:"pk"`
	SK        keyDoc `yaml:"sk"`
}

type attributeDoc struct {
	Type     AttributeType `yaml:"type"`
	Required bool          `yaml:"required,omitempty"`
	Access   string        `yaml:"access"`
	Enum     []string      `yaml:"enum,omitempty"`
	Items    AttributeType `yaml:"items,omitempty"`
}

type referenceDoc struct {
	Type             ReferenceType `yaml:"type"`
	Target           string        `yaml:"target"`
	RemoveDependents bool          `yaml:"removeDependents,omitempty"`
	SortKeys         []string      `yaml:"sortKeys,omitempty"`
}

type schemaDoc struct {
	Model       string                  `yaml:"model"`
	Collection  string                  `yaml:"collection"`
	Service     string                  `yaml:"service"`
	Version     int                     `yaml:"version"`
	// NextVersion is stamped on records written by the next schema revision.
	NextVersion string                  `yaml:"nextVersion"`
	ID          string                  `yaml:"id"`
	Attributes  map[string]attributeDoc `yaml:"attributes"`
	Indexes     []indexDoc              `yaml:"indexes"`
	References  []referenceDoc          `yaml:"references,omitempty"`
}

// WriteYAML dumps every registered schema keyed by entity name, for tooling
// such as table provisioning.
func (d *Definitions) WriteYAML(w io.Writer) error {
	docs := make(map[string]schemaDoc, len(d.schemas))
	for name, s := range d.Entities() {
		docs[name] = describe(s)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"entities": docs}); err != nil {
		return fmt.Errorf("encode schemas: %w", err)
	}
	return enc.Close()
}

func describe(s *Schema) schemaDoc {
	doc := schemaDoc{
		Model:       s.ModelName(),
		Collection:  s.CollectionName(),
		Service:     s.ServiceName(),
		Version:     s.Version(),
		NextVersion: naming.IncrementVersion(strconv.Itoa(s.Version())),
		ID:          s.IDName(),
		Attributes:  make(map[string]attributeDoc),
	}
	for name, attr := range s.Attributes() {
		access, _ := s.AccessPolicy(name)
		doc.Attributes[name] = attributeDoc{
			Type:     attr.Type,
			Required: attr.Required,
			Access:   access.String(),
			Enum:     slices.Clone(attr.Enum),
			Items:    attr.Items,
		}
	}
	for _, idx := range s.Indexes() {
		doc.Indexes = append(doc.Indexes, indexDoc{
			Name:      idx.Name,
			IndexName: idx.IndexName,
			PK:        keyDoc{Field: idx.PK.Field, Facets: idx.PK.Facets, Template: idx.PK.Template},
			SK:        keyDoc{Field: idx.SK.Field, Facets: idx.SK.Facets, Template: idx.SK.Template},
		})
	}
	for _, ref := range s.References() {
		doc.References = append(doc.References, referenceDoc{
			Type:             ref.Type(),
			Target:           ref.Target(),
			RemoveDependents: ref.RemoveDependents(),
			SortKeys:         ref.SortKeys(),
		})
	}
	return doc
}
