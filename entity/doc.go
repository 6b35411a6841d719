// Package entity is a relationship-aware entity runtime over the single-table store.
//
// An application declares each entity type once with a [SchemaBuilder],
// binds it to model and collection names with [NewSchema], registers every
// schema in a [Definitions] value and builds a [Registry] per store
// connection:
//
//	b, _ := entity.NewSchemaBuilder("Widget", 1, "SpaceCat")
//	raw, err := b.
//	    AddAttribute("name", entity.Attribute{Type: entity.TypeString, Required: true}).
//	    AddReference(entity.BelongsTo, "Site").
//	    Build()
//	schema, err := entity.NewSchema("Widget", "WidgetCollection", raw)
//
//	defs := entity.NewDefinitions()
//	_ = defs.Register(schema)
//	reg := entity.NewRegistry(store.New(client, store.DefaultConfig()), defs, logger)
//
// # Models
//
// A [Model] wraps one record. Attributes are read with [Model.Get] and staged
// with [Model.Set], which validates through the model's [Patcher] and
// refuses identity and read-only attributes. [Model.Save] persists staged
// changes, carrying along every index facet the store needs to rebuild keys.
//
// Relationship accessors are generated from the schema's references and
// invoked by name with [Model.Call]:
//
//   - belongs_to Site:  "getSite"
//   - has_one Profile:  "getProfile"
//   - has_many Widget:  "getWidgets", plus "getWidgetsByUpdatedAt" and so on
//     for each prefix of the sort keys declared on the reciprocal belongs_to
//
// [Model.Remove] removes the entity together with the dependents of every
// reference declared with [WithRemoveDependents]. Removals run concurrently
// and fail fast without rollback.
//
// # Errors
//
//   - [ErrValidation] - a value was rejected before reaching the store
//   - [ErrConfiguration] - a schema, reference or accessor is malformed
//   - [ErrCollectionNotFound] - no collection is registered under a name
//   - [ErrAccessorNotFound] - no accessor is installed under a name
//
// Store errors are returned unchanged.
package entity
