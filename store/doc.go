// Package store provides a single-table DynamoDB layer with composite index keys.
//
// Every entity type shares one table. An [EntityDef] describes how an entity
// is laid out: its service and entity names, schema version and an ordered
// list of indexes whose partition and sort keys are composed from attribute
// values ("facets").
//
// # Key Layout
//
//   - partition key: "$<service>#<facet>_<value>..."
//   - sort key:      "$<entity>_<version>#<facet>_<value>..."
//   - markers:       every item carries "_entity" and "_version"
//
// Key values are lower-cased. Secondary indexes are sparse: an item only
// gets an index key when every facet of that index has a value.
//
// # Operations
//
//   - [Store.Get] fetches by primary key
//   - [Store.Query] reads one index by partition facets and a sort prefix
//   - [Store.Put] creates an item, failing if the primary key exists
//   - [Store.Patch] writes staged attributes and rebuilds touched index keys
//   - [Store.Delete] removes an item by primary key
//
// # Configuration
//
// Use [DefaultConfig] and [NewClient] to talk to AWS, or point Endpoint at
// DynamoDB Local:
//
//	cfg := store.DefaultConfig()
//	cfg.Endpoint = "http://localhost:8000"
//	client, err := store.NewClient(ctx, cfg)
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotFound] - item doesn't exist
//   - [ErrAlreadyExists] - primary key already taken
//   - [ErrIndexNotFound] - no index serves the requested keys
//   - [ErrMissingKey] - a required key facet has no value
//
// Every other client error is returned unchanged.
package store
