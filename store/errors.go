package store

import "errors"

var (
	// ErrNotFound is returned when an item doesn't exist.
	ErrNotFound = errors.New("store: item not found")

	// ErrAlreadyExists is returned when creating an item whose primary key is taken.
	ErrAlreadyExists = errors.New("store: item already exists")

	// ErrIndexNotFound is returned when a query names an index the entity doesn't declare.
	ErrIndexNotFound = errors.New("store: index not found")

	// ErrMissingKey is returned when a value needed to compose a required key is absent.
	ErrMissingKey = errors.New("store: missing key facet")
)
