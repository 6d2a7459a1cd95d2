package store

import "errors"

// ErrRecordNotFound names a missing record. InMemoryStore.FindByID does not
// return it; a lookup by id that finds nothing returns (nil, nil).
var ErrRecordNotFound = errors.New("store: record not found")

// ErrDefinitionNotFound is returned when a lookup by name finds no definition.
var ErrDefinitionNotFound = errors.New("store: definition not found")
