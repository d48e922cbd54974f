package store

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("store: entity not found")

	// ErrConflict is returned when an optimistic-concurrency (revision)
	// check fails — another writer updated the entity first.
	ErrConflict = errors.New("store: concurrent modification, retry")

	// ErrDuplicateRole is returned when a task already has a singleton
	// document role (primary/standard) bound.
	ErrDuplicateRole = errors.New("store: task already has a document of this role")
)
