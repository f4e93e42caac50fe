// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// lifecycle service to distinguish between different failure scenarios.
// ErrNotFound is returned by every point lookup that matches no record,
// while ErrConflict signals that a write collided with an existing record
// (e.g. a second payment for the same reservation).
package repository

import "errors"

// ErrNotFound is returned when a lookup by id matches no record.  The
// SQL repositories translate sql.ErrNoRows into this value.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with an existing
// primary or unique key.
var ErrConflict = errors.New("conflict")

// ErrInvalidSort is returned by listings asked to sort on a column that
// is not sortable.
var ErrInvalidSort = errors.New("invalid sort")
