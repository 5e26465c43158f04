// Package services implements the business logic of the moderation engine:
// the moderation store, the action executor, the tool catalog, the command
// interpreter adapter, and the message pipeline. This file centralizes the
// service-level error values so they can be consistently returned by service
// methods and checked by callers with errors.Is.
//
// Propagation rules:
//   - ErrStoreUnavailable and remote API failures are caught at the component
//     boundary that issued the call and converted into {success,message}
//     results — they never cross component boundaries as raw errors.
//   - ErrNotFound is used only where "absent" is meaningful to the caller
//     (notes, filters, stats); settings always resolve to a value.
package services

import "errors"

var (
	// ErrStoreUnavailable indicates the backing store could not be reached
	// or the operation failed at the persistence layer. Callers surface it
	// as a user-facing but non-fatal message; it never crashes the pipeline.
	ErrStoreUnavailable = errors.New("moderation store unavailable")

	// ErrInvalidKey is returned when a store operation is attempted with an
	// empty chat ID, note name, or filter keyword.
	ErrInvalidKey = errors.New("invalid key")

	// ErrNotFound indicates the requested entity does not exist. It is a
	// meaningful caller-visible case for notes, filters, and stats — never
	// for settings, which default instead.
	ErrNotFound = errors.New("not found")
)
