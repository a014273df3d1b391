// Package sentinel defines the errors stores use to report infrastructure
// facts. Services translate these into coded domain errors; stores never
// import pkg/domain-errors, which keeps the dependency arrow pointing one
// way.
package sentinel

import "errors"

var (
	// ErrNotFound reports that a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a uniqueness violation, such as a second patient
	// record for the same user.
	ErrConflict = errors.New("conflict")
)
