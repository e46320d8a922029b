// Package xerr defines the error taxonomy shared by wire, schema, and
// plan: malformed input, type mismatch, unexpected type, unexpected
// sub-type, recursion, length mismatch, metadata timeout, and null in
// non-nullable. Plain sentinel errors are used where no payload is
// needed; struct types are used where a caller benefits from the
// offending value.
package xerr

import (
	"errors"
	"fmt"
	"reflect"
)

// Sentinel errors with no payload, matching the style of
// dynamic.UnknownTagNumberError and codec.ErrOverflow: exported
// package-level vars of type error, constructed with errors.New.
var (
	// ErrMalformedInput covers an invalid varint, unknown wire-type, a
	// sub-item overrun, or a missing end-group marker.
	ErrMalformedInput = errors.New("wire: malformed input")
	// ErrOverflow is returned when a varint needs more than 10 bytes.
	ErrOverflow = errors.New("wire: varint overflow")
	// ErrTruncatedInput is returned when a read would consume past a
	// declared sub-message length or past the end of the input.
	ErrTruncatedInput = errors.New("wire: truncated input")
	// ErrOutOfSpace is returned when a write cannot obtain buffer memory.
	ErrOutOfSpace = errors.New("wire: out of space")
	// ErrRecursion is raised when recursion checking is enabled and an
	// object identity already in progress is encountered again.
	ErrRecursion = errors.New("plan: recursive object graph detected")
	// ErrUnknownEnumValue is raised when an enum decorator reads a wire
	// integer with no matching variant and no catch-all is configured.
	ErrUnknownEnumValue = errors.New("plan: unknown enum value")
	// ErrNullNotAllowed is raised when writing a nil message value for
	// a field flagged schema.Required.
	ErrNullNotAllowed = errors.New("plan: null value not allowed for non-nullable field")
	// ErrFieldNumberConflict is raised by TypeEntry.AddField and
	// TypeEntry.AddSubType when a number is not positive or is already
	// used within that one entry; numbers are not compared across the
	// entries of a base/derived tree.
	ErrFieldNumberConflict = errors.New("schema: field number already used in this type's tree")
	// ErrBadWireType is raised when a wire type met while reading or
	// writing does not fit the value being read or written (Reader.Assert,
	// Reader.StartSubItem, the Writer's pending-type check, scalar reads).
	// Registration does not validate declared wire types.
	ErrBadWireType = errors.New("schema: wire-type not legal for this value type")
	// ErrAutoAddDisabled is raised when a runtime value's type has no
	// registry entry and WithAutoAddMissingTypes was not set.
	ErrAutoAddDisabled = errors.New("schema: unregistered type and auto-add is disabled")
	// ErrRegistryFrozen is raised by Register and RegisterAlias once
	// Freeze has been called.
	ErrRegistryFrozen = errors.New("schema: registry is frozen")
)

// UnexpectedTypeError means a runtime value's type is not registered
// and auto-add is off; kept distinct from ErrAutoAddDisabled so callers
// can recover the offending type.
type UnexpectedTypeError struct {
	Type reflect.Type
}

func (e *UnexpectedTypeError) Error() string {
	return fmt.Sprintf("schema: type %v is not registered", e.Type)
}

func (e *UnexpectedTypeError) Is(target error) bool {
	return target == ErrAutoAddDisabled
}

// UnexpectedSubTypeError means a runtime type is not covered by the
// static type's sub-type table.
type UnexpectedSubTypeError struct {
	Base, Actual reflect.Type
}

func (e *UnexpectedSubTypeError) Error() string {
	return fmt.Sprintf("plan: %v is not a registered sub-type of %v", e.Actual, e.Base)
}

// LengthMismatchError means a cached/measured sub-message length did
// not match the length actually observed when serialized.
type LengthMismatchError struct {
	Measured, Observed int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("plan: measured length %d does not match observed length %d (value mutated between passes)", e.Measured, e.Observed)
}

// MetadataTimeoutError means the registry's single-writer lock was not
// acquired within its configured deadline. Holder carries the program
// counters of the writer that timed out (not of the goroutine holding
// the lock), captured via runtime.Callers, for diagnostics.
type MetadataTimeoutError struct {
	Holder []uintptr
}

func (e *MetadataTimeoutError) Error() string {
	return "schema: metadata lock not acquired before deadline"
}

func (e *MetadataTimeoutError) Is(target error) bool {
	return target == errMetadataTimeout
}

var errMetadataTimeout = errors.New("schema: metadata timeout")

// ErrMetadataTimeout is the sentinel usable with errors.Is against a
// *MetadataTimeoutError.
var ErrMetadataTimeout = errMetadataTimeout
