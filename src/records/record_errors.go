package records

import "errors"

// ErrTypeMismatch is returned when a value's runtime type does not match
// the field's declared type tag.
var ErrTypeMismatch = errors.New("trying to assign incorrect type")

// ErrFieldWrite is returned when the driver rejects a field assignment.
var ErrFieldWrite = errors.New("failed to write field")

// ErrPersistence is returned when the driver rejects a record commit,
// creation or row operation.
var ErrPersistence = errors.New("failed to persist record")

// ErrInvalidArgument is returned for out-of-range arguments, such as a
// non-positive row quantity.
var ErrInvalidArgument = errors.New("invalid argument")
