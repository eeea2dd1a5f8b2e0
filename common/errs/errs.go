package errs

// ErrorKind identifies a kind of internal error.
// fully support for errors.Is and errors.As.
type ErrorKind string

const (
	// NotFound is returned when a requested item is not found.
	NotFound = ErrorKind("Not Found")

	// InvalidArgument is returned when an input does not satisfy the contract of the callee.
	// Provider data that cannot be reconstructed into a canonical transaction is reported with this kind.
	InvalidArgument = ErrorKind("Invalid Argument")

	// Unsupported is returned when a feature or a configuration value is known but not implemented.
	Unsupported = ErrorKind("Unsupported")

	// InternalError is returned when an invariant of the indexer is broken.
	InternalError = ErrorKind("Internal Error")

	// Timeout is returned when an operation did not complete in time.
	Timeout = ErrorKind("Timeout")

	// Closed is returned when a stream or resource is used after it was shut down.
	Closed = ErrorKind("Closed")

	OverflowUint128 = ErrorKind("overflow uint128")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}
