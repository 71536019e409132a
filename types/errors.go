package types

import "errors"

// Error categories. Concrete errors returned by the SDK match one of these
// through errors.Is.
var (
	ErrDeserialization      = errors.New("deserialization failed")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrUnsupportedProtocol  = errors.New("unsupported protocol")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrRetrieval            = errors.New("retrieval failed")
	ErrNotFound             = errors.New("not found")
)
