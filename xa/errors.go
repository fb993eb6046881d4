package xa

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDependency reports that a collaborator required for recovery
	// is not available in this process.
	ErrMissingDependency = errors.New("xa: missing dependency")
	// ErrUnsupported reports an XA operation or flag a resource does not implement.
	ErrUnsupported = errors.New("xa: operation not supported")
)

// SystemError is the failure reported to the coordinator when a named
// resource cannot be produced.
type SystemError struct {
	Resource string
	Err      error
}

func (e *SystemError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return fmt.Sprintf("xa: resource %s: system error", e.Resource)
	}
	return fmt.Sprintf("xa: resource %s: failed to create named resource: %v", e.Resource, e.Err)
}

// Unwrap returns the original cause.
func (e *SystemError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
