package term

import (
	"errors"
	"fmt"
)

// ErrInputRejected is returned by Session.Write after the backing process
// has exited. The session stays addressable for scrollback review until it
// is explicitly released.
var ErrInputRejected = errors.New("input rejected: session process has exited")

// CreationError reports a failed process launch. The key is left
// unregistered, so the caller may retry with a corrected spec.
type CreationError struct {
	Spec ConsoleSpec
	Err  error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("failed to launch %q: %v", e.Spec.Command, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}
