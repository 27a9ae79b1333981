// Package recovery contains goroutine helpers with panic containment.
// A panic in one session's read pump must never take down the host and
// every other live session with it.
package recovery

import (
	"runtime/debug"

	"github.com/loocor/codmate/internal/logger"
)

// Go runs fn in a goroutine, logging and swallowing any panic
func Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("Panic recovered in goroutine %q: %v", name, r)
				logger.Debugf("Stack trace:\n%s", debug.Stack())
			}
		}()
		fn()
	}()
}
