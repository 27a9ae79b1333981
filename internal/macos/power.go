//go:build darwin

// Package macos wraps IOKit power assertions so the host can keep the
// machine from idle-sleeping while agent sessions are running.
package macos

/*
#cgo LDFLAGS: -framework IOKit -framework CoreFoundation
#include <IOKit/pwr_mgt/IOPMLib.h>
#include <CoreFoundation/CoreFoundation.h>
*/
import "C"
import (
	"fmt"
	"unsafe"

	"github.com/loocor/codmate/internal/logger"
)

// PowerAssertion prevents system idle sleep while held
type PowerAssertion struct {
	assertionID C.IOPMAssertionID
	active      bool
	reason      string
}

// NewPowerAssertion acquires an idle-sleep assertion with the given reason
func NewPowerAssertion(reason string) (*PowerAssertion, error) {
	reasonCStr := C.CString(reason)
	defer C.free(unsafe.Pointer(reasonCStr))

	reasonCF := C.CFStringCreateWithCString(
		C.kCFAllocatorDefault,
		reasonCStr,
		C.kCFStringEncodingUTF8,
	)
	defer C.CFRelease(C.CFTypeRef(reasonCF))

	var assertionID C.IOPMAssertionID
	result := C.IOPMAssertionCreateWithName(
		C.kIOPMAssertionTypeNoIdleSleep,
		C.kIOPMAssertionLevelOn,
		reasonCF,
		&assertionID,
	)
	if result != C.kIOReturnSuccess {
		return nil, fmt.Errorf("failed to create power assertion: IOReturn %d", result)
	}

	logger.Infof("🔋 Holding power assertion (ID: %d): %s", assertionID, reason)
	return &PowerAssertion{
		assertionID: assertionID,
		active:      true,
		reason:      reason,
	}, nil
}

// Release drops the assertion; the system may sleep normally again
func (p *PowerAssertion) Release() error {
	if !p.active {
		return nil
	}

	result := C.IOPMAssertionRelease(p.assertionID)
	if result != C.kIOReturnSuccess {
		return fmt.Errorf("failed to release power assertion: IOReturn %d", result)
	}

	logger.Infof("🔋 Released power assertion (ID: %d): %s", p.assertionID, p.reason)
	p.active = false
	return nil
}

// IsActive reports whether the assertion is still held
func (p *PowerAssertion) IsActive() bool {
	return p.active
}
