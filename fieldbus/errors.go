package fieldbus

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport indicates that the bus driver failed. It is matched by every TransportError.
	ErrTransport = errors.New("transport error")

	// ErrDriverNotFound indicates that no driver is registered under the requested name.
	ErrDriverNotFound = errors.New("bus driver not found")

	// ErrSessionClosed indicates that the session was already shut down.
	ErrSessionClosed = errors.New("session closed")
)

var (
	// ErrNoSlavesFound indicates that slave discovery returned an empty bus.
	ErrNoSlavesFound = errors.New("no slaves found")

	// ErrSlaveMismatch indicates that a discovered slave does not match the slave directory.
	ErrSlaveMismatch = errors.New("slave does not match directory")

	// ErrBringUpTimeout indicates that the bus did not reach a requested state in time.
	// It is matched by every BringUpTimeoutError.
	ErrBringUpTimeout = errors.New("bring-up timeout")

	// ErrOperationalTimeout indicates that not every slave reported OPERATIONAL within the retry budget.
	ErrOperationalTimeout = errors.New("not all slaves reached operational state")
)

var (
	// ErrCalibrationInterrupted indicates that a calibration was canceled before completion.
	ErrCalibrationInterrupted = errors.New("calibration interrupted")

	// ErrCalibrationUnsuccessful indicates that the device reported a failed calibration.
	ErrCalibrationUnsuccessful = errors.New("unsuccessful calibration")

	// ErrCalibrationAlreadyRun indicates that the session already ran its calibration.
	ErrCalibrationAlreadyRun = errors.New("calibration already run in this session")

	// ErrInvalidBuffer indicates that an output buffer does not match the mapped size or the memory map.
	ErrInvalidBuffer = errors.New("invalid process data buffer")
)

// TransportError wraps a failure reported by the bus driver.
type TransportError struct {
	// Op names the driver operation, e.g. "open" or "discover".
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport %s failed", e.Op)
	}
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes every TransportError match ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// NewTransportError wraps err as a TransportError for operation op. A nil err yields nil.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

// BringUpTimeoutError names the state the bus failed to reach during bring-up.
type BringUpTimeoutError struct {
	// Want is the requested state.
	Want State
	// Lowest is the lowest state observed when the timeout expired.
	Lowest State
}

func (e *BringUpTimeoutError) Error() string {
	return fmt.Sprintf("bring-up timeout: %s not reached, lowest state %s", e.Want, e.Lowest)
}

// Is makes every BringUpTimeoutError match ErrBringUpTimeout.
func (e *BringUpTimeoutError) Is(target error) bool { return target == ErrBringUpTimeout }
