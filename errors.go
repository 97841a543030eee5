package thermalcapture

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoCameraFound is returned by DiscoverOne when every scanned transport
// finished without reporting a camera.
var ErrNoCameraFound = errors.New("thermal-capture: no camera found")

// Condition is a device error condition code.
//
// The set mirrors the conditions a camera or its transport can report; it is
// deliberately flat so classification stays a pure table lookup.
type Condition int

const (
	// CondUnknown is an unclassified device error.
	CondUnknown Condition = iota
	// CondConnectionTimeout means a connection attempt timed out. Terminating.
	CondConnectionTimeout
	// CondInvalidLogin means the camera rejected the supplied credentials.
	CondInvalidLogin
	// CondInvalidIdentity means the identity does not describe a reachable camera.
	CondInvalidIdentity
	// CondNotConnected means an operation required a connected camera.
	CondNotConnected
	// CondAlreadyStreaming means a stream is already active on the camera.
	CondAlreadyStreaming
	// CondInterfaceNotSupported means the transport cannot be scanned.
	CondInterfaceNotSupported
	// CondAlreadyScanning means a scan is already active on the transport.
	// Informative only; it does not terminate the current scan.
	CondAlreadyScanning
	// CondCouldNotRender means the renderer could not produce an image.
	CondCouldNotRender
	// CondCanceled means the operation was canceled.
	CondCanceled
	// CondCorruptFrame means a received frame was corrupt.
	CondCorruptFrame
	// CondNUCInProgress means the camera is performing a non-uniformity
	// correction; frames pause briefly and resume on their own.
	CondNUCInProgress
	// CondTryAgain means a temporary resource problem occurred.
	CondTryAgain
)

// String returns the condition name.
func (c Condition) String() string {
	switch c {
	case CondUnknown:
		return "unknown"
	case CondConnectionTimeout:
		return "connection_timeout"
	case CondInvalidLogin:
		return "invalid_login"
	case CondInvalidIdentity:
		return "invalid_identity"
	case CondNotConnected:
		return "not_connected"
	case CondAlreadyStreaming:
		return "already_streaming"
	case CondInterfaceNotSupported:
		return "interface_not_supported"
	case CondAlreadyScanning:
		return "already_scanning"
	case CondCouldNotRender:
		return "could_not_render"
	case CondCanceled:
		return "canceled"
	case CondCorruptFrame:
		return "corrupt_frame"
	case CondNUCInProgress:
		return "nuc_in_progress"
	case CondTryAgain:
		return "try_again"
	default:
		return fmt.Sprintf("condition(%d)", int(c))
	}
}

// DeviceError is an error reported by a camera, its transport, or a
// collaborator acting on its behalf.
type DeviceError struct {
	// Condition is the device error condition.
	Condition Condition
	// Detail is an optional human readable message from the device layer.
	Detail string
}

// NewDeviceError builds a DeviceError for the given condition.
func NewDeviceError(cond Condition, detail string) *DeviceError {
	return &DeviceError{Condition: cond, Detail: detail}
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("device error [%s]: %s", e.Condition, e.Detail)
	}
	return fmt.Sprintf("device error [%s]", e.Condition)
}

// ErrorCondition extracts the device condition from err. Errors that do not
// carry a DeviceError anywhere in their chain report CondUnknown.
func ErrorCondition(err error) Condition {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Condition
	}
	return CondUnknown
}

// ErrorClass is the classification of a device error.
type ErrorClass int

const (
	// ClassFatal means the session or flow cannot continue. Fatal errors
	// surface to the caller as returned errors, never as a process exit from
	// inside the library.
	ClassFatal ErrorClass = iota
	// ClassTransient is a recoverable device condition; a streaming loop
	// absorbs it and continues.
	ClassTransient
	// ClassIgnorable is informational only and at most worth a log line.
	ClassIgnorable
)

// String returns a human-readable string representation of the error class.
func (c ErrorClass) String() string {
	switch c {
	case ClassFatal:
		return "fatal"
	case ClassTransient:
		return "transient"
	case ClassIgnorable:
		return "ignorable"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Classify maps a device error to its class. Deterministic and pure: the
// classification, not the raw condition, is what drives control flow in the
// discovery and streaming paths.
//
// Policy:
//   - nil classifies as Ignorable (nothing happened)
//   - NUC in progress and try-again classify as Transient
//   - already-scanning classifies as Ignorable (informative by contract)
//   - everything else, including conditions this package does not know,
//     classifies as Fatal
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassIgnorable
	}
	switch ErrorCondition(err) {
	case CondNUCInProgress, CondTryAgain:
		return ClassTransient
	case CondAlreadyScanning:
		return ClassIgnorable
	default:
		return ClassFatal
	}
}

// auditInvalidLogin writes the security audit record for a rejected login.
// This is a side channel on top of normal error propagation: the failed
// connect still surfaces to the caller as a fatal error.
func auditInvalidLogin(identity Identity) {
	slog.Warn("security: invalid login attempt against camera",
		"audit", true,
		"device_id", identity.DeviceID,
		"address", identity.Address,
		"transport", identity.Transport.String(),
	)
}
