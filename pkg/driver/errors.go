package driver

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Status is an NPU runtime status code. Values follow the vendor runtime,
// where success is zero and failures are negative.
type Status int

// NPU runtime status codes
const (
	StatusSuccess                      Status = 0
	StatusFail                         Status = -1
	StatusTimeout                      Status = -2
	StatusDeviceUnavailable            Status = -3
	StatusMallocFail                   Status = -4
	StatusParamInvalid                 Status = -5
	StatusModelInvalid                 Status = -6
	StatusContextInvalid               Status = -7
	StatusInputInvalid                 Status = -8
	StatusOutputInvalid                Status = -9
	StatusDeviceUnmatch                Status = -10
	StatusIncompatiblePrecompiledModel Status = -11
	StatusIncompatibleOptimization     Status = -12
	StatusTargetPlatformUnmatch        Status = -13
)

var statusMessages = map[Status]string{
	StatusSuccess:                      "success",
	StatusFail:                         "execution failed",
	StatusTimeout:                      "execution timeout",
	StatusDeviceUnavailable:            "device unavailable",
	StatusMallocFail:                   "memory allocation failed",
	StatusParamInvalid:                 "invalid parameter",
	StatusModelInvalid:                 "invalid model",
	StatusContextInvalid:               "invalid context",
	StatusInputInvalid:                 "invalid input",
	StatusOutputInvalid:                "invalid output",
	StatusDeviceUnmatch:                "device does not match model",
	StatusIncompatiblePrecompiledModel: "incompatible pre-compiled model",
	StatusIncompatibleOptimization:     "incompatible optimization level",
	StatusTargetPlatformUnmatch:        "model target platform does not match device",
}

// String returns the human-readable status message
func (s Status) String() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return fmt.Sprintf("unknown status (%d)", int(s))
}

// NPUError represents an error reported by the NPU driver or runtime
type NPUError struct {
	Status  Status
	Context string
	Cause   error
}

// Error implements the error interface
func (e *NPUError) Error() string {
	if e.Context != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Context, e.Status.String(), e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Context, e.Status.String())
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Status.String(), e.Cause)
	}
	return e.Status.String()
}

// Unwrap returns the underlying cause
func (e *NPUError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *NPUError with the same status
func (e *NPUError) Is(target error) bool {
	var npuErr *NPUError
	if errors.As(target, &npuErr) {
		return e.Status == npuErr.Status
	}
	return false
}

// NewError creates a new NPUError with the given status
func NewError(status Status, context string) *NPUError {
	return &NPUError{
		Status:  status,
		Context: context,
	}
}

// NewErrorWithCause creates a new NPUError with an underlying cause
func NewErrorWithCause(status Status, context string, cause error) *NPUError {
	return &NPUError{
		Status:  status,
		Context: context,
		Cause:   cause,
	}
}

// StatusOf extracts the runtime status carried by err. Errors that do not
// carry one report StatusFail; a nil error reports StatusSuccess.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var npuErr *NPUError
	if errors.As(err, &npuErr) {
		return npuErr.Status
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return ErrnoToStatus(errno)
	}
	return StatusFail
}

// ErrnoToStatus converts a Linux errno to an NPU status
func ErrnoToStatus(errno unix.Errno) Status {
	switch errno {
	case unix.ENOMEM, unix.ENOBUFS:
		return StatusMallocFail
	case unix.ETIMEDOUT:
		return StatusTimeout
	case unix.ENODEV, unix.ENOENT, unix.ENXIO, unix.EBUSY:
		return StatusDeviceUnavailable
	case unix.EINVAL, unix.EFAULT:
		return StatusParamInvalid
	case unix.EBADF:
		return StatusContextInvalid
	default:
		return StatusFail
	}
}

// StatusFromErrno creates an NPUError from an errno
func StatusFromErrno(errno unix.Errno, context string) *NPUError {
	return &NPUError{
		Status:  ErrnoToStatus(errno),
		Context: context,
		Cause:   errno,
	}
}
