package infer

import (
	"fmt"

	"github.com/emergingrobotics/npu-segment/pkg/device"
	"github.com/emergingrobotics/npu-segment/pkg/driver"
)

// inferError is a simple error type for the infer package
type inferError string

func (e inferError) Error() string { return string(e) }

// Errors for binding and inference operations
const (
	ErrBufferSizeMismatch = inferError("buffer size mismatch")
	ErrDegenerateShape    = inferError("tensor has a zero dimension")
	ErrAlreadyReleased    = inferError("binding already released")
	ErrInferenceTimeout   = inferError("inference timed out")
	ErrNilSession         = inferError("session is nil")
	ErrForeignBinding     = inferError("binding does not belong to this binder")
)

// ShapeQueryError reports that the session could not describe a tensor slot
type ShapeQueryError struct {
	Kind  device.TensorKind
	Index int
	Err   error
}

func (e *ShapeQueryError) Error() string {
	return fmt.Sprintf("querying %s tensor %d: %v", e.Kind, e.Index, e.Err)
}

func (e *ShapeQueryError) Unwrap() error { return e.Err }

// BindError reports that allocating or binding a tensor buffer failed
type BindError struct {
	Kind device.TensorKind
	Size int
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("binding %d byte %s buffer: %v", e.Size, e.Kind, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// InferenceError reports a non-success run. Output buffers are undefined
// after it.
type InferenceError struct {
	Status driver.Status
	Err    error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed (status %d): %v", int(e.Status), e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
