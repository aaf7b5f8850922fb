// Package rknn opens device sessions on Rockchip NPUs through the vendor
// runtime library (librknnrt).
//
// The cgo backend is compiled only with the rknn build tag, since it needs
// rknn_api.h and librknnrt.so from the Rockchip SDK:
//
//	go build -tags rknn ./cmd/segment
//
// Without the tag Open returns ErrUnavailable.
package rknn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emergingrobotics/npu-segment/pkg/device"
	"github.com/emergingrobotics/npu-segment/pkg/driver"
)

// ErrUnavailable is returned when the binary was built without the vendor runtime
var ErrUnavailable = errors.New("rknn: runtime not compiled in (build with -tags rknn)")

// CoreMask selects the NPU cores a context may run on. Values match
// rknn_core_mask.
type CoreMask uint32

const (
	CoreAuto  CoreMask = 0
	Core0     CoreMask = 1
	Core1     CoreMask = 2
	Core2     CoreMask = 4
	Core0_1   CoreMask = Core0 | Core1
	Core0_1_2 CoreMask = Core0 | Core1 | Core2
)

// Names start with a letter so that YAML keeps them as strings.
var coreMaskNames = map[string]CoreMask{
	"auto":      CoreAuto,
	"core0":     Core0,
	"core1":     Core1,
	"core2":     Core2,
	"core0_1":   Core0_1,
	"core0_1_2": Core0_1_2,
}

// ParseCoreMask parses a core selection such as "auto", "core0" or
// "core0_1_2"
func ParseCoreMask(s string) (CoreMask, error) {
	m, ok := coreMaskNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("rknn: unknown core mask %q", s)
	}
	return m, nil
}

func (m CoreMask) String() string {
	for name, v := range coreMaskNames {
		if v == m {
			return name
		}
	}
	return fmt.Sprintf("mask(%#x)", uint32(m))
}

// Options configure a session
type Options struct {
	CoreMask CoreMask
}

// Option modifies Options
type Option func(*Options)

// WithCoreMask pins the session to the given cores
func WithCoreMask(m CoreMask) Option {
	return func(o *Options) {
		o.CoreMask = m
	}
}

// Opener returns a device.Opener creating sessions with the given options
func Opener(opts ...Option) device.Opener {
	return func(graph []byte) (device.Session, error) {
		return Open(graph, opts...)
	}
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// statusFromCode maps a runtime return code onto driver.Status. The vendor
// codes and driver.Status share values; codes outside the known range
// report StatusFail.
func statusFromCode(code int) driver.Status {
	s := driver.Status(code)
	if s > driver.StatusSuccess || s < driver.StatusTargetPlatformUnmatch {
		return driver.StatusFail
	}
	return s
}

// checkCode converts a non-zero runtime return code into an *NPUError
func checkCode(code int, op string) error {
	if code == 0 {
		return nil
	}
	return driver.NewError(statusFromCode(code), "rknn: "+op)
}

// tensorFormat mirrors rknn_tensor_format
type tensorFormat int

const (
	formatNCHW tensorFormat = 0
	formatNHWC tensorFormat = 1
)

// shapeFromDims reads a batch-1 4-d tensor description. NHWC tensors are
// [n, h, w, c], NCHW ones [n, c, h, w].
func shapeFromDims(dims []uint32, format tensorFormat) (device.Shape, device.Layout, error) {
	if len(dims) != 4 {
		return device.Shape{}, device.LayoutUndefined, fmt.Errorf("rknn: %d-d tensor, expected 4", len(dims))
	}
	if dims[0] != 1 {
		return device.Shape{}, device.LayoutUndefined, fmt.Errorf("rknn: batch %d, expected 1", dims[0])
	}

	switch format {
	case formatNHWC:
		return device.Shape{Height: int(dims[1]), Width: int(dims[2]), Channels: int(dims[3])}, device.LayoutNHWC, nil
	case formatNCHW:
		return device.Shape{Height: int(dims[2]), Width: int(dims[3]), Channels: int(dims[1])}, device.LayoutNCHW, nil
	default:
		return device.Shape{}, device.LayoutUndefined, fmt.Errorf("rknn: unsupported tensor format %d", format)
	}
}
