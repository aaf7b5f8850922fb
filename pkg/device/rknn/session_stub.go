//go:build !rknn || !cgo

package rknn

import "github.com/emergingrobotics/npu-segment/pkg/device"

// Open always fails in builds without the vendor runtime
func Open(graph []byte, opts ...Option) (device.Session, error) {
	return nil, ErrUnavailable
}
