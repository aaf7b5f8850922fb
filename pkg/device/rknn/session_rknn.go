//go:build rknn && cgo

package rknn

/*
#cgo LDFLAGS: -lrknnrt

#include <stdlib.h>
#include "rknn_api.h"
*/
import "C"

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/emergingrobotics/npu-segment/pkg/device"
	"github.com/emergingrobotics/npu-segment/pkg/driver"
)

// Session is an initialized rknn_context
type Session struct {
	ctx    C.rknn_context
	live   map[*device.Memory]*C.rknn_tensor_mem
	bound  map[*device.Memory]device.TensorKind
	slots  map[device.TensorKind]*device.Memory
	closed bool
}

// Open loads compiled graph bytes into a new runtime context
func Open(graph []byte, opts ...Option) (device.Session, error) {
	if len(graph) == 0 {
		return nil, driver.NewError(driver.StatusModelInvalid, "rknn: empty model")
	}
	o := buildOptions(opts)

	// The runtime only reads the model during init, so C memory can be
	// released right after.
	model := C.CBytes(graph)
	defer C.free(model)

	var ctx C.rknn_context
	ret := C.rknn_init(&ctx, model, C.uint32_t(len(graph)), 0, nil)
	if err := checkCode(int(ret), "init"); err != nil {
		return nil, err
	}

	if o.CoreMask != CoreAuto {
		ret = C.rknn_set_core_mask(ctx, C.rknn_core_mask(o.CoreMask))
		if err := checkCode(int(ret), "set core mask "+o.CoreMask.String()); err != nil {
			C.rknn_destroy(ctx)
			return nil, err
		}
	}

	return &Session{
		ctx:   ctx,
		live:  make(map[*device.Memory]*C.rknn_tensor_mem),
		bound: make(map[*device.Memory]device.TensorKind),
		slots: make(map[device.TensorKind]*device.Memory),
	}, nil
}

func queryCmd(kind device.TensorKind) (C.rknn_query_cmd, error) {
	switch kind {
	case device.KindInput:
		return C.RKNN_QUERY_INPUT_ATTR, nil
	case device.KindOutput:
		return C.RKNN_QUERY_OUTPUT_ATTR, nil
	case device.KindNativeNHWCOutput:
		return C.RKNN_QUERY_NATIVE_NHWC_OUTPUT_ATTR, nil
	default:
		return 0, device.ErrUnknownTensor
	}
}

func (s *Session) queryAttr(kind device.TensorKind, index int) (C.rknn_tensor_attr, error) {
	var attr C.rknn_tensor_attr
	if s.closed {
		return attr, driver.NewErrorWithCause(driver.StatusContextInvalid, "rknn: query", device.ErrSessionClosed)
	}
	cmd, err := queryCmd(kind)
	if err != nil {
		return attr, driver.NewErrorWithCause(driver.StatusParamInvalid, "rknn: query", err)
	}

	attr.index = C.uint32_t(index)
	ret := C.rknn_query(s.ctx, cmd, unsafe.Pointer(&attr), C.uint32_t(C.sizeof_rknn_tensor_attr))
	if err := checkCode(int(ret), fmt.Sprintf("query %s %d", kind, index)); err != nil {
		return attr, err
	}
	return attr, nil
}

// QueryTensor implements device.Session
func (s *Session) QueryTensor(kind device.TensorKind, index int) (device.TensorAttr, error) {
	attr, err := s.queryAttr(kind, index)
	if err != nil {
		return device.TensorAttr{}, err
	}

	n := int(attr.n_dims)
	if n > len(attr.dims) {
		n = len(attr.dims)
	}
	dims := make([]uint32, n)
	for i := range dims {
		dims[i] = uint32(attr.dims[i])
	}
	shape, layout, err := shapeFromDims(dims, tensorFormat(attr.fmt))
	if err != nil {
		return device.TensorAttr{}, driver.NewErrorWithCause(driver.StatusModelInvalid, "rknn: query", err)
	}

	return device.TensorAttr{
		Index:  index,
		Name:   C.GoString(&attr.name[0]),
		Kind:   kind,
		Shape:  shape,
		Layout: layout,
		Size:   shape.Size(),
	}, nil
}

// CreateMemory implements device.Session
func (s *Session) CreateMemory(size int) (*device.Memory, error) {
	if s.closed {
		return nil, driver.NewErrorWithCause(driver.StatusContextInvalid, "rknn: create memory", device.ErrSessionClosed)
	}
	if size <= 0 {
		return nil, driver.NewError(driver.StatusParamInvalid, "rknn: create memory")
	}

	cmem := C.rknn_create_mem(s.ctx, C.uint32_t(size))
	if cmem == nil {
		return nil, driver.NewError(driver.StatusMallocFail, fmt.Sprintf("rknn: create memory (%d bytes)", size))
	}

	mem := &device.Memory{
		Data:   unsafe.Slice((*byte)(cmem.virt_addr), size),
		Handle: cmem,
	}
	s.live[mem] = cmem
	return mem, nil
}

// Bind implements device.Session. Inputs are declared as uint8 NHWC, the
// format produced by the image suppliers.
func (s *Session) Bind(mem *device.Memory, attr device.TensorAttr) error {
	cmem, ok := s.live[mem]
	if !ok {
		return driver.NewErrorWithCause(driver.StatusParamInvalid, "rknn: bind", device.ErrForeignMemory)
	}
	if _, ok := s.bound[mem]; ok {
		return driver.NewErrorWithCause(driver.StatusParamInvalid, "rknn: bind", device.ErrAlreadyBound)
	}
	slot := attr.Kind
	if slot.IsOutput() {
		slot = device.KindOutput
	}
	if s.slots[slot] != nil {
		return driver.NewErrorWithCause(driver.StatusParamInvalid, "rknn: bind", device.ErrSlotOccupied)
	}

	cattr, err := s.queryAttr(attr.Kind, attr.Index)
	if err != nil {
		return err
	}
	if attr.Kind == device.KindInput {
		cattr._type = C.RKNN_TENSOR_UINT8
		cattr.fmt = C.RKNN_TENSOR_NHWC
	}

	ret := C.rknn_set_io_mem(s.ctx, cmem, &cattr)
	if err := checkCode(int(ret), "set io mem "+attr.Kind.String()); err != nil {
		return err
	}
	s.bound[mem] = slot
	s.slots[slot] = mem
	return nil
}

// Run implements device.Session. rknn_run cannot be interrupted; the
// context is only checked before the call.
func (s *Session) Run(ctx context.Context) error {
	if s.closed {
		return driver.NewErrorWithCause(driver.StatusContextInvalid, "rknn: run", device.ErrSessionClosed)
	}
	if s.slots[device.KindInput] == nil || s.slots[device.KindOutput] == nil {
		return driver.NewErrorWithCause(driver.StatusParamInvalid, "rknn: run", device.ErrUnboundTensors)
	}
	if err := ctx.Err(); err != nil {
		return driver.NewErrorWithCause(driver.StatusTimeout, "rknn: run", err)
	}
	return checkCode(int(C.rknn_run(s.ctx, nil)), "run")
}

// FreeMemory implements device.Session
func (s *Session) FreeMemory(mem *device.Memory) error {
	cmem, ok := s.live[mem]
	if !ok {
		return driver.NewErrorWithCause(driver.StatusParamInvalid, "rknn: free memory", device.ErrMemoryFreed)
	}
	delete(s.live, mem)
	if slot, ok := s.bound[mem]; ok {
		delete(s.bound, mem)
		delete(s.slots, slot)
	}
	mem.Data = nil
	return checkCode(int(C.rknn_destroy_mem(s.ctx, cmem)), "destroy mem")
}

// SDKVersion implements device.VersionReporter
func (s *Session) SDKVersion() (api, drv string, err error) {
	if s.closed {
		return "", "", driver.NewErrorWithCause(driver.StatusContextInvalid, "rknn: sdk version", device.ErrSessionClosed)
	}
	var v C.rknn_sdk_version
	ret := C.rknn_query(s.ctx, C.RKNN_QUERY_SDK_VERSION, unsafe.Pointer(&v), C.uint32_t(C.sizeof_rknn_sdk_version))
	if err := checkCode(int(ret), "query sdk version"); err != nil {
		return "", "", err
	}
	return C.GoString(&v.api_version[0]), C.GoString(&v.drv_version[0]), nil
}

// Close implements device.Session. Memory still live is destroyed first.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	var lastErr error
	for mem := range s.live {
		if err := s.FreeMemory(mem); err != nil {
			lastErr = err
		}
	}
	s.closed = true
	if err := checkCode(int(C.rknn_destroy(s.ctx)), "destroy"); err != nil {
		lastErr = err
	}
	return lastErr
}
