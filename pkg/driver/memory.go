package driver

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PageSize is the allocation granularity of host memory
const PageSize = 4096

// HostMemory is a page-aligned anonymous mapping usable as a device-visible
// tensor buffer by backends that read and write through host pointers.
type HostMemory struct {
	data      []byte
	size      int
	allocated int
}

// AllocHostMemory maps size bytes of zeroed, page-aligned memory
func AllocHostMemory(size int) (*HostMemory, error) {
	if size <= 0 {
		return nil, NewError(StatusParamInvalid, "allocating host memory: size must be positive")
	}

	aligned := ((size + PageSize - 1) / PageSize) * PageSize

	data, err := unix.Mmap(-1, 0, aligned,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		var errno unix.Errno
		if errors.As(err, &errno) {
			return nil, StatusFromErrno(errno, "mmap host memory")
		}
		return nil, NewErrorWithCause(StatusMallocFail, "mmap host memory", err)
	}

	return &HostMemory{
		data:      data[:size],
		size:      size,
		allocated: aligned,
	}, nil
}

// Bytes returns the usable region of the mapping. It is nil after Free.
func (m *HostMemory) Bytes() []byte {
	return m.data
}

// Size returns the requested size in bytes
func (m *HostMemory) Size() int {
	return m.size
}

// Addr returns the address of the first byte, or 0 after Free
func (m *HostMemory) Addr() uintptr {
	if len(m.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&m.data[0]))
}

// Free unmaps the memory. Calling Free twice returns an error.
func (m *HostMemory) Free() error {
	if m.data == nil {
		return NewError(StatusParamInvalid, "freeing host memory: already freed")
	}

	full := unsafe.Slice(&m.data[0], m.allocated)
	m.data = nil
	if err := unix.Munmap(full); err != nil {
		var errno unix.Errno
		if errors.As(err, &errno) {
			return StatusFromErrno(errno, "munmap host memory")
		}
		return NewErrorWithCause(StatusFail, "munmap host memory", err)
	}
	return nil
}
