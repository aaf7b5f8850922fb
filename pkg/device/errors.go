package device

import "errors"

// Errors for device operations
var (
	ErrNoDevices      = errors.New("no NPU devices found")
	ErrSessionClosed  = errors.New("device session is closed")
	ErrAlreadyBound   = errors.New("memory is already bound to a tensor slot")
	ErrSlotOccupied   = errors.New("tensor slot already has bound memory")
	ErrUnknownTensor  = errors.New("no such tensor slot")
	ErrForeignMemory  = errors.New("memory was not created by this session")
	ErrMemoryFreed    = errors.New("memory already freed")
	ErrSizeMismatch   = errors.New("memory size does not match tensor size")
	ErrUnboundTensors = errors.New("input and output slots must be bound before run")
)
