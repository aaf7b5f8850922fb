package device

import "context"

// Session is an open neural graph on an accelerator. A session is owned by
// one caller at a time; implementations are not required to be safe for
// concurrent use.
//
// Memory returned by CreateMemory must be freed with FreeMemory before
// Close. FreeMemory also unbinds the memory from its slot.
type Session interface {
	// QueryTensor reports the attributes of tensor slot index of the given kind
	QueryTensor(kind TensorKind, index int) (TensorAttr, error)
	// CreateMemory allocates size bytes of device-visible memory
	CreateMemory(size int) (*Memory, error)
	// Bind attaches mem to the slot described by attr
	Bind(mem *Memory, attr TensorAttr) error
	// Run executes one synchronous forward pass over the bound memory
	Run(ctx context.Context) error
	// FreeMemory unbinds and releases mem
	FreeMemory(mem *Memory) error
	// Close tears the session down
	Close() error
}

// Opener creates a Session from compiled graph bytes
type Opener func(graph []byte) (Session, error)

// VersionReporter is implemented by sessions that can name the runtime and
// driver they execute on
type VersionReporter interface {
	SDKVersion() (api, drv string, err error)
}
