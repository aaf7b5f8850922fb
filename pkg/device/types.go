package device

import "fmt"

// TensorKind selects which family of tensor slots a query refers to
type TensorKind int

const (
	// KindInput is a model input slot
	KindInput TensorKind = iota
	// KindOutput is a model output slot in the model's declared layout
	KindOutput
	// KindNativeNHWCOutput is a model output slot in the device's native
	// channel-innermost layout, readable without conversion
	KindNativeNHWCOutput
)

// String returns the slot family name
func (k TensorKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	case KindNativeNHWCOutput:
		return "native_nhwc_output"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsOutput reports whether the kind addresses an output slot
func (k TensorKind) IsOutput() bool {
	return k == KindOutput || k == KindNativeNHWCOutput
}

// Layout is the memory order of a tensor
type Layout int

const (
	LayoutNHWC Layout = iota
	LayoutNCHW
	LayoutUndefined
)

func (l Layout) String() string {
	switch l {
	case LayoutNHWC:
		return "NHWC"
	case LayoutNCHW:
		return "NCHW"
	default:
		return "UNDEFINED"
	}
}

// Shape represents tensor dimensions of a single (batch 1) tensor
type Shape struct {
	Height   int
	Width    int
	Channels int
}

// Size returns the total number of elements
func (s Shape) Size() int {
	return s.Height * s.Width * s.Channels
}

// Valid reports whether every dimension is positive
func (s Shape) Valid() bool {
	return s.Height > 0 && s.Width > 0 && s.Channels > 0
}

func (s Shape) String() string {
	return fmt.Sprintf("%d x %d x %d", s.Height, s.Width, s.Channels)
}

// TensorAttr describes one tensor slot as reported by a session
type TensorAttr struct {
	Index  int
	Name   string
	Kind   TensorKind
	Shape  Shape
	Layout Layout
	// Size is the byte size of the tensor (one byte per element for the
	// uint8 tensors this package deals with)
	Size int
}

// Memory is a device-visible buffer created by a Session. Data is host
// addressable for the lifetime of the buffer; it must not be retained
// after the buffer is freed.
type Memory struct {
	Data []byte
	// Handle is backend specific
	Handle any
}

// Size returns the buffer size in bytes
func (m *Memory) Size() int {
	return len(m.Data)
}
