package sim

import (
	"context"
	"fmt"

	"github.com/emergingrobotics/npu-segment/pkg/device"
	"github.com/emergingrobotics/npu-segment/pkg/driver"
	"github.com/emergingrobotics/npu-segment/pkg/transform"
)

// Session executes a Graph on the CPU. Buffers are page-aligned anonymous
// mappings, as a real NPU would require.
type Session struct {
	graph  *Graph
	live   map[*device.Memory]*driver.HostMemory
	input  *device.Memory
	output *device.Memory
	// outLayout is the layout requested when the output was bound
	outLayout device.Layout
	closed    bool
}

// Open parses graph bytes and returns a session. It satisfies
// device.Opener.
func Open(graph []byte) (device.Session, error) {
	g, err := ParseGraph(graph)
	if err != nil {
		return nil, driver.NewErrorWithCause(driver.StatusModelInvalid, "sim: loading graph", err)
	}
	return NewSession(g), nil
}

// NewSession creates a session for an already parsed graph
func NewSession(g *Graph) *Session {
	return &Session{
		graph: g,
		live:  make(map[*device.Memory]*driver.HostMemory),
	}
}

// QueryTensor implements device.Session
func (s *Session) QueryTensor(kind device.TensorKind, index int) (device.TensorAttr, error) {
	if s.closed {
		return device.TensorAttr{}, driver.NewErrorWithCause(driver.StatusContextInvalid, "sim: query", device.ErrSessionClosed)
	}
	if index != 0 {
		return device.TensorAttr{}, driver.NewErrorWithCause(driver.StatusParamInvalid,
			fmt.Sprintf("sim: %s tensor %d", kind, index), device.ErrUnknownTensor)
	}

	var desc TensorDesc
	layout := device.LayoutNHWC
	switch kind {
	case device.KindInput:
		desc = s.graph.Input
	case device.KindOutput:
		desc = s.graph.Output
		layout = s.graph.OutputLayout
	case device.KindNativeNHWCOutput:
		desc = s.graph.Output
	default:
		return device.TensorAttr{}, driver.NewErrorWithCause(driver.StatusParamInvalid, "sim: query", device.ErrUnknownTensor)
	}

	return device.TensorAttr{
		Index:  index,
		Name:   desc.Name,
		Kind:   kind,
		Shape:  desc.Shape,
		Layout: layout,
		Size:   desc.Shape.Size(),
	}, nil
}

// CreateMemory implements device.Session
func (s *Session) CreateMemory(size int) (*device.Memory, error) {
	if s.closed {
		return nil, driver.NewErrorWithCause(driver.StatusContextInvalid, "sim: create memory", device.ErrSessionClosed)
	}
	host, err := driver.AllocHostMemory(size)
	if err != nil {
		return nil, err
	}
	mem := &device.Memory{Data: host.Bytes(), Handle: host}
	s.live[mem] = host
	return mem, nil
}

// Bind implements device.Session
func (s *Session) Bind(mem *device.Memory, attr device.TensorAttr) error {
	if s.closed {
		return driver.NewErrorWithCause(driver.StatusContextInvalid, "sim: bind", device.ErrSessionClosed)
	}
	if _, ok := s.live[mem]; !ok {
		return driver.NewErrorWithCause(driver.StatusParamInvalid, "sim: bind", device.ErrForeignMemory)
	}
	if mem == s.input || mem == s.output {
		return driver.NewErrorWithCause(driver.StatusParamInvalid, "sim: bind", device.ErrAlreadyBound)
	}

	want, err := s.QueryTensor(attr.Kind, attr.Index)
	if err != nil {
		return err
	}
	if mem.Size() < want.Size {
		return driver.NewErrorWithCause(driver.StatusParamInvalid, "sim: bind", device.ErrSizeMismatch)
	}

	if attr.Kind.IsOutput() {
		if s.output != nil {
			return driver.NewErrorWithCause(driver.StatusOutputInvalid, "sim: bind", device.ErrSlotOccupied)
		}
		s.output = mem
		s.outLayout = want.Layout
		return nil
	}
	if s.input != nil {
		return driver.NewErrorWithCause(driver.StatusInputInvalid, "sim: bind", device.ErrSlotOccupied)
	}
	s.input = mem
	return nil
}

// Run implements device.Session. The context is checked once per output
// row. Scores are computed channel-innermost and transposed afterwards for
// an NCHW output.
func (s *Session) Run(ctx context.Context) error {
	if s.closed {
		return driver.NewErrorWithCause(driver.StatusContextInvalid, "sim: run", device.ErrSessionClosed)
	}
	if s.input == nil || s.output == nil {
		return driver.NewErrorWithCause(driver.StatusParamInvalid, "sim: run", device.ErrUnboundTensors)
	}

	in, out := s.graph.Input.Shape, s.graph.Output.Shape
	src, dst := s.input.Data, s.output.Data
	classes := s.graph.Classes

	scores := dst
	if s.outLayout == device.LayoutNCHW {
		scores = make([]uint8, out.Height*out.Width*len(classes))
	}

	for oy := 0; oy < out.Height; oy++ {
		if err := ctx.Err(); err != nil {
			return driver.NewErrorWithCause(driver.StatusTimeout, "sim: run", err)
		}
		iy := oy * in.Height / out.Height
		for ox := 0; ox < out.Width; ox++ {
			ix := ox * in.Width / out.Width
			r, g, b := samplePixel(src, (iy*in.Width+ix)*in.Channels, in.Channels)

			p := oy*out.Width + ox
			for c, class := range classes {
				scores[p*len(classes)+c] = Score(r, g, b, class)
			}
		}
	}

	if s.outLayout == device.LayoutNCHW {
		transform.NHWCToNCHW(scores, dst, out.Height, out.Width, len(classes))
	}
	return nil
}

func samplePixel(src []byte, off, channels int) (r, g, b uint8) {
	if channels == 1 {
		return src[off], src[off], src[off]
	}
	return src[off], src[off+1], src[off+2]
}

// Score is the response of a class to a pixel: 255 minus the mean absolute
// channel difference from the class color
func Score(r, g, b uint8, c Class) uint8 {
	d := absDiff(r, c.R) + absDiff(g, c.G) + absDiff(b, c.B)
	return uint8(255 - d/3)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// FreeMemory implements device.Session
func (s *Session) FreeMemory(mem *device.Memory) error {
	host, ok := s.live[mem]
	if !ok {
		return driver.NewErrorWithCause(driver.StatusParamInvalid, "sim: free memory", device.ErrMemoryFreed)
	}
	delete(s.live, mem)
	if s.input == mem {
		s.input = nil
	}
	if s.output == mem {
		s.output = nil
	}
	mem.Data = nil
	return host.Free()
}

// SDKVersion implements device.VersionReporter
func (s *Session) SDKVersion() (api, drv string, err error) {
	return "sim", fmt.Sprintf("graph v%d", GraphVersion), nil
}

// LiveMemory returns the number of buffers not yet freed
func (s *Session) LiveMemory() int {
	return len(s.live)
}

// Close implements device.Session. Buffers still live are freed.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var lastErr error
	for mem := range s.live {
		if err := s.FreeMemory(mem); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
