// Package sim provides a software NPU: a device.Session that executes a
// small nearest-prototype segmentation graph on the CPU. It stands in for
// the accelerator on hosts that have none.
//
// Graph file layout (little-endian):
//
//	0  4  magic "NPUG"
//	4  4  version (1)
//	8  4  body size
//	12 .. body, protobuf wire format:
//	        1: input tensor   {1: height, 2: width, 3: channels, 4: name}
//	        2: output tensor  {1: height, 2: width, 3: channels, 4: name}
//	        3: class (repeated) {1: name, 2: color 0xRRGGBB}
//	        4: output layout  (0 NHWC, 1 NCHW)
package sim

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/emergingrobotics/npu-segment/pkg/device"
	"google.golang.org/protobuf/encoding/protowire"
)

// Graph file constants
const (
	GraphMagic      = "NPUG"
	GraphVersion    = 1
	GraphHeaderSize = 12
)

// Errors
var (
	ErrInvalidMagic       = errors.New("invalid graph magic")
	ErrUnsupportedVersion = errors.New("unsupported graph version")
	ErrTruncatedGraph     = errors.New("truncated graph data")
	ErrInvalidGraph       = errors.New("invalid graph")
)

// Tensor field numbers
const (
	fieldInput        protowire.Number = 1
	fieldOutput       protowire.Number = 2
	fieldClass        protowire.Number = 3
	fieldOutputLayout protowire.Number = 4

	fieldHeight   protowire.Number = 1
	fieldWidth    protowire.Number = 2
	fieldChannels protowire.Number = 3
	fieldName     protowire.Number = 4

	fieldClassName  protowire.Number = 1
	fieldClassColor protowire.Number = 2
)

// TensorDesc names and sizes one graph tensor
type TensorDesc struct {
	Name  string
	Shape device.Shape
}

// Class is one output class with the color it responds to
type Class struct {
	Name    string
	R, G, B uint8
}

// Graph is a parsed simulated graph
type Graph struct {
	Input        TensorDesc
	Output       TensorDesc
	Classes      []Class
	OutputLayout device.Layout
}

// Validate checks the graph is executable
func (g *Graph) Validate() error {
	if !g.Input.Shape.Valid() {
		return fmt.Errorf("%w: input shape %v", ErrInvalidGraph, g.Input.Shape)
	}
	if c := g.Input.Shape.Channels; c != 1 && c != 3 && c != 4 {
		return fmt.Errorf("%w: %d input channels", ErrInvalidGraph, c)
	}
	if !g.Output.Shape.Valid() {
		return fmt.Errorf("%w: output shape %v", ErrInvalidGraph, g.Output.Shape)
	}
	if g.Output.Shape.Channels != len(g.Classes) {
		return fmt.Errorf("%w: %d output channels but %d classes",
			ErrInvalidGraph, g.Output.Shape.Channels, len(g.Classes))
	}
	if g.OutputLayout != device.LayoutNHWC && g.OutputLayout != device.LayoutNCHW {
		return fmt.Errorf("%w: output layout %v", ErrInvalidGraph, g.OutputLayout)
	}
	return nil
}

// Marshal encodes the graph in file form
func (g *Graph) Marshal() ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	var body []byte
	body = protowire.AppendTag(body, fieldInput, protowire.BytesType)
	body = protowire.AppendBytes(body, appendTensor(nil, g.Input))
	body = protowire.AppendTag(body, fieldOutput, protowire.BytesType)
	body = protowire.AppendBytes(body, appendTensor(nil, g.Output))
	for _, c := range g.Classes {
		var cb []byte
		cb = protowire.AppendTag(cb, fieldClassName, protowire.BytesType)
		cb = protowire.AppendString(cb, c.Name)
		cb = protowire.AppendTag(cb, fieldClassColor, protowire.VarintType)
		cb = protowire.AppendVarint(cb, uint64(c.R)<<16|uint64(c.G)<<8|uint64(c.B))
		body = protowire.AppendTag(body, fieldClass, protowire.BytesType)
		body = protowire.AppendBytes(body, cb)
	}
	body = protowire.AppendTag(body, fieldOutputLayout, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(g.OutputLayout))

	out := make([]byte, GraphHeaderSize, GraphHeaderSize+len(body))
	copy(out, GraphMagic)
	binary.LittleEndian.PutUint32(out[4:8], GraphVersion)
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(body)))
	return append(out, body...), nil
}

func appendTensor(b []byte, t TensorDesc) []byte {
	b = protowire.AppendTag(b, fieldHeight, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.Shape.Height))
	b = protowire.AppendTag(b, fieldWidth, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.Shape.Width))
	b = protowire.AppendTag(b, fieldChannels, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.Shape.Channels))
	if t.Name != "" {
		b = protowire.AppendTag(b, fieldName, protowire.BytesType)
		b = protowire.AppendString(b, t.Name)
	}
	return b
}

// ParseGraph decodes and validates a graph file
func ParseGraph(data []byte) (*Graph, error) {
	if len(data) < GraphHeaderSize {
		return nil, ErrTruncatedGraph
	}
	if string(data[:4]) != GraphMagic {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != GraphVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	size := binary.LittleEndian.Uint32(data[8:12])
	if uint64(GraphHeaderSize)+uint64(size) > uint64(len(data)) {
		return nil, ErrTruncatedGraph
	}
	body := data[GraphHeaderSize : GraphHeaderSize+int(size)]

	g := &Graph{}
	err := walk(body, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch {
		case num == fieldInput && typ == protowire.BytesType:
			return parseTensor(raw, &g.Input)
		case num == fieldOutput && typ == protowire.BytesType:
			return parseTensor(raw, &g.Output)
		case num == fieldClass && typ == protowire.BytesType:
			c, err := parseClass(raw)
			if err != nil {
				return err
			}
			g.Classes = append(g.Classes, c)
		case num == fieldOutputLayout && typ == protowire.VarintType:
			g.OutputLayout = device.Layout(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func parseTensor(b []byte, t *TensorDesc) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch {
		case num == fieldHeight && typ == protowire.VarintType:
			t.Shape.Height = int(v)
		case num == fieldWidth && typ == protowire.VarintType:
			t.Shape.Width = int(v)
		case num == fieldChannels && typ == protowire.VarintType:
			t.Shape.Channels = int(v)
		case num == fieldName && typ == protowire.BytesType:
			t.Name = string(raw)
		}
		return nil
	})
}

func parseClass(b []byte) (Class, error) {
	var c Class
	err := walk(b, func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error {
		switch {
		case num == fieldClassName && typ == protowire.BytesType:
			c.Name = string(raw)
		case num == fieldClassColor && typ == protowire.VarintType:
			c.R, c.G, c.B = uint8(v>>16), uint8(v>>8), uint8(v)
		}
		return nil
	})
	return c, err
}

// walk visits every field of a message. Unknown fields are skipped.
func walk(b []byte, visit func(num protowire.Number, typ protowire.Type, v uint64, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidGraph, protowire.ParseError(n))
		}
		b = b[n:]

		var v uint64
		var raw []byte
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidGraph, protowire.ParseError(n))
		}
		b = b[n:]

		if err := visit(num, typ, v, raw); err != nil {
			return err
		}
	}
	return nil
}
