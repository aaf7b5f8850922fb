// Package postprocess reduces per-pixel class-score tensors produced by a
// segmentation graph to discrete class masks.
package postprocess

import (
	"fmt"

	"github.com/emergingrobotics/npu-segment/pkg/device"
	"github.com/emergingrobotics/npu-segment/pkg/transform"
)

// InvalidShapeError reports a degenerate score tensor
type InvalidShapeError struct {
	Shape device.Shape
	// DataLen is set when the backing data does not match the shape
	DataLen int
}

func (e *InvalidShapeError) Error() string {
	if e.DataLen != 0 {
		return fmt.Sprintf("invalid score tensor: %d bytes do not fit shape %v", e.DataLen, e.Shape)
	}
	return fmt.Sprintf("invalid score tensor shape %v", e.Shape)
}

// ScoreTensor is a read-only view over unsigned 8-bit class scores laid out
// [height][width][channels], channel innermost. It does not own Data.
type ScoreTensor struct {
	Data  []byte
	Shape device.Shape
}

// NewScoreTensor wraps data in the given layout. NHWC data is viewed in
// place; NCHW data is converted into a new NHWC buffer.
func NewScoreTensor(data []byte, shape device.Shape, layout device.Layout) (ScoreTensor, error) {
	if err := validate(data, shape); err != nil {
		return ScoreTensor{}, err
	}
	if layout == device.LayoutNCHW {
		nhwc := make([]byte, len(data))
		transform.NCHWToNHWC(data, nhwc, shape.Height, shape.Width, shape.Channels)
		data = nhwc
	}
	return ScoreTensor{Data: data, Shape: shape}, nil
}

func validate(data []byte, shape device.Shape) error {
	if !shape.Valid() {
		return &InvalidShapeError{Shape: shape}
	}
	if len(data) != shape.Size() {
		return &InvalidShapeError{Shape: shape, DataLen: len(data)}
	}
	return nil
}

// Mask holds one class index per output pixel, row-major
type Mask struct {
	Width   int
	Height  int
	Classes int
	Data    []uint8
}

// At returns the class of pixel (x, y)
func (m *Mask) At(x, y int) uint8 {
	return m.Data[y*m.Width+x]
}

// Reduce selects, for every pixel, the channel with the highest score.
// Ties go to the lowest channel index. Scores compare as plain unsigned
// integers.
func Reduce(t ScoreTensor) (*Mask, error) {
	if err := validate(t.Data, t.Shape); err != nil {
		return nil, err
	}
	if t.Shape.Channels > 256 {
		return nil, &InvalidShapeError{Shape: t.Shape}
	}

	h, w, c := t.Shape.Height, t.Shape.Width, t.Shape.Channels
	mask := &Mask{
		Width:   w,
		Height:  h,
		Classes: c,
		Data:    make([]uint8, h*w),
	}

	for p := range mask.Data {
		scores := t.Data[p*c : p*c+c]
		best := 0
		bestVal := scores[0]
		for ch := 1; ch < c; ch++ {
			if scores[ch] > bestVal {
				bestVal = scores[ch]
				best = ch
			}
		}
		mask.Data[p] = uint8(best)
	}

	return mask, nil
}
