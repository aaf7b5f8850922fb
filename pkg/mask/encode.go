package mask

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/emergingrobotics/npu-segment/pkg/postprocess"
)

// EncodeError reports that the mask image could not be written
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("writing mask %s: %v", e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Encoder turns class masks into RGB images using a palette and writes them
// to a fixed path
type Encoder struct {
	Palette Palette
	Path    string
}

// NewEncoder creates an encoder. A nil palette selects DefaultPalette.
func NewEncoder(path string, palette Palette) *Encoder {
	if palette == nil {
		palette = DefaultPalette()
	}
	return &Encoder{Palette: palette, Path: path}
}

// Encode maps every mask entry to its palette color and returns an
// interleaved RGB buffer of width*height*3 bytes
func (e *Encoder) Encode(m *postprocess.Mask) ([]byte, error) {
	if err := e.Palette.Validate(m.Classes); err != nil {
		return nil, err
	}

	rgb := make([]byte, len(m.Data)*3)
	for i, class := range m.Data {
		c := e.Palette[class]
		rgb[i*3] = c.R
		rgb[i*3+1] = c.G
		rgb[i*3+2] = c.B
	}
	return rgb, nil
}

// Write serializes an interleaved RGB buffer as a PNG at the encoder's
// path, replacing any existing file. A failed write leaves any previous
// file in place.
func (e *Encoder) Write(rgb []byte, width, height int) error {
	if len(rgb) != width*height*3 {
		return &EncodeError{Path: e.Path, Err: fmt.Errorf("%d bytes do not fit %dx%d RGB", len(rgb), width, height)}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		img.Pix[i*4] = rgb[i*3]
		img.Pix[i*4+1] = rgb[i*3+1]
		img.Pix[i*4+2] = rgb[i*3+2]
		img.Pix[i*4+3] = 0xff
	}

	dir := filepath.Dir(e.Path)
	tmp, err := os.CreateTemp(dir, ".mask-*.png")
	if err != nil {
		return &EncodeError{Path: e.Path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return &EncodeError{Path: e.Path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &EncodeError{Path: e.Path, Err: err}
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return &EncodeError{Path: e.Path, Err: err}
	}
	if err := os.Rename(tmp.Name(), e.Path); err != nil {
		return &EncodeError{Path: e.Path, Err: err}
	}
	return nil
}

// Save encodes and writes a mask
func (e *Encoder) Save(m *postprocess.Mask) error {
	rgb, err := e.Encode(m)
	if err != nil {
		return err
	}
	return e.Write(rgb, m.Width, m.Height)
}
