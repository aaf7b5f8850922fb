// Package imagesrc decodes image files and resizes them to the fixed
// interleaved layout of a model input tensor.
//
// Two interchangeable suppliers exist: Native, which uses only the
// standard decoders and a pure-Go bilinear resampler, and Draw, which
// resamples with golang.org/x/image/draw kernels.
package imagesrc

import (
	"fmt"
	"image"
	stddraw "image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeError reports that an image could not be read, decoded or
// converted to the requested layout
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("loading image %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Image is an owned, interleaved, row-major pixel buffer
type Image struct {
	Pix      []byte
	Width    int
	Height   int
	Channels int
	// SourceWidth and SourceHeight are the dimensions before resizing
	SourceWidth  int
	SourceHeight int
	// Format is the detected MIME type of the source file
	Format string
}

// Supplier loads an image file as a height x width x channels buffer
type Supplier interface {
	LoadAndResize(path string, height, width, channels int) (*Image, error)
}

// New returns the supplier registered under name: "native" or "draw".
// interpolation only applies to "draw".
func New(name, interpolation string) (Supplier, error) {
	switch name {
	case "", "native":
		return Native{}, nil
	case "draw":
		kernel, err := KernelByName(interpolation)
		if err != nil {
			return nil, err
		}
		return Draw{Kernel: kernel}, nil
	default:
		return nil, fmt.Errorf("unknown image supplier %q", name)
	}
}

// decode sniffs the file type and decodes it with a registered decoder
func decode(path string) (image.Image, string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, "", err
	}
	format := mtype.String()
	if !strings.HasPrefix(format, "image/") {
		return nil, format, fmt.Errorf("not an image (%s)", format)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, format, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, format, err
	}
	if img.Bounds().Empty() {
		return nil, format, fmt.Errorf("image has no pixels")
	}
	return img, format, nil
}

// toRGBA returns img as an *image.RGBA anchored at the origin
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	stddraw.Draw(rgba, rgba.Bounds(), img, b.Min, stddraw.Src)
	return rgba
}

func checkTarget(height, width, channels int) error {
	if height <= 0 || width <= 0 {
		return fmt.Errorf("invalid target size %dx%d", width, height)
	}
	if channels != 1 && channels != 3 && channels != 4 {
		return fmt.Errorf("unsupported channel count %d", channels)
	}
	return nil
}
