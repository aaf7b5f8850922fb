package imagesrc

import (
	"fmt"
	"image"

	"github.com/emergingrobotics/npu-segment/pkg/transform"
	"golang.org/x/image/draw"
)

// KernelByName maps an interpolation name to an x/image/draw scaler
func KernelByName(name string) (draw.Scaler, error) {
	switch name {
	case "nearest":
		return draw.NearestNeighbor, nil
	case "", "bilinear":
		return draw.BiLinear, nil
	case "approxbilinear":
		return draw.ApproxBiLinear, nil
	case "catmullrom":
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("unknown interpolation %q", name)
	}
}

// Draw resizes with an x/image/draw kernel
type Draw struct {
	Kernel draw.Scaler
}

// LoadAndResize implements Supplier
func (d Draw) LoadAndResize(path string, height, width, channels int) (*Image, error) {
	if err := checkTarget(height, width, channels); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	img, format, err := decode(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	kernel := d.Kernel
	if kernel == nil {
		kernel = draw.BiLinear
	}

	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	kernel.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	pix, err := transform.PackRGBA(resized.Pix, resized.Stride, width, height, channels)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	b := img.Bounds()
	return &Image{
		Pix:          pix,
		Width:        width,
		Height:       height,
		Channels:     channels,
		SourceWidth:  b.Dx(),
		SourceHeight: b.Dy(),
		Format:       format,
	}, nil
}
