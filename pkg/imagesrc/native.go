package imagesrc

import "github.com/emergingrobotics/npu-segment/pkg/transform"

// Native decodes with the standard library decoders and resizes with the
// pure-Go bilinear resampler
type Native struct{}

// LoadAndResize implements Supplier
func (Native) LoadAndResize(path string, height, width, channels int) (*Image, error) {
	if err := checkTarget(height, width, channels); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	img, format, err := decode(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	rgba := toRGBA(img)
	srcW, srcH := rgba.Rect.Dx(), rgba.Rect.Dy()

	packed, err := transform.PackRGBA(rgba.Pix, rgba.Stride, srcW, srcH, channels)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	pix := packed
	if srcW != width || srcH != height {
		pix = transform.ResizeBilinear(packed, srcH, srcW, height, width, channels)
	}

	return &Image{
		Pix:          pix,
		Width:        width,
		Height:       height,
		Channels:     channels,
		SourceWidth:  srcW,
		SourceHeight: srcH,
		Format:       format,
	}, nil
}
