package transform

import "fmt"

// PackRGBA copies a width x height RGBA raster with the given row stride
// into a new interleaved buffer with the requested channel count:
// 1 (luma), 3 (RGB) or 4 (RGBA).
func PackRGBA(pix []uint8, stride, width, height, channels int) ([]uint8, error) {
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}

	dst := make([]uint8, width*height*channels)
	for y := 0; y < height; y++ {
		row := pix[y*stride : y*stride+width*4]
		out := dst[y*width*channels : (y+1)*width*channels]
		for x := 0; x < width; x++ {
			r, g, b, a := row[x*4], row[x*4+1], row[x*4+2], row[x*4+3]
			switch channels {
			case 1:
				out[x] = Luma(r, g, b)
			case 3:
				out[x*3] = r
				out[x*3+1] = g
				out[x*3+2] = b
			case 4:
				out[x*4] = r
				out[x*4+1] = g
				out[x*4+2] = b
				out[x*4+3] = a
			}
		}
	}
	return dst, nil
}

// Luma computes 8-bit luminance with integer weights 77/150/29
func Luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*77 + uint32(g)*150 + uint32(b)*29) >> 8)
}
