// Package transform converts tensor layouts and pixel buffers between the
// forms produced by image decoders and consumed by NPU tensors.
package transform

// NHWCToNCHW converts from channel-innermost to channel-outermost order
func NHWCToNCHW(src, dst []uint8, height, width, channels int) {
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for c := 0; c < channels; c++ {
				srcIdx := (y*width+x)*channels + c
				dstIdx := c*height*width + y*width + x
				dst[dstIdx] = src[srcIdx]
			}
		}
	}
}

// NCHWToNHWC converts from channel-outermost to channel-innermost order
func NCHWToNHWC(src, dst []uint8, height, width, channels int) {
	for c := 0; c < channels; c++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				srcIdx := c*height*width + y*width + x
				dstIdx := (y*width+x)*channels + c
				dst[dstIdx] = src[srcIdx]
			}
		}
	}
}
