package transform

// ResizeBilinear resizes an interleaved image using bilinear interpolation
// with pixel-center alignment and returns a newly allocated buffer
func ResizeBilinear(src []uint8, srcH, srcW, dstH, dstW, channels int) []uint8 {
	dst := make([]uint8, dstH*dstW*channels)
	if srcH == 0 || srcW == 0 {
		return dst
	}

	xRatio := float32(srcW) / float32(dstW)
	yRatio := float32(srcH) / float32(dstH)

	for y := 0; y < dstH; y++ {
		srcY := (float32(y)+0.5)*yRatio - 0.5
		if srcY < 0 {
			srcY = 0
		}
		y0 := int(srcY)
		y1 := y0 + 1
		if y1 >= srcH {
			y1 = srcH - 1
		}
		yFrac := srcY - float32(y0)

		for x := 0; x < dstW; x++ {
			srcX := (float32(x)+0.5)*xRatio - 0.5
			if srcX < 0 {
				srcX = 0
			}
			x0 := int(srcX)
			x1 := x0 + 1
			if x1 >= srcW {
				x1 = srcW - 1
			}
			xFrac := srcX - float32(x0)

			for c := 0; c < channels; c++ {
				v00 := float32(src[(y0*srcW+x0)*channels+c])
				v01 := float32(src[(y0*srcW+x1)*channels+c])
				v10 := float32(src[(y1*srcW+x0)*channels+c])
				v11 := float32(src[(y1*srcW+x1)*channels+c])

				v0 := v00*(1-xFrac) + v01*xFrac
				v1 := v10*(1-xFrac) + v11*xFrac
				value := v0*(1-yFrac) + v1*yFrac

				dst[(y*dstW+x)*channels+c] = uint8(value + 0.5)
			}
		}
	}
	return dst
}
