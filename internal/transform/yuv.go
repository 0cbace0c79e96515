package transform

// BT.601 fixed-point coefficients scaled by 1024.
const (
	coeffY  = 1192 // 1.164
	coeffVR = 1634 // 1.596
	coeffUG = -400 // -0.391
	coeffVG = -832 // -0.813
	coeffUB = 2066 // 2.018
)

func clamp8(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func clampF(v float32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// yuyvToBGR24 expands packed 4:2:2 into B,G,R triplets using the analog BT.601 matrix.
func yuyvToBGR24(src, dst []byte, width, height int) {
	for row := 0; row < height; row++ {
		in := src[row*width*2 : (row+1)*width*2]
		out := dst[row*width*3 : (row+1)*width*3]
		for x := 0; x < width; x += 2 {
			i := x * 2
			o := x * 3
			y0 := float32(in[i])
			u := float32(int(in[i+1]) - 128)
			y1 := float32(in[i+2])
			v := float32(int(in[i+3]) - 128)

			// Explicit conversions keep the products rounded before the sums (no FMA).
			dr := float32(1.402 * v)
			du := float32(0.344136 * u)
			dv := float32(0.714136 * v)
			db := float32(1.772 * u)

			out[o] = clampF(y0 + db)
			out[o+1] = clampF(y0 - du - dv)
			out[o+2] = clampF(y0 + dr)
			out[o+3] = clampF(y1 + db)
			out[o+4] = clampF(y1 - du - dv)
			out[o+5] = clampF(y1 + dr)
		}
	}
}

// yuyvToYUV420 keeps every luma sample and takes chroma from even rows.
func yuyvToYUV420(src, dst []byte, width, height int) {
	ySize := width * height
	uPlane := dst[ySize : ySize+ySize/4]
	vPlane := dst[ySize+ySize/4 : ySize+ySize/2]
	stride := width * 2

	c := 0
	for row := 0; row < height; row += 2 {
		l1 := src[row*stride : (row+1)*stride]
		l2 := src[(row+1)*stride : (row+2)*stride]
		y1 := dst[row*width : (row+1)*width]
		y2 := dst[(row+1)*width : (row+2)*width]
		for x := 0; x < width; x += 2 {
			i := x * 2
			y1[x] = l1[i]
			y1[x+1] = l1[i+2]
			y2[x] = l2[i]
			y2[x+1] = l2[i+2]
			uPlane[c] = l1[i+1]
			vPlane[c] = l1[i+3]
			c++
		}
	}
}

// nv12ToRGB24 converts semi-planar 4:2:0 to R,G,B triplets with integer arithmetic.
func nv12ToRGB24(src, dst []byte, width, height int) {
	ySize := width * height
	yPlane := src[:ySize]
	uvPlane := src[ySize:]
	half := width / 2

	for row := 0; row < height; row++ {
		uvRow := (row / 2) * half
		for x := 0; x < width; x++ {
			yv := int32(yPlane[row*width+x]) - 16
			uv := 2 * (uvRow + x/2)
			u := int32(uvPlane[uv]) - 128
			v := int32(uvPlane[uv+1]) - 128

			r := (coeffY*yv + coeffVR*v) >> 10
			g := (coeffY*yv + coeffUG*u + coeffVG*v) >> 10
			b := (coeffY*yv + coeffUB*u) >> 10

			o := (row*width + x) * 3
			dst[o] = clamp8(r)
			dst[o+1] = clamp8(g)
			dst[o+2] = clamp8(b)
		}
	}
}

// nv12ToYUV420 copies luma and splits the interleaved chroma plane into U then V.
func nv12ToYUV420(src, dst []byte, width, height int) {
	ySize := width * height
	cSize := ySize / 4
	copy(dst[:ySize], src[:ySize])

	uv := src[ySize : ySize+2*cSize]
	uPlane := dst[ySize : ySize+cSize]
	vPlane := dst[ySize+cSize : ySize+2*cSize]
	for i := 0; i < cSize; i++ {
		uPlane[i] = uv[2*i]
		vPlane[i] = uv[2*i+1]
	}
}
