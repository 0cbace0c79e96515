package transform

import (
	"bytes"
	"errors"
	"testing"
)

func fill(n int, pattern ...byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = pattern[i%len(pattern)]
	}
	return b
}

func nv12Frame(width, height int, y, u, v byte) []byte {
	b := make([]byte, width*height*3/2)
	for i := 0; i < width*height; i++ {
		b[i] = y
	}
	for i := width * height; i < len(b); i += 2 {
		b[i] = u
		b[i+1] = v
	}
	return b
}

func absDiff(a, b byte) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestConvertYUYVGrayToBGR(t *testing.T) {
	const w, h = 16, 8
	src := fill(w*h*2, 128, 128, 128, 128)
	dst := make([]byte, w*h*3)

	if err := Convert(src, dst, w, h, YUYV, BGR24); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	for i, v := range dst {
		if absDiff(v, 128) > 1 {
			t.Fatalf("dst[%d] = %d, want 128 +/- 1", i, v)
		}
	}
}

func TestConvertYUYVChannelOrder(t *testing.T) {
	// Strong blue chroma: U high, V neutral. B must land in byte 0 of each pixel.
	const w, h = 2, 2
	src := fill(w*h*2, 100, 228, 100, 128)
	dst := make([]byte, w*h*3)

	if err := Convert(src, dst, w, h, YUYV, BGR24); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	// B = 100 + 1.772*100 = 277.2 -> 255, G = 100 - 34.41 = 65.58 -> 65, R = 100
	want := []byte{255, 65, 100}
	for px := 0; px < w*h; px++ {
		got := dst[px*3 : px*3+3]
		if !bytes.Equal(got, want) {
			t.Errorf("pixel %d = %v, want %v", px, got, want)
		}
	}
}

func TestConvertNV12ToRGB(t *testing.T) {
	tests := []struct {
		name    string
		y, u, v byte
		want    [3]byte
	}{
		{name: "white point", y: 235, u: 128, v: 128, want: [3]byte{254, 254, 254}},
		{name: "black point", y: 16, u: 128, v: 128, want: [3]byte{0, 0, 0}},
		{name: "clamps below zero", y: 0, u: 128, v: 128, want: [3]byte{0, 0, 0}},
		{name: "clamps above 255", y: 255, u: 255, v: 255, want: [3]byte{255, 125, 255}},
		// r = (1192*65 + 1634*112) >> 10 = 254
		// g = (1192*65 - 400*-38 - 832*112) >> 10 = -1 -> 0
		// b = (1192*65 + 2066*-38) >> 10 = -2 -> 0
		{name: "saturated red", y: 81, u: 90, v: 240, want: [3]byte{254, 0, 0}},
	}

	const w, h = 4, 4
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := nv12Frame(w, h, tt.y, tt.u, tt.v)
			dst := make([]byte, w*h*3)
			if err := Convert(src, dst, w, h, NV12, RGB24); err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			for px := 0; px < w*h; px++ {
				got := [3]byte{dst[px*3], dst[px*3+1], dst[px*3+2]}
				if got != tt.want {
					t.Fatalf("pixel %d = %v, want %v", px, got, tt.want)
				}
			}
		})
	}
}

func TestConvertNV12WhiteIsNearlyWhite(t *testing.T) {
	const w, h = 8, 6
	src := nv12Frame(w, h, 235, 128, 128)
	dst := make([]byte, w*h*3)
	if err := Convert(src, dst, w, h, NV12, RGB24); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	for i, v := range dst {
		if absDiff(v, 255) > 1 {
			t.Fatalf("dst[%d] = %d, want 255 +/- 1", i, v)
		}
	}
}

func TestConvertNV12ChromaSubsampling(t *testing.T) {
	// Each 2x2 block shares one chroma pair; blocks differ.
	const w, h = 4, 2
	src := make([]byte, w*h*3/2)
	for i := 0; i < w*h; i++ {
		src[i] = 128
	}
	copy(src[w*h:], []byte{128, 128, 128, 255})
	dst := make([]byte, w*h*3)
	if err := Convert(src, dst, w, h, NV12, RGB24); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	left := dst[0:3]
	right := dst[2*3 : 3*3]
	if bytes.Equal(left, right) {
		t.Fatalf("left block %v equals right block %v, chroma not subsampled per block", left, right)
	}
	if !bytes.Equal(dst[0:3], dst[w*3:w*3+3]) {
		t.Errorf("rows 0 and 1 differ in the same chroma block: %v vs %v", dst[0:3], dst[w*3:w*3+3])
	}
}

func TestConvertNV12ToYUV420(t *testing.T) {
	const w, h = 4, 2
	src := []byte{
		1, 2, 3, 4,
		5, 6, 7, 8,
		10, 20, 11, 21,
	}
	dst := make([]byte, w*h*3/2)
	if err := Convert(src, dst, w, h, NV12, YUV420); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	want := []byte{
		1, 2, 3, 4,
		5, 6, 7, 8,
		10, 11,
		20, 21,
	}
	if !bytes.Equal(dst, want) {
		t.Errorf("Convert() = %v, want %v", dst, want)
	}
}

func TestConvertYUYVToYUV420(t *testing.T) {
	const w, h = 4, 2
	src := []byte{
		1, 100, 2, 200, 3, 101, 4, 201,
		5, 150, 6, 250, 7, 151, 8, 251,
	}
	dst := make([]byte, w*h*3/2)
	if err := Convert(src, dst, w, h, YUYV, YUV420); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	want := []byte{
		1, 2, 3, 4,
		5, 6, 7, 8,
		100, 101,
		200, 201,
	}
	if !bytes.Equal(dst, want) {
		t.Errorf("Convert() = %v, want %v", dst, want)
	}
}

func TestConvertSameFormatCopies(t *testing.T) {
	src := nv12Frame(4, 4, 50, 60, 70)
	dst := make([]byte, len(src))
	if err := Convert(src, dst, 4, 4, NV12, NV12); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !bytes.Equal(src, dst) {
		t.Error("identity conversion did not copy the frame")
	}
}

func TestConvertRejectsWithoutWriting(t *testing.T) {
	valid := nv12Frame(4, 4, 100, 128, 128)
	tests := []struct {
		name    string
		src     []byte
		dstLen  int
		w, h    int
		srcFmt  PixelFormat
		dstFmt  PixelFormat
		wantErr error
	}{
		{"zero width", valid, 48, 0, 4, NV12, RGB24, ErrInvalidArgument},
		{"negative height", valid, 48, 4, -1, NV12, RGB24, ErrInvalidArgument},
		{"nil source", nil, 48, 4, 4, NV12, RGB24, ErrInvalidArgument},
		{"short source", valid[:10], 48, 4, 4, NV12, RGB24, ErrInvalidArgument},
		{"short destination", valid, 47, 4, 4, NV12, RGB24, ErrInvalidArgument},
		{"odd NV12 geometry", valid, 48, 3, 4, NV12, RGB24, ErrInvalidArgument},
		{"odd YUYV width", fill(3*4*2, 1), 36, 3, 4, YUYV, BGR24, ErrInvalidArgument},
		{"unsupported pair", valid, 48, 4, 4, NV12, BGR24, ErrUnsupportedConversion},
		{"compressed source", valid, 48, 4, 4, MJPEG, RGB24, ErrUnsupportedConversion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := fill(tt.dstLen, 0xAB)
			err := Convert(tt.src, dst, tt.w, tt.h, tt.srcFmt, tt.dstFmt)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Convert() error = %v, want %v", err, tt.wantErr)
			}
			for i, b := range dst {
				if b != 0xAB {
					t.Fatalf("dst[%d] modified to %d on failed conversion", i, b)
				}
			}
		})
	}
}

func TestConvertNilDestination(t *testing.T) {
	err := Convert(nv12Frame(2, 2, 0, 0, 0), nil, 2, 2, NV12, RGB24)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Convert() error = %v, want %v", err, ErrInvalidArgument)
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		src, dst PixelFormat
		want     bool
	}{
		{YUYV, BGR24, true},
		{YUYV, RGB24, false},
		{NV12, RGB24, true},
		{NV12, YUV420, true},
		{YUYV, YUV420, true},
		{YUYV, YUYV, true},
		{MJPEG, MJPEG, false},
		{RGB24, NV12, false},
	}
	for _, tt := range tests {
		if got := Supported(tt.src, tt.dst); got != tt.want {
			t.Errorf("Supported(%s, %s) = %v, want %v", tt.src, tt.dst, got, tt.want)
		}
	}
	if got := len(Pairs()); got != 4 {
		t.Errorf("len(Pairs()) = %d, want 4", got)
	}
}

func TestParsePixelFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    PixelFormat
		wantErr bool
	}{
		{"YUYV", YUYV, false},
		{"yuyv", YUYV, false},
		{"nv12", NV12, false},
		{"I420", YUV420, false},
		{"YU12", YUV420, false},
		{"rgb24", RGB24, false},
		{"BGR3", BGR24, false},
		{"mjpeg", MJPEG, false},
		{"H264", H264, false},
		{"P010", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePixelFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePixelFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePixelFormat(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestFrameSize(t *testing.T) {
	tests := []struct {
		f       PixelFormat
		w, h    int
		want    int
		wantErr bool
	}{
		{YUYV, 640, 480, 614400, false},
		{NV12, 640, 480, 460800, false},
		{YUV420, 1920, 1080, 3110400, false},
		{RGB24, 3, 3, 27, false},
		{BGR24, 640, 480, 921600, false},
		{NV12, 641, 480, 0, true},
		{MJPEG, 640, 480, 0, true},
		{YUYV, 0, 480, 0, true},
	}
	for _, tt := range tests {
		got, err := FrameSize(tt.f, tt.w, tt.h)
		if (err != nil) != tt.wantErr {
			t.Errorf("FrameSize(%s, %d, %d) error = %v, wantErr %v", tt.f, tt.w, tt.h, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("FrameSize(%s, %d, %d) = %d, want %d", tt.f, tt.w, tt.h, got, tt.want)
		}
	}
}
