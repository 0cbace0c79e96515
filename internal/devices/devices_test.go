package devices

import (
	"testing"

	"github.com/smazurov/framereactor/internal/transform"
)

func TestConvertible(t *testing.T) {
	tests := []struct {
		format transform.PixelFormat
		want   bool
	}{
		{transform.YUYV, true},
		{transform.NV12, true},
		{transform.MJPEG, false},
		{transform.H264, false},
		{transform.BGR24, false},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := Convertible(tt.format); got != tt.want {
				t.Errorf("Convertible(%s) = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}
