package pipeline

import (
	"errors"
	"time"

	"github.com/smazurov/framereactor/internal/transform"
)

// ErrGeometryMismatch means the device filled fewer bytes than the negotiated
// raw geometry needs.
var ErrGeometryMismatch = errors.New("frame smaller than negotiated geometry")

// Packet is one frame copied out of the capture ring. Consumers own Data.
type Packet struct {
	Data      []byte
	Format    transform.PixelFormat
	Width     int
	Height    int
	Sequence  uint32
	Timestamp time.Duration
	Keyframe  bool
}

// Len returns the payload size in bytes.
func (p Packet) Len() int {
	return len(p.Data)
}
