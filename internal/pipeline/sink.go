package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/smazurov/framereactor/internal/config"
)

// Sink receives packets from a pipeline's consumers. WriteFrame may be called
// from several goroutines at once.
type Sink interface {
	WriteFrame(pkt Packet) error
	Close() error
}

// ErrSinkClosed is returned by WriteFrame after Close.
var ErrSinkClosed = errors.New("sink closed")

// NewSink builds the sink a device config asks for.
func NewSink(cfg config.DeviceConfig) (Sink, error) {
	switch cfg.Sink {
	case config.SinkDiscard, "":
		return &DiscardSink{}, nil
	case config.SinkFile:
		return NewFileSink(cfg.SinkPath, cfg.RotateBytes)
	}
	return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
}

// DiscardSink drops every packet and counts them.
type DiscardSink struct {
	frames atomic.Uint64
	bytes  atomic.Uint64
}

func (s *DiscardSink) WriteFrame(pkt Packet) error {
	s.frames.Add(1)
	s.bytes.Add(uint64(pkt.Len()))
	return nil
}

func (s *DiscardSink) Close() error { return nil }

// Frames returns the number of packets written.
func (s *DiscardSink) Frames() uint64 { return s.frames.Load() }

// Bytes returns the payload bytes written.
func (s *DiscardSink) Bytes() uint64 { return s.bytes.Load() }

// FileSink appends raw frames to a file. With a rotate limit, a frame that
// would push the current file past the limit starts the next numbered file:
// cam.raw, cam.1.raw, cam.2.raw and so on. A frame never spans two files.
type FileSink struct {
	mu     sync.Mutex
	path   string
	rotate int64
	file   *os.File
	w      *bufio.Writer
	size   int64
	index  int
	closed bool
}

// NewFileSink creates or truncates path. rotate <= 0 disables rotation.
func NewFileSink(path string, rotate int64) (*FileSink, error) {
	s := &FileSink{path: path, rotate: rotate}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// FileName returns the name of the n-th file in the rotation.
func FileName(path string, n int) string {
	if n == 0 {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + strconv.Itoa(n) + ext
}

func (s *FileSink) open() error {
	name := FileName(s.path, s.index)
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("open sink file: %w", err)
	}
	s.file = f
	s.w = bufio.NewWriterSize(f, 1<<20)
	s.size = 0
	return nil
}

func (s *FileSink) closeFile() error {
	flushErr := s.w.Flush()
	closeErr := s.file.Close()
	return errors.Join(flushErr, closeErr)
}

func (s *FileSink) WriteFrame(pkt Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}

	n := int64(pkt.Len())
	if s.rotate > 0 && s.size > 0 && s.size+n > s.rotate {
		if err := s.closeFile(); err != nil {
			return fmt.Errorf("rotate sink file: %w", err)
		}
		s.index++
		if err := s.open(); err != nil {
			return err
		}
	}

	if _, err := s.w.Write(pkt.Data); err != nil {
		return fmt.Errorf("write frame %d: %w", pkt.Sequence, err)
	}
	s.size += n
	return nil
}

// Files returns how many files the sink has created.
func (s *FileSink) Files() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index + 1
}

// Close flushes and closes the current file. Later calls do nothing.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.closeFile()
}
