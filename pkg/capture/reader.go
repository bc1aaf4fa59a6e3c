package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// PCM16 framing constants for the reader device. The streaming contract is
// 16 kHz mono 16-bit little-endian PCM.
const (
	SampleRate     = 16000
	bytesPerSample = 2
)

// ReaderDevice adapts an io.Reader of raw PCM into a Device. Access is
// always granted; the reader stands in for the microphone, e.g.
//
//	arecord -f S16_LE -r 16000 -c 1 | scribe session live <id>
//
// Open fails with ErrUnavailable when the reader is nil.
type ReaderDevice struct {
	// R supplies raw 16 kHz mono 16-bit PCM.
	R io.Reader

	// ChunkBytes is the size of each produced chunk. When zero, the
	// chunk size matching one DefaultInterval of audio is used.
	ChunkBytes int
}

// RequestAccess implements Device. A reader needs no OS permission.
func (d *ReaderDevice) RequestAccess(ctx context.Context) error {
	return ctx.Err()
}

// Open implements Device.
func (d *ReaderDevice) Open(ctx context.Context) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.R == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrUnavailable)
	}
	n := d.ChunkBytes
	if n <= 0 {
		n = int(SampleRate * bytesPerSample * DefaultInterval.Seconds())
	}
	return &readerSource{r: d.R, chunk: n}, nil
}

type readerSource struct {
	r     io.Reader
	chunk int

	mu     sync.Mutex
	closed bool
}

func (s *readerSource) ReadChunk() ([]byte, error) {
	buf := make([]byte, s.chunk)
	n, err := io.ReadFull(s.r, buf)
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, errors.New("capture: source closed")
	}
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

func (s *readerSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
