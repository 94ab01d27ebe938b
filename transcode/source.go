package transcode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	// ErrCaptureEnded is returned when a live capture stops delivering audio.
	ErrCaptureEnded = errors.New("transcode: capture stream ended")

	// ErrClosed is returned by ReadFrame after Close.
	ErrClosed = errors.New("transcode: source closed")
)

// Frame is one fixed-length chunk of mono 16-bit PCM.
type Frame []int16

// Float64 converts the frame to float64 samples at the same scale.
func (f Frame) Float64() []float64 {
	out := make([]float64, len(f))
	for i, s := range f {
		out[i] = float64(s)
	}
	return out
}

// Source delivers audio frames. ReadFrame blocks until a full frame is
// available. Finite sources return io.EOF once exhausted.
type Source interface {
	ReadFrame(ctx context.Context) (Frame, error)
	Close() error
}

// PCMSource reads little-endian signed 16-bit mono PCM from a stream.
// Reads happen on a pump goroutine so that ReadFrame returns on context
// cancellation or Close even while the stream itself is idle.
type PCMSource struct {
	reader      io.Reader
	closer      io.Closer
	frameLength int

	startOnce sync.Once
	results   chan pcmResult
	done      chan struct{}
	err       error

	closeOnce sync.Once
	closeErr  error
}

type pcmResult struct {
	frame Frame
	err   error
}

// NewPCMSource creates a source reading frameLength samples per frame from r.
// If r is an io.Closer it is closed by Close.
func NewPCMSource(r io.Reader, frameLength int) *PCMSource {
	s := &PCMSource{
		reader:      r,
		frameLength: frameLength,
		results:     make(chan pcmResult, 1),
		done:        make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// FrameLength returns the number of samples per frame
func (s *PCMSource) FrameLength() int {
	return s.frameLength
}

// ReadFrame reads the next full frame. A trailing partial frame is dropped
// and reported as io.EOF. Once a read error is returned every later call
// returns it too. ReadFrame must not be called concurrently.
func (s *PCMSource) ReadFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	s.startOnce.Do(func() { go s.pump() })

	select {
	case r := <-s.results:
		if r.err != nil {
			s.err = r.err
			return nil, r.err
		}
		return r.frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrClosed
	}
}

// pump reads frames until the stream fails or the source is closed. The
// buffered results channel lets it exit after a final error with no reader.
func (s *PCMSource) pump() {
	for {
		raw := make([]byte, s.frameLength*2)
		var r pcmResult
		if _, err := io.ReadFull(s.reader, raw); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				err = io.EOF
			}
			r.err = err
		} else {
			r.frame = DecodeS16LE(raw)
		}

		select {
		case s.results <- r:
		case <-s.done:
			return
		}
		if r.err != nil {
			return
		}
	}
}

// Close unblocks any pending ReadFrame and closes the underlying stream if
// it is closable.
func (s *PCMSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
	})
	return s.closeErr
}

// DecodeS16LE converts little-endian 16-bit PCM bytes to samples.
func DecodeS16LE(raw []byte) Frame {
	frame := make(Frame, len(raw)/2)
	for i := range frame {
		frame[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return frame
}

// EncodeS16LE converts samples to little-endian 16-bit PCM bytes.
func EncodeS16LE(frame Frame) []byte {
	raw := make([]byte, len(frame)*2)
	for i, s := range frame {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(s))
	}
	return raw
}

func validateFrameLength(frameLength int) error {
	if frameLength <= 0 {
		return fmt.Errorf("transcode: frame length must be positive, got %d", frameLength)
	}
	return nil
}
