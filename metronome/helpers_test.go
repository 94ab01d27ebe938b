package metronome

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-pulse/config"
	"github.com/RyanBlaney/sonido-pulse/transcode"
)

const (
	testFrameLength = 1024
	// 1024 samples at 40960 Hz is exactly 25ms per frame
	testSampleRate = 40960
	// cosine amplitudes giving a bass band of about 2 and about 20
	quietAmplitude = 176
	loudAmplitude  = 15826
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return epoch.Add(time.Duration(seconds * float64(time.Second)))
}

// toneFrame is a cosine centred on FFT bin 12, which lands in bass band 0.
func toneFrame(amplitude float64) transcode.Frame {
	frame := make(transcode.Frame, testFrameLength)
	for n := range frame {
		frame[n] = int16(math.Round(amplitude * math.Cos(2*math.Pi*12*float64(n)/testFrameLength)))
	}
	return frame
}

// impulseTrain returns frames with a loud frame every period frames,
// starting at offset.
func impulseTrain(frames, period, offset int) []transcode.Frame {
	quiet, loud := toneFrame(quietAmplitude), toneFrame(loudAmplitude)
	out := make([]transcode.Frame, frames)
	for i := range out {
		if i%period == offset {
			out[i] = loud
		} else {
			out[i] = quiet
		}
	}
	return out
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Audio.SampleRate = testSampleRate
	cfg.Audio.FrameLength = testFrameLength
	return cfg
}

func testClock() *SampleClock {
	return NewSampleClock(epoch, testSampleRate, testFrameLength)
}

// fakeSource replays frames then returns end, io.EOF by default.
type fakeSource struct {
	mu     sync.Mutex
	frames []transcode.Frame
	next   int
	end    error
	closed int
}

func (s *fakeSource) ReadFrame(ctx context.Context) (transcode.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.frames) {
		if s.end != nil {
			return nil, s.end
		}
		return nil, io.EOF
	}
	frame := s.frames[s.next]
	s.next++
	return frame, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSource) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// blockingSource never yields a frame; reads end on cancel or Close.
type blockingSource struct {
	once   sync.Once
	closed chan struct{}
}

func newBlockingSource() *blockingSource {
	return &blockingSource{closed: make(chan struct{})}
}

func (s *blockingSource) ReadFrame(ctx context.Context) (transcode.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, io.ErrClosedPipe
	}
}

func (s *blockingSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *blockingSource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// recordingSink keeps every announced tempo.
type recordingSink struct {
	mu     sync.Mutex
	beats  []float64
	err    error
	closed int
	notify chan float64
}

func (s *recordingSink) Beat(bpm float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beats = append(s.beats, bpm)
	if s.notify != nil {
		select {
		case s.notify <- bpm:
		default:
		}
	}
	return s.err
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *recordingSink) recorded() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.beats...)
}

func (s *recordingSink) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var errDevice = errors.New("device unplugged")
