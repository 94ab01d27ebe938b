package metronome

import (
	"sync"
	"time"
)

// Clock timestamps frames. FrameTime is called once per frame, right after
// the frame has been read.
type Clock interface {
	FrameTime() time.Time
}

// WallClock stamps frames with the current time
type WallClock struct{}

// FrameTime returns time.Now
func (WallClock) FrameTime() time.Time { return time.Now() }

// SampleClock stamps frames by their position in the audio, so replays of
// recorded audio time beats exactly as a live run would.
type SampleClock struct {
	mu          sync.Mutex
	start       time.Time
	sampleRate  int
	frameLength int
	frames      int64
}

// NewSampleClock starts counting at start.
func NewSampleClock(start time.Time, sampleRate, frameLength int) *SampleClock {
	return &SampleClock{
		start:       start,
		sampleRate:  max(sampleRate, 1),
		frameLength: frameLength,
	}
}

// FrameTime returns the time at which the next frame ends.
func (c *SampleClock) FrameTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frames++
	samples := c.frames * int64(c.frameLength)
	return c.start.Add(time.Duration(samples * int64(time.Second) / int64(c.sampleRate)))
}
