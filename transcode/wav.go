package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-pulse/logging"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned for files that are not readable PCM WAV.
var ErrInvalidWAV = errors.New("transcode: invalid wav file")

// WAVSource replays a WAV file as mono 16-bit frames. Multi-channel audio is
// averaged down to mono and other bit depths are rescaled to 16 bits.
type WAVSource struct {
	file        *os.File
	decoder     *wav.Decoder
	frameLength int
	channels    int
	bitDepth    int
	sampleRate  int
	buf         *audio.IntBuffer

	// Realtime paces frames to the audio clock, as a live device would
	realtime bool
	started  time.Time
	frames   int64

	closeOnce sync.Once
	closeErr  error
}

// OpenWAV opens path for replay. sampleRate must match the file; resampling
// is left to external tools.
func OpenWAV(path string, sampleRate, frameLength int, realtime bool) (*WAVSource, error) {
	if err := validateFrameLength(frameLength); err != nil {
		return nil, err
	}

	logger := logging.WithFields(logging.Fields{
		"component": "wav_source",
		"function":  "OpenWAV",
		"filename":  path,
	})

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}

	channels := int(decoder.NumChans)
	fileRate := int(decoder.SampleRate)
	if channels <= 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s has no channels", ErrInvalidWAV, path)
	}
	if fileRate != sampleRate {
		f.Close()
		return nil, fmt.Errorf("%w: %s is %d Hz, expected %d Hz", ErrInvalidWAV, path, fileRate, sampleRate)
	}

	logger.Debug("WAV metadata detected", logging.Fields{
		"sample_rate": fileRate,
		"channels":    channels,
		"bit_depth":   decoder.BitDepth,
	})

	return &WAVSource{
		file:        f,
		decoder:     decoder,
		frameLength: frameLength,
		channels:    channels,
		bitDepth:    int(decoder.BitDepth),
		sampleRate:  fileRate,
		realtime:    realtime,
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: channels, SampleRate: fileRate},
			Data:   make([]int, frameLength*channels),
		},
	}, nil
}

// ReadFrame returns the next frame, or io.EOF when fewer than a full frame
// of samples remain.
func (w *WAVSource) ReadFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w.realtime {
		if err := w.pace(ctx); err != nil {
			return nil, err
		}
	}

	want := w.frameLength * w.channels
	w.buf.Data = w.buf.Data[:want]

	n, err := w.decoder.PCMBuffer(w.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	if n < want || len(w.buf.Data) < want {
		return nil, io.EOF
	}

	frame := make(Frame, w.frameLength)
	for i := range frame {
		sum := 0
		for ch := 0; ch < w.channels; ch++ {
			sum += w.to16(w.buf.Data[i*w.channels+ch])
		}
		frame[i] = int16(sum / w.channels)
	}
	w.frames++

	return frame, nil
}

// pace blocks until the next frame would have been captured live.
func (w *WAVSource) pace(ctx context.Context) error {
	if w.started.IsZero() {
		w.started = time.Now()
		return nil
	}

	frameDuration := time.Duration(w.frameLength) * time.Second / time.Duration(w.sampleRate)
	due := w.started.Add(time.Duration(w.frames) * frameDuration)
	wait := time.Until(due)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// to16 rescales one sample to signed 16 bits.
func (w *WAVSource) to16(v int) int {
	switch {
	case w.bitDepth == 8:
		// 8-bit WAV is unsigned
		return (v - 128) << 8
	case w.bitDepth > 16:
		return v >> (w.bitDepth - 16)
	default:
		return v
	}
}

// Close closes the file
func (w *WAVSource) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.file.Close()
	})
	return w.closeErr
}
