package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/RyanBlaney/sonido-pulse/logging"
)

// CaptureConfig holds live capture configuration
type CaptureConfig struct {
	SampleRate  int    `json:"sample_rate"`
	FrameLength int    `json:"frame_length"`
	FFmpegPath  string `json:"ffmpeg_path"`  // Path to ffmpeg binary
	InputFormat string `json:"input_format"` // ffmpeg -f for the device, e.g. "pulse", "alsa"; empty to probe
	Device      string `json:"device"`       // ffmpeg -i: device name, file path or URL
	StreamType  string `json:"stream_type"`  // "icecast", "hls" or empty
	Realtime    bool   `json:"realtime"`     // read input at native rate (-re), for files and URLs
	// Command replaces the ffmpeg invocation entirely, e.g.
	// ["parec", "--format=s16le", "--channels=1"]. It must write mono s16le
	// at SampleRate to stdout.
	Command []string `json:"command,omitempty"`
}

// DefaultCaptureConfig returns default capture configuration
func DefaultCaptureConfig() *CaptureConfig {
	return &CaptureConfig{
		SampleRate:  44100,
		FrameLength: 1024,
		FFmpegPath:  "ffmpeg", // Assume in PATH
		InputFormat: "pulse",
		Device:      "default",
	}
}

// stderrBuffer collects subprocess diagnostics while ReadFrame may read them.
type stderrBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *stderrBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// Keep only the start, ffmpeg reports the cause first
	if b.buf.Len() < 4096 {
		b.buf.Write(p)
	}
	return len(p), nil
}

func (b *stderrBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CaptureSource streams frames from an audio device through an ffmpeg (or
// compatible) subprocess.
type CaptureSource struct {
	config *CaptureConfig
	cmd    *exec.Cmd
	pcm    *PCMSource
	stderr *stderrBuffer
	cancel context.CancelFunc
	logger logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// Args returns the ffmpeg arguments for the configured device: mono
// signed 16-bit little-endian at SampleRate on stdout.
func (c *CaptureConfig) Args() []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
	}

	// Add stream-type specific flags
	switch c.StreamType {
	case "icecast":
		args = append(args,
			"-reconnect", "1",
			"-reconnect_at_eof", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "1",
			"-fflags", "+genpts+igndts+flush_packets",
			"-rw_timeout", "5000000", // 5 second read timeout
		)
	case "hls":
		args = append(args,
			"-fflags", "+genpts+igndts+flush_packets",
			"-live_start_index", "-1",
			"-rw_timeout", "30000000", // 30 second read timeout
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "2",
		)
	}

	if c.Realtime {
		args = append(args, "-re")
	}
	if c.InputFormat != "" {
		args = append(args, "-f", c.InputFormat)
	}

	return append(args,
		"-i", c.Device,
		"-map", "0:a:0?",
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(c.SampleRate),
		"-f", "s16le",
		"pipe:1",
	)
}

// StartCapture launches the capture process. The process is killed when ctx
// is cancelled or Close is called.
func StartCapture(ctx context.Context, config *CaptureConfig) (*CaptureSource, error) {
	if config == nil {
		config = DefaultCaptureConfig()
	}
	if err := validateFrameLength(config.FrameLength); err != nil {
		return nil, err
	}

	name, args := config.FFmpegPath, config.Args()
	if len(config.Command) > 0 {
		name, args = config.Command[0], config.Command[1:]
	}

	logger := logging.WithFields(logging.Fields{
		"component": "audio_capture",
		"function":  "StartCapture",
	})

	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("capture stdout pipe: %w", err)
	}
	stderr := &stderrBuffer{}
	cmd.Stderr = stderr

	logger.Debug("Starting capture command", logging.Fields{
		"command": fmt.Sprintf("%s %s", name, strings.Join(args, " ")),
	})

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start capture %q: %w", name, err)
	}

	logger.Info("Audio capture started", logging.Fields{
		"pid":          cmd.Process.Pid,
		"sample_rate":  config.SampleRate,
		"frame_length": config.FrameLength,
	})

	return &CaptureSource{
		config: config,
		cmd:    cmd,
		pcm:    NewPCMSource(stdout, config.FrameLength),
		stderr: stderr,
		cancel: cancel,
		logger: logger,
	}, nil
}

// ReadFrame blocks for the next frame. Any end of the stream is fatal for a
// live device and reported as ErrCaptureEnded.
func (c *CaptureSource) ReadFrame(ctx context.Context) (Frame, error) {
	frame, err := c.pcm.ReadFrame(ctx)
	if err == nil {
		return frame, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	detail := strings.TrimSpace(c.stderr.String())
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrCaptureEnded, detail)
	}
	return nil, fmt.Errorf("%w: %v: %s", ErrCaptureEnded, err, detail)
}

// Close stops the capture process and waits for it to exit.
func (c *CaptureSource) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		err := c.cmd.Wait()
		// Wait already closed stdout; this only releases the read pump
		_ = c.pcm.Close()

		// Killed by our own cancel is the normal shutdown path
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, context.Canceled) {
			c.closeErr = err
		}
		c.logger.Debug("Audio capture stopped")
	})
	return c.closeErr
}
