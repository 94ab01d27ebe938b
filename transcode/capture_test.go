package transcode

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureConfig_Args(t *testing.T) {
	config := DefaultCaptureConfig()
	args := config.Args()

	assert.Contains(t, args, "pulse")
	assert.Contains(t, args, "s16le")
	assert.Contains(t, args, "44100")
	assert.Equal(t, "pipe:1", args[len(args)-1])
	assert.NotContains(t, args, "-re")
}

func TestCaptureConfig_ArgsForStreams(t *testing.T) {
	config := DefaultCaptureConfig()
	config.InputFormat = ""
	config.Device = "https://example.com/live.m3u8"
	config.StreamType = "hls"
	config.Realtime = true

	args := config.Args()
	assert.Contains(t, args, "-live_start_index")
	assert.Contains(t, args, "-re")
	assert.NotContains(t, args, "pulse")
}

func TestCaptureSource_ReadsUntilEnded(t *testing.T) {
	if _, err := exec.LookPath("head"); err != nil {
		t.Skip("head not available")
	}

	config := DefaultCaptureConfig()
	config.FrameLength = 1024
	config.Command = []string{"head", "-c", "4096", "/dev/zero"}

	src, err := StartCapture(context.Background(), config)
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		frame, err := src.ReadFrame(ctx)
		require.NoError(t, err)
		assert.Len(t, frame, 1024)
	}

	_, err = src.ReadFrame(ctx)
	assert.ErrorIs(t, err, ErrCaptureEnded)
	assert.NoError(t, src.Close())
}

func TestStartCapture_MissingBinary(t *testing.T) {
	config := DefaultCaptureConfig()
	config.FFmpegPath = "/nonexistent/ffmpeg-binary"

	_, err := StartCapture(context.Background(), config)
	assert.Error(t, err)
}

func TestStartCapture_InvalidFrameLength(t *testing.T) {
	config := DefaultCaptureConfig()
	config.FrameLength = 0

	_, err := StartCapture(context.Background(), config)
	assert.Error(t, err)
}
