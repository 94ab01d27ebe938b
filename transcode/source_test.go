package transcode

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeCounter struct {
	io.Reader
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return nil
}

func TestPCMSource_ReadsFullFrames(t *testing.T) {
	samples := Frame{0, 1, -1, 32767, -32768, 1000}
	src := NewPCMSource(bytes.NewReader(EncodeS16LE(samples)), 3)
	ctx := context.Background()

	first, err := src.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, Frame{0, 1, -1}, first)

	second, err := src.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, Frame{32767, -32768, 1000}, second)

	_, err = src.ReadFrame(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestPCMSource_PartialFrameIsEOF(t *testing.T) {
	raw := EncodeS16LE(Frame{1, 2, 3, 4, 5})
	src := NewPCMSource(bytes.NewReader(raw), 4)

	_, err := src.ReadFrame(context.Background())
	require.NoError(t, err)

	_, err = src.ReadFrame(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestPCMSource_CancelledContext(t *testing.T) {
	src := NewPCMSource(bytes.NewReader(make([]byte, 64)), 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.ReadFrame(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPCMSource_CloseOnce(t *testing.T) {
	rc := &closeCounter{Reader: bytes.NewReader(nil)}
	src := NewPCMSource(rc, 4)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.Equal(t, 1, rc.closes)
}

func TestPCMSource_CancelUnblocksIdleRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewPCMSource(io.NopCloser(pr), 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := src.ReadFrame(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("read still blocked after cancel")
	}
}

func TestPCMSource_CloseUnblocksIdleRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewPCMSource(io.NopCloser(pr), 4)

	done := make(chan error, 1)
	go func() {
		_, err := src.ReadFrame(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, src.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("read still blocked after close")
	}
}

func TestPCMSource_ErrorIsSticky(t *testing.T) {
	src := NewPCMSource(bytes.NewReader(nil), 4)

	_, err := src.ReadFrame(context.Background())
	require.ErrorIs(t, err, io.EOF)
	_, err = src.ReadFrame(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrame_Float64(t *testing.T) {
	assert.Equal(t, []float64{-2, 0, 7}, Frame{-2, 0, 7}.Float64())
}

func TestDecodeS16LE(t *testing.T) {
	assert.Equal(t, Frame{1, -2}, DecodeS16LE([]byte{0x01, 0x00, 0xfe, 0xff}))
}
