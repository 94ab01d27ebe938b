package metronome

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-pulse/config"
	"github.com/RyanBlaney/sonido-pulse/emit"
	"github.com/RyanBlaney/sonido-pulse/logging"
	"github.com/RyanBlaney/sonido-pulse/observe"
	"github.com/RyanBlaney/sonido-pulse/transcode"
)

// SourceOpener acquires the audio source and the clock that stamps its frames
type SourceOpener func(ctx context.Context, cfg *config.Config) (transcode.Source, Clock, error)

// SinkOpener acquires the beat sink
type SinkOpener func(cfg *config.Config) (emit.Sink, error)

// Service owns one run of the metronome: it acquires the source and sink,
// runs the stream loop (or the constant emitter) and releases both on every
// exit path.
type Service struct {
	cfg        *config.Config
	metrics    *observe.Metrics
	logger     logging.Logger
	openSource SourceOpener
	openSink   SinkOpener
	onExit     func(error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// ServiceOption customizes a Service
type ServiceOption func(*Service)

// WithSourceOpener replaces the config driven source factory
func WithSourceOpener(open SourceOpener) ServiceOption {
	return func(s *Service) { s.openSource = open }
}

// WithSinkOpener replaces the UDP sink factory
func WithSinkOpener(open SinkOpener) ServiceOption {
	return func(s *Service) { s.openSink = open }
}

// WithExitHandler is called when a run started by Start ends on its own,
// with nil after a finite source is exhausted or the fatal error otherwise.
func WithExitHandler(fn func(error)) ServiceOption {
	return func(s *Service) { s.onExit = fn }
}

// NewService creates a service for cfg.
func NewService(cfg *config.Config, metrics *observe.Metrics, opts ...ServiceOption) *Service {
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	s := &Service{
		cfg:        cfg,
		metrics:    metrics,
		logger:     logging.WithFields(logging.Fields{"component": "metronome", "mode": string(cfg.Mode)}),
		openSource: OpenSource,
		openSink:   OpenSink,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is cancelled, a finite source ends, or the source
// fails. The source and sink are always closed before Run returns.
func (s *Service) Run(ctx context.Context) (err error) {
	sink, err := s.openSink(s.cfg)
	if err != nil {
		return fmt.Errorf("open beat sink: %w", err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close beat sink: %w", cerr))
		}
	}()

	if s.cfg.Mode == config.ModeConstant {
		constant, err := NewConstant(sink, s.cfg.Beat.InitialBPM, s.metrics)
		if err != nil {
			return err
		}
		return constant.Run(ctx)
	}

	ctx = logging.ContextWithFields(ctx, logging.Fields{
		"source": string(s.cfg.Source.Kind),
		"sink":   s.cfg.Sink.Addr(),
	})

	detector, err := NewDetector(DetectorConfigFrom(s.cfg))
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}

	source, clock, err := s.openSource(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("open audio source: %w", err)
	}
	defer func() {
		if cerr := source.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close audio source: %w", cerr))
		}
	}()

	opts := []StreamOption{
		WithMetrics(s.metrics),
		WithClock(clock),
		WithSilenceThreshold(s.cfg.Audio.SilenceThresholdDB),
	}
	if s.cfg.PrintProfile {
		opts = append(opts, WithProfileWriter(os.Stdout))
	}
	stream := NewStream(source, sink, detector, opts...)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer stop()
		return stream.Run(gctx)
	})
	g.Go(func() error {
		// A blocked read only returns once the source is closed
		<-gctx.Done()
		if cerr := source.Close(); cerr != nil {
			s.logger.Debug("Audio source close on shutdown", logging.Fields{"error": cerr})
		}
		return nil
	})

	return g.Wait()
}

// Start runs the service in the background.
func (s *Service) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return errors.New("metronome: already started")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		err := s.Run(runCtx)

		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()

		if err != nil {
			s.logger.Error(err, "Metronome stopped")
		}
		if runCtx.Err() == nil && s.onExit != nil {
			s.onExit(err)
		}
	}()

	s.logger.Info("Metronome started")
	return nil
}

// Stop cancels a run started by Start and waits for the source and sink to
// be released. It returns the run error, if any.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("metronome stop: %w", ctx.Err())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info("Metronome stopped")
	return s.lastErr
}

// OpenSource builds the audio source selected by cfg.Source.Kind.
func OpenSource(ctx context.Context, cfg *config.Config) (transcode.Source, Clock, error) {
	src := cfg.Source
	switch src.Kind {
	case config.SourceCapture:
		capture, err := transcode.StartCapture(ctx, &transcode.CaptureConfig{
			SampleRate:  cfg.Audio.SampleRate,
			FrameLength: cfg.Audio.FrameLength,
			FFmpegPath:  src.FFmpegPath,
			InputFormat: src.InputFormat,
			Device:      src.Device,
			StreamType:  src.StreamType,
			Realtime:    src.Realtime,
			Command:     src.Command,
		})
		if err != nil {
			return nil, nil, err
		}
		return capture, WallClock{}, nil

	case config.SourceWAV:
		wav, err := transcode.OpenWAV(src.Path, cfg.Audio.SampleRate, cfg.Audio.FrameLength, src.Realtime)
		if err != nil {
			return nil, nil, err
		}
		if src.Realtime {
			return wav, WallClock{}, nil
		}
		return wav, NewSampleClock(time.Now(), cfg.Audio.SampleRate, cfg.Audio.FrameLength), nil

	case config.SourceStdin:
		return transcode.NewPCMSource(io.NopCloser(os.Stdin), cfg.Audio.FrameLength), WallClock{}, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown source kind %q", config.ErrInvalid, src.Kind)
	}
}

// OpenSink dials the UDP beat sink at cfg.Sink.
func OpenSink(cfg *config.Config) (emit.Sink, error) {
	return emit.DialUDP(cfg.Sink.Addr())
}
