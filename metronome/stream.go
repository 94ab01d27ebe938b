package metronome

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/RyanBlaney/sonido-pulse/algorithms/temporal"
	"github.com/RyanBlaney/sonido-pulse/emit"
	"github.com/RyanBlaney/sonido-pulse/logging"
	"github.com/RyanBlaney/sonido-pulse/observe"
	"github.com/RyanBlaney/sonido-pulse/transcode"
)

// Stream drives the detector with frames from a source and announces every
// accepted beat to a sink. One frame in, at most one beat out per iteration.
type Stream struct {
	source   transcode.Source
	sink     emit.Sink
	detector *Detector
	clock    Clock
	metrics  *observe.Metrics
	logger   logging.Logger
	profile  io.Writer

	silenceThresholdDB float64
	silent             bool
}

// StreamOption customizes a Stream
type StreamOption func(*Stream)

// WithClock replaces the wall clock
func WithClock(clock Clock) StreamOption {
	return func(s *Stream) { s.clock = clock }
}

// WithMetrics records loop metrics
func WithMetrics(metrics *observe.Metrics) StreamOption {
	return func(s *Stream) { s.metrics = metrics }
}

// WithLogger replaces the component logger
func WithLogger(logger logging.Logger) StreamOption {
	return func(s *Stream) { s.logger = logger }
}

// WithProfileWriter renders every frame's spectral profile to w
func WithProfileWriter(w io.Writer) StreamOption {
	return func(s *Stream) { s.profile = w }
}

// WithSilenceThreshold sets the level in dBFS at or below which the input
// is reported as silent
func WithSilenceThreshold(db float64) StreamOption {
	return func(s *Stream) { s.silenceThresholdDB = db }
}

// NewStream wires a stream loop.
func NewStream(source transcode.Source, sink emit.Sink, detector *Detector, opts ...StreamOption) *Stream {
	s := &Stream{
		source:   source,
		sink:     sink,
		detector: detector,
		clock:    WallClock{},
		metrics:  observe.NopMetrics(),
		logger:   logging.WithFields(logging.Fields{"component": "stream"}),

		silenceThresholdDB: -60,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes frames until ctx is cancelled or a finite source reaches
// io.EOF, both of which return nil. Source failures are returned.
func (s *Stream) Run(ctx context.Context) error {
	s.logger = s.logger.WithContext(ctx)
	tempo := s.detector.Snapshot().Tempo
	s.logger.Info("Stream loop running", logging.Fields{
		"initial_bpm": tempo.BPM,
		"category":    temporal.ClassifyTempoCategory(tempo.BPM),
	})

	var frames int64
	for {
		if ctx.Err() != nil {
			s.logger.Info("Stream loop cancelled", logging.Fields{"frames": frames})
			return nil
		}

		frame, err := s.source.ReadFrame(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.logger.Info("Audio source exhausted", logging.Fields{"frames": frames})
				return nil
			case ctx.Err() != nil:
				s.logger.Info("Stream loop cancelled", logging.Fields{"frames": frames})
				return nil
			default:
				s.logger.Error(err, "Audio source failed", logging.Fields{"frames": frames})
				return fmt.Errorf("read audio frame: %w", err)
			}
		}
		frames++

		if err := s.step(ctx, frame, s.clock.FrameTime()); err != nil {
			return err
		}
	}
}

// step runs one reduce, test and track cycle.
func (s *Stream) step(ctx context.Context, frame transcode.Frame, at time.Time) error {
	started := time.Now()
	samples := frame.Float64()
	result, err := s.detector.Process(samples, at)
	level := temporal.ComputeFrameLevel(samples, temporal.FullScale16)
	s.metrics.RecordFrame(ctx, time.Since(started), level.DBFS)
	s.trackSilence(level)

	if s.profile != nil && result.Profile != nil {
		if rerr := result.Profile.Render(s.profile); rerr != nil {
			s.logger.Warn("Failed to render profile", logging.Fields{"error": rerr})
		}
	}

	switch {
	case errors.Is(err, ErrNoSignal):
		s.metrics.RecordSkip(ctx, observe.ReasonNoSignal)
		s.logger.Debug("Skipping frame", logging.Fields{"reason": result.Outcome.String()})
		return nil
	case errors.Is(err, temporal.ErrDegenerateInterval):
		s.metrics.RecordSkip(ctx, observe.ReasonDegenerate)
		s.logger.Warn("Rejected beat with degenerate interval", logging.Fields{"error": err})
		return nil
	case err != nil:
		return fmt.Errorf("process frame: %w", err)
	}

	switch result.Outcome {
	case OutcomeIneligible:
		s.metrics.RecordSkip(ctx, observe.ReasonIneligible)
		return nil
	case OutcomeOffBeat:
		s.metrics.RecordSkip(ctx, observe.ReasonOffBeat)
		s.logger.Debug("Onset out of phase", logging.Fields{"bpm": s.detector.Snapshot().Tempo.BPM})
		return nil
	}

	beat := result.Beat
	s.metrics.RecordBeat(ctx, beat.BPM)
	s.logger.Debug("Beat", logging.Fields{"bpm": beat.BPM, "observed": beat.Observed})

	if err := s.sink.Beat(beat.BPM); err != nil {
		s.metrics.SinkErrors.Add(ctx, 1)
		s.logger.Warn("Failed to deliver beat", logging.Fields{"bpm": beat.BPM, "error": err})
	}
	return nil
}

// trackSilence logs when the input crosses the silence threshold. Going
// silent also resets the detector to its initial tempo.
func (s *Stream) trackSilence(level temporal.FrameLevel) {
	silent := level.Silent(s.silenceThresholdDB)
	if silent == s.silent {
		return
	}
	s.silent = silent

	fields := logging.Fields{"level_dbfs": level.DBFS, "threshold_dbfs": s.silenceThresholdDB}
	if silent {
		s.detector.Reset()
		s.logger.Warn("Input went silent", fields)
	} else {
		s.logger.Info("Input resumed", fields)
	}
}
