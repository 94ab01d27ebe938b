package metronome

import (
	"context"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-pulse/algorithms/temporal"
	"github.com/RyanBlaney/sonido-pulse/emit"
	"github.com/RyanBlaney/sonido-pulse/logging"
	"github.com/RyanBlaney/sonido-pulse/observe"
)

// Constant emits a fixed tempo with no audio analysis. It is the fallback
// when live detection is not reliable enough for a performance.
type Constant struct {
	sink    emit.Sink
	bpm     float64
	metrics *observe.Metrics
	logger  logging.Logger
}

// NewConstant creates a fixed tempo emitter.
func NewConstant(sink emit.Sink, bpm float64, metrics *observe.Metrics) (*Constant, error) {
	if bpm <= 0 {
		return nil, fmt.Errorf("constant tempo must be positive, got %v", bpm)
	}
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	return &Constant{
		sink:    sink,
		bpm:     bpm,
		metrics: metrics,
		logger:  logging.WithFields(logging.Fields{"component": "constant", "bpm": bpm}),
	}, nil
}

// Period is the time between beats
func (c *Constant) Period() time.Duration {
	return time.Duration(temporal.ToSecondsPerBeat(c.bpm) * float64(time.Second))
}

// Run sends a beat every period, the first one period after start, until
// ctx is cancelled.
func (c *Constant) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.Period())
	defer ticker.Stop()

	c.logger.Info("Constant metronome running", logging.Fields{"period": c.Period().String()})
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.metrics.RecordBeat(ctx, c.bpm)
			if err := c.sink.Beat(c.bpm); err != nil {
				c.metrics.SinkErrors.Add(ctx, 1)
				c.logger.Warn("Failed to deliver beat", logging.Fields{"error": err})
			}
		}
	}
}
