package temporal

import (
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-pulse/algorithms/common"
)

// ErrDegenerateInterval is returned when the time since the last beat cannot
// produce a finite, positive tempo.
var ErrDegenerateInterval = errors.New("temporal: degenerate beat interval")

// TempoEstimation smooths instantaneous tempo observations into a stable BPM.
type TempoEstimation struct {
	initialBPM float64
}

// NewTempoEstimation creates a new tempo estimator seeded with initialBPM
func NewTempoEstimation(initialBPM float64) *TempoEstimation {
	return &TempoEstimation{initialBPM: initialBPM}
}

// NewWindow returns a tempo window of the given capacity pre-filled with the
// initial tempo, so its mean is always defined.
func (te *TempoEstimation) NewWindow(capacity int) *common.CircularBuffer {
	return common.NewFilledCircularBuffer(capacity, te.initialBPM)
}

// InitialState returns the tempo state before any beat.
func (te *TempoEstimation) InitialState() TempoState {
	return NewTempoState(te.initialBPM)
}

// Instantaneous returns the tempo implied by a beat at the given time. With
// no previous beat there is no interval and the initial tempo is used.
func (te *TempoEstimation) Instantaneous(state TempoState, at time.Time) (float64, error) {
	if !state.HasBeat() {
		return te.initialBPM, nil
	}

	interval := at.Sub(state.LastBeat).Seconds()
	if interval <= 0 {
		return 0, fmt.Errorf("%w: %.6fs", ErrDegenerateInterval, interval)
	}

	bpm := ToBeatsPerMinute(interval)
	if !common.IsFinite(bpm) || bpm <= 0 {
		return 0, fmt.Errorf("%w: %.6fs", ErrDegenerateInterval, interval)
	}
	return bpm, nil
}

// CorrectOctave snaps an observation onto the octave of the current tempo.
// A slower observation is multiplied by round(current/observed), a faster
// one divided by round(observed/current); the factor is never below one.
func CorrectOctave(current, observed float64) float64 {
	if observed <= 0 || current <= 0 {
		return observed
	}

	if observed < current {
		return observed * max(common.RoundHalfUp(current/observed), 1)
	}
	return observed / max(common.RoundHalfUp(observed/current), 1)
}

// Track records a beat at the given time. It pushes the octave corrected
// observation into window and returns the new state whose BPM is the window
// mean. On error window and state are left untouched.
func (te *TempoEstimation) Track(window *common.CircularBuffer, state TempoState, at time.Time) (TempoState, float64, error) {
	observed, err := te.Instantaneous(state, at)
	if err != nil {
		return state, 0, err
	}

	corrected := CorrectOctave(state.BPM, observed)
	window.Push(corrected)

	return TempoState{
		BPM:      window.Mean(),
		LastBeat: at,
	}, corrected, nil
}
