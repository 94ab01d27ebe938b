package temporal

import (
	"math"
	"time"

	"github.com/RyanBlaney/sonido-pulse/algorithms/common"
)

// OnsetConfig holds the beat acceptance thresholds
type OnsetConfig struct {
	IncrementSensitivity float64 `json:"increment_sensitivity"` // minimum mean rise of the bass history
	SampleAverage        float64 `json:"sample_average"`        // minimum mean bass level
	AllowableError       float64 `json:"allowable_error"`       // phase tolerance in beats
}

// DefaultOnsetConfig returns the thresholds tuned for the default band layout
func DefaultOnsetConfig() OnsetConfig {
	return OnsetConfig{
		IncrementSensitivity: 1,
		SampleAverage:        3,
		AllowableError:       1.0 / 8.0,
	}
}

// OnsetDetection decides whether the newest bass reading is a beat.
// It holds no state; every decision depends only on its arguments.
type OnsetDetection struct {
	config OnsetConfig
}

// NewOnsetDetection creates a new onset detector
func NewOnsetDetection(config OnsetConfig) *OnsetDetection {
	return &OnsetDetection{config: config}
}

// Config returns the detector thresholds
func (od *OnsetDetection) Config() OnsetConfig {
	return od.config
}

// Eligible reports whether history looks like an onset: bass energy rising
// on average by more than IncrementSensitivity while its mean level exceeds
// SampleAverage.
func (od *OnsetDetection) Eligible(history []float64) bool {
	incrementAverage := common.Mean(common.Increments(history))
	sampleAverage := common.Mean(history)

	return incrementAverage > od.config.IncrementSensitivity &&
		sampleAverage > od.config.SampleAverage
}

// PhaseRatio returns how many beat periods of the current tempo have
// elapsed between the last beat and at.
func PhaseRatio(state TempoState, at time.Time) float64 {
	elapsed := at.Sub(state.LastBeat).Seconds()
	return elapsed / state.SecondsPerBeat()
}

// PhaseError returns |1 - ratio| mod 1.
func PhaseError(ratio float64) float64 {
	return math.Mod(math.Abs(1-ratio), 1)
}

// InPhase reports whether a candidate at lands within AllowableError of the
// beat grid set by state. The first beat is always in phase.
func (od *OnsetDetection) InPhase(state TempoState, at time.Time) bool {
	if !state.HasBeat() {
		return true
	}
	if !at.After(state.LastBeat) {
		return false
	}

	phaseError := PhaseError(PhaseRatio(state, at))
	if !common.IsFinite(phaseError) {
		return false
	}
	return phaseError <= od.config.AllowableError
}

// IsBeat reports whether at is a beat given the bass history and tempo.
func (od *OnsetDetection) IsBeat(history []float64, state TempoState, at time.Time) bool {
	return od.Eligible(history) && od.InPhase(state, at)
}
