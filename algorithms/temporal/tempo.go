package temporal

import (
	"time"
)

// TempoState is the tempo estimate threaded through beat tracking.
type TempoState struct {
	BPM      float64   // smoothed tempo, the mean of the tempo window
	LastBeat time.Time // zero until the first beat
}

// NewTempoState returns a state with no beat observed yet.
func NewTempoState(bpm float64) TempoState {
	return TempoState{BPM: bpm}
}

// HasBeat reports whether a beat has been recorded.
func (ts TempoState) HasBeat() bool {
	return !ts.LastBeat.IsZero()
}

// SecondsPerBeat returns the beat period of the current tempo.
func (ts TempoState) SecondsPerBeat() float64 {
	return ToSecondsPerBeat(ts.BPM)
}

// ToSecondsPerBeat converts a tempo to its beat period.
func ToSecondsPerBeat(bpm float64) float64 {
	return 60.0 / bpm
}

// ToBeatsPerMinute converts a beat period back to a tempo.
func ToBeatsPerMinute(spb float64) float64 {
	return 60.0 / spb
}

// ClassifyTempoCategory buckets a tempo for log output.
func ClassifyTempoCategory(bpm float64) string {
	switch {
	case bpm < 60:
		return "very_slow"
	case bpm < 90:
		return "slow"
	case bpm < 120:
		return "moderate"
	case bpm < 150:
		return "fast"
	default:
		return "very_fast"
	}
}
