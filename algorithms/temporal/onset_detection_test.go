package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return epoch.Add(time.Duration(seconds * float64(time.Second)))
}

func TestOnsetDetection_Eligible(t *testing.T) {
	od := NewOnsetDetection(DefaultOnsetConfig())

	tests := []struct {
		name    string
		history []float64
		want    bool
	}{
		{"empty", nil, false},
		{"single reading", []float64{50}, false},
		{"constant loud", []float64{8, 8, 8, 8, 8, 8}, false},
		{"rising loud", []float64{2, 2, 2, 2, 2, 20}, true},
		{"rising quiet", []float64{-10, -10, -10, -10, -10, 2}, false},
		{"falling loud", []float64{20, 2, 2, 2, 2, 2}, false},
		{"rise just at threshold", []float64{4, 5}, false},
		{"rise above threshold", []float64{4, 5.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, od.Eligible(tt.history))
		})
	}
}

func TestOnsetDetection_FirstBeatAlwaysInPhase(t *testing.T) {
	od := NewOnsetDetection(DefaultOnsetConfig())
	state := NewTempoState(120)

	assert.True(t, od.InPhase(state, at(0.123)))
	assert.True(t, od.IsBeat([]float64{2, 2, 2, 2, 2, 20}, state, at(0.123)))
}

func TestOnsetDetection_PhaseTolerance(t *testing.T) {
	od := NewOnsetDetection(DefaultOnsetConfig())
	state := TempoState{BPM: 120, LastBeat: at(10)}

	tests := []struct {
		name    string
		elapsed float64
		want    bool
	}{
		{"exact period", 0.5, true},
		{"slightly early", 0.45, true},
		{"slightly late", 0.55, true},
		{"too early", 0.4, false},
		{"too late", 0.6, false},
		{"two periods late", 1.05, true},
		{"within a frame", 0.02, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, od.InPhase(state, at(10+tt.elapsed)))
		})
	}
}

func TestOnsetDetection_RejectsNonPositiveElapsed(t *testing.T) {
	od := NewOnsetDetection(DefaultOnsetConfig())
	state := TempoState{BPM: 120, LastBeat: at(10)}

	assert.False(t, od.InPhase(state, at(10)))
	assert.False(t, od.InPhase(state, at(9.5)))
}

func TestOnsetDetection_IneligibleNeverBeat(t *testing.T) {
	od := NewOnsetDetection(DefaultOnsetConfig())
	state := TempoState{BPM: 120, LastBeat: at(10)}

	assert.False(t, od.IsBeat([]float64{8, 8, 8, 8, 8, 8}, state, at(10.5)))
}

func TestPhaseRatio(t *testing.T) {
	state := TempoState{BPM: 120, LastBeat: at(1)}

	assert.InDelta(t, 1.0, PhaseRatio(state, at(1.5)), 1e-9)
	assert.InDelta(t, 2.0, PhaseRatio(state, at(2)), 1e-9)
	assert.InDelta(t, 0.0, PhaseError(1), 1e-12)
	assert.InDelta(t, 0.25, PhaseError(0.75), 1e-12)
	assert.InDelta(t, 0.1, PhaseError(2.1), 1e-9)
}
