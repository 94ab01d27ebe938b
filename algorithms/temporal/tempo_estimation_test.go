package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempoEstimation_WindowPreSeeded(t *testing.T) {
	te := NewTempoEstimation(100)
	window := te.NewWindow(5)

	assert.Equal(t, 5, window.Len())
	assert.Equal(t, 100.0, window.Mean())
	assert.Equal(t, 100.0, te.InitialState().BPM)
	assert.False(t, te.InitialState().HasBeat())
}

func TestTempoEstimation_FirstBeatUsesInitialTempo(t *testing.T) {
	te := NewTempoEstimation(100)
	window := te.NewWindow(5)

	state, observed, err := te.Track(window, te.InitialState(), at(3))
	require.NoError(t, err)

	assert.Equal(t, 100.0, observed)
	assert.Equal(t, 100.0, state.BPM)
	assert.Equal(t, at(3), state.LastBeat)
}

func TestTempoEstimation_ConvergesTowardTrueTempo(t *testing.T) {
	te := NewTempoEstimation(100)
	window := te.NewWindow(5)
	state := te.InitialState()

	period := 60.0 / 128.0
	var history []float64
	for i := 0; i < 5; i++ {
		var err error
		state, _, err = te.Track(window, state, at(float64(i)*period))
		require.NoError(t, err)
		history = append(history, state.BPM)
	}

	for i := 1; i < len(history); i++ {
		assert.GreaterOrEqual(t, history[i], history[i-1], "step %d", i)
	}

	// Final window holds the seed beat plus four 128 BPM observations
	assert.InDelta(t, (100.0+4*128.0)/5, state.BPM, 1e-6)
	assert.InDelta(t, window.Mean(), state.BPM, 1e-12)
}

func TestTempoEstimation_ConvergesAfterWindowFills(t *testing.T) {
	te := NewTempoEstimation(115)
	window := te.NewWindow(5)
	state := te.InitialState()

	for i := 0; i < 8; i++ {
		var err error
		state, _, err = te.Track(window, state, at(float64(i)*0.5))
		require.NoError(t, err)
	}

	assert.InDelta(t, 120.0, state.BPM, 1e-6)
}

func TestTempoEstimation_DegenerateInterval(t *testing.T) {
	te := NewTempoEstimation(120)
	window := te.NewWindow(5)
	state := TempoState{BPM: 120, LastBeat: at(2)}

	for _, when := range []float64{2, 1.5} {
		next, _, err := te.Track(window, state, at(when))
		assert.ErrorIs(t, err, ErrDegenerateInterval)
		assert.Equal(t, state, next)
		assert.Equal(t, []float64{120, 120, 120, 120, 120}, window.Values())
	}
}

func TestCorrectOctave(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		observed float64
		want     float64
	}{
		{"same octave faster", 100, 128, 128},
		{"same octave slower", 128, 100, 100},
		{"half tempo", 120, 60, 120},
		{"double tempo", 120, 240, 120},
		{"third tempo", 120, 40, 120},
		{"near double", 120, 236, 118},
		{"near half", 120, 61, 122},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CorrectOctave(tt.current, tt.observed), 1e-9)
		})
	}
}

func TestTempoEstimation_OctaveCorrectedObservation(t *testing.T) {
	te := NewTempoEstimation(120)
	window := te.NewWindow(5)

	// Every other beat detected: one second apart reads as 60 BPM
	state := TempoState{BPM: 120, LastBeat: at(0)}
	next, observed, err := te.Track(window, state, at(1))
	require.NoError(t, err)

	assert.InDelta(t, 120.0, observed, 1e-9)
	assert.InDelta(t, 120.0, next.BPM, 1e-9)
}

func TestConversions(t *testing.T) {
	assert.InDelta(t, 0.5, ToSecondsPerBeat(120), 1e-12)
	assert.InDelta(t, 128.0, ToBeatsPerMinute(60.0/128.0), 1e-9)
	assert.Equal(t, "fast", ClassifyTempoCategory(128))
	assert.Equal(t, "very_slow", ClassifyTempoCategory(40))
}
