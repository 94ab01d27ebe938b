// Package metronome turns a stream of audio frames into beat announcements.
package metronome

import (
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-pulse/algorithms/common"
	"github.com/RyanBlaney/sonido-pulse/algorithms/spectral"
	"github.com/RyanBlaney/sonido-pulse/algorithms/temporal"
	"github.com/RyanBlaney/sonido-pulse/config"
)

// ErrNoSignal is returned for frames whose bass band is not a finite number.
var ErrNoSignal = errors.New("metronome: no usable bass signal")

// Outcome classifies what a frame did to the detector
type Outcome int

const (
	OutcomeNoSignal   Outcome = iota // bass band unusable, history cleared
	OutcomeIneligible                // energy not rising or too quiet
	OutcomeOffBeat                   // onset outside the phase tolerance
	OutcomeDegenerate                // onset accepted but the interval gave no tempo
	OutcomeBeat                      // beat recorded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoSignal:
		return "no_signal"
	case OutcomeIneligible:
		return "ineligible"
	case OutcomeOffBeat:
		return "off_beat"
	case OutcomeDegenerate:
		return "degenerate_interval"
	case OutcomeBeat:
		return "beat"
	default:
		return "unknown"
	}
}

// Beat is one accepted beat
type Beat struct {
	BPM      float64   // smoothed tempo after this beat
	Observed float64   // octave corrected instantaneous tempo
	At       time.Time // frame timestamp
}

// Result is the outcome of processing one frame
type Result struct {
	Profile spectral.Profile
	Outcome Outcome
	Beat    Beat // set when Outcome is OutcomeBeat
}

// DetectorConfig gathers the detection tuning.
type DetectorConfig struct {
	Spectrum       spectral.BandEnergyConfig
	Onset          temporal.OnsetConfig
	BassBand       int
	SampleRange    int
	MaxBeatSamples int
	InitialBPM     float64
}

// DetectorConfigFrom extracts the detection tuning from cfg.
func DetectorConfigFrom(cfg *config.Config) DetectorConfig {
	s := cfg.Spectrum
	b := cfg.Beat
	return DetectorConfig{
		Spectrum: spectral.BandEnergyConfig{
			Bands:            s.Bands,
			EdgeChop:         s.EdgeChop,
			RetainDivisor:    s.RetainDivisor,
			MagnitudeDivisor: s.MagnitudeDivisor,
			NoiseFloor:       s.NoiseFloor,
			Scale:            s.Scale,
			Window:           s.Window,
		},
		Onset: temporal.OnsetConfig{
			IncrementSensitivity: b.IncrementSensitivity,
			SampleAverage:        b.SampleAverage,
			AllowableError:       b.AllowableError,
		},
		BassBand:       s.BassBand,
		SampleRange:    b.SampleRange,
		MaxBeatSamples: b.MaxBeatSamples,
		InitialBPM:     b.InitialBPM,
	}
}

// State is a read-only snapshot of the detector
type State struct {
	BassHistory []float64
	TempoWindow []float64
	Tempo       temporal.TempoState
}

// Detector owns the bass history, tempo window and tempo state and threads
// them through the reduce, test and track steps. It is not safe for
// concurrent use.
type Detector struct {
	reducer  *spectral.BandEnergy
	onset    *temporal.OnsetDetection
	tempo    *temporal.TempoEstimation
	bassBand int

	bass   *common.CircularBuffer
	window *common.CircularBuffer
	state  temporal.TempoState
}

// NewDetector creates a detector with an empty bass history and a tempo
// window seeded with the initial tempo.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if cfg.BassBand < 0 || cfg.BassBand >= cfg.Spectrum.Bands {
		return nil, fmt.Errorf("bass band %d outside %d bands", cfg.BassBand, cfg.Spectrum.Bands)
	}
	if cfg.SampleRange < 1 || cfg.MaxBeatSamples < 1 {
		return nil, fmt.Errorf("history capacities must be positive, got %d and %d", cfg.SampleRange, cfg.MaxBeatSamples)
	}
	if cfg.InitialBPM <= 0 {
		return nil, fmt.Errorf("initial tempo must be positive, got %v", cfg.InitialBPM)
	}

	tempo := temporal.NewTempoEstimation(cfg.InitialBPM)
	return &Detector{
		reducer:  spectral.NewBandEnergy(cfg.Spectrum),
		onset:    temporal.NewOnsetDetection(cfg.Onset),
		tempo:    tempo,
		bassBand: cfg.BassBand,
		bass:     common.NewCircularBuffer(cfg.SampleRange),
		window:   tempo.NewWindow(cfg.MaxBeatSamples),
		state:    tempo.InitialState(),
	}, nil
}

// Process reduces one frame, feeds its bass band to the history and tests
// for a beat at the given timestamp. Frames without a usable bass value
// return ErrNoSignal and clear the history.
func (d *Detector) Process(samples []float64, at time.Time) (Result, error) {
	profile, err := d.reducer.Reduce(samples)
	if err != nil {
		return Result{}, fmt.Errorf("reduce frame: %w", err)
	}

	result := Result{Profile: profile, Outcome: OutcomeNoSignal}
	bass, ok := profile.Band(d.bassBand)
	if !ok {
		d.bass.Clear()
		return result, fmt.Errorf("%w: band %d is %v", ErrNoSignal, d.bassBand, profile[d.bassBand])
	}

	result.Outcome, result.Beat, err = d.Observe(bass, at)
	return result, err
}

// Observe pushes a bass reading and, if it completes an in-phase onset,
// records a beat. A degenerate interval leaves the tempo untouched.
func (d *Detector) Observe(bass float64, at time.Time) (Outcome, Beat, error) {
	d.bass.Push(bass)

	if !d.onset.Eligible(d.bass.Values()) {
		return OutcomeIneligible, Beat{}, nil
	}
	if !d.onset.InPhase(d.state, at) {
		return OutcomeOffBeat, Beat{}, nil
	}

	next, observed, err := d.tempo.Track(d.window, d.state, at)
	if err != nil {
		return OutcomeDegenerate, Beat{}, err
	}
	d.state = next

	return OutcomeBeat, Beat{BPM: next.BPM, Observed: observed, At: at}, nil
}

// Snapshot copies the current detector state.
func (d *Detector) Snapshot() State {
	return State{
		BassHistory: d.bass.Values(),
		TempoWindow: d.window.Values(),
		Tempo:       d.state,
	}
}

// Reset returns the detector to its startup state.
func (d *Detector) Reset() {
	d.bass.Clear()
	d.window = d.tempo.NewWindow(d.window.Cap())
	d.state = d.tempo.InitialState()
}

// MinFrameLength is the shortest frame the reducer accepts
func (d *Detector) MinFrameLength() int {
	return d.reducer.MinFrameLength()
}
