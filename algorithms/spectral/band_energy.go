package spectral

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-pulse/algorithms/common"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

// ErrFrameTooShort is returned when a frame holds too few retained bins to
// give every band at least one bin.
var ErrFrameTooShort = errors.New("spectral: frame too short for band count")

// Window names accepted by BandEnergyConfig.Window
const (
	WindowNone = "none"
	WindowHann = "hann"
)

// BandEnergyConfig configures the frame reduction
type BandEnergyConfig struct {
	Bands            int     `json:"bands"`             // bands kept in the profile
	EdgeChop         int     `json:"edge_chop"`         // slices dropped from each end
	RetainDivisor    int     `json:"retain_divisor"`    // keep the lowest 1/RetainDivisor of bins
	MagnitudeDivisor float64 `json:"magnitude_divisor"` // rescales raw FFT magnitudes
	NoiseFloor       float64 `json:"noise_floor"`       // subtracted after the log
	Scale            float64 `json:"scale"`             // multiplies the result
	Window           string  `json:"window"`            // "none" or "hann"
}

// DefaultBandEnergyConfig returns the tuning used for live beat tracking
func DefaultBandEnergyConfig() BandEnergyConfig {
	return BandEnergyConfig{
		Bands:            8,
		EdgeChop:         1,
		RetainDivisor:    10,
		MagnitudeDivisor: 1000,
		NoiseFloor:       4,
		Scale:            4,
		Window:           WindowNone,
	}
}

// BandEnergy reduces one audio frame to a short log-energy profile.
type BandEnergy struct {
	config BandEnergyConfig
	fft    *FFT
}

// NewBandEnergy creates a new band energy reducer
func NewBandEnergy(config BandEnergyConfig) *BandEnergy {
	if config.RetainDivisor <= 0 {
		config.RetainDivisor = 1
	}
	if config.MagnitudeDivisor == 0 {
		config.MagnitudeDivisor = 1
	}
	return &BandEnergy{
		config: config,
		fft:    NewFFT(),
	}
}

// Slices returns the number of slices partitioned before edge removal.
func (be *BandEnergy) Slices() int {
	return be.config.Bands + 2*be.config.EdgeChop
}

// MinFrameLength is the shortest frame that still yields one bin per slice.
func (be *BandEnergy) MinFrameLength() int {
	return be.Slices() * be.config.RetainDivisor
}

// Reduce computes the spectral profile of signal.
//
// The lowest 1/RetainDivisor of the magnitude spectrum is rescaled, split
// into Bands+2*EdgeChop equal slices that are summed, the outer EdgeChop
// slices are dropped, and each remaining sum becomes
// (ln(sum) - NoiseFloor) * Scale. A band with no energy comes out as -Inf;
// use Profile.Band to read values safely.
func (be *BandEnergy) Reduce(signal []float64) (Profile, error) {
	if be.config.Bands <= 0 || be.config.EdgeChop < 0 {
		return nil, fmt.Errorf("spectral: invalid band layout %d+2*%d", be.config.Bands, be.config.EdgeChop)
	}

	frame := signal
	if be.config.Window == WindowHann {
		frame = make([]float64, len(signal))
		copy(frame, signal)
		window.Apply(frame, window.Hann)
	}

	retained := be.fft.LowMagnitudes(frame, be.config.RetainDivisor)
	slices := be.Slices()
	width := len(retained) / slices
	if width == 0 {
		return nil, fmt.Errorf("%w: %d retained bins for %d slices", ErrFrameTooShort, len(retained), slices)
	}

	floats.Scale(1/be.config.MagnitudeDivisor, retained)

	profile := make(Profile, be.config.Bands)
	for band := range profile {
		start := (band + be.config.EdgeChop) * width
		energy := common.Sum(retained[start : start+width])
		profile[band] = (math.Log(energy) - be.config.NoiseFloor) * be.config.Scale
	}

	return profile, nil
}
