package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT is a real-input transform. It is stateless; go-dsp keeps its own
// twiddle-factor cache.
type FFT struct{}

func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the complex spectrum of x. Any length is accepted.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return nil
	}
	return fft.FFTReal(x)
}

// Magnitudes returns |X[k]| for every bin of the transform of x.
func (f *FFT) Magnitudes(x []float64) []float64 {
	spectrum := f.Compute(x)
	magnitudes := make([]float64, len(spectrum))

	for i, val := range spectrum {
		magnitudes[i] = cmplx.Abs(val)
	}

	return magnitudes
}

// LowMagnitudes returns the magnitudes of the lowest len(x)/divisor bins.
func (f *FFT) LowMagnitudes(x []float64, divisor int) []float64 {
	magnitudes := f.Magnitudes(x)
	if divisor <= 1 {
		return magnitudes
	}
	return magnitudes[:len(magnitudes)/divisor]
}
