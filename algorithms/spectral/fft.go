package spectral

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// FFT provides Fast Fourier Transform functionality for real-valued frames
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the forward transform of a real signal using
// mjibson/go-dsp and returns the full complex spectrum.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	return fft.FFTReal(x)
}

// MagnitudesInto writes sqrt(re²+im²) of the first len(dst) bins of spectrum
// into dst. dst is expected to be sized N/2 for a length-N spectrum so only
// the positive frequencies are kept.
func (f *FFT) MagnitudesInto(dst []float64, spectrum []complex128) {
	n := min(len(dst), len(spectrum))
	for i := 0; i < n; i++ {
		re := real(spectrum[i])
		im := imag(spectrum[i])
		dst[i] = math.Sqrt(re*re + im*im)
	}
}
