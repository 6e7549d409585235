package windowing

import (
	"fmt"
	"math"
)

// Type selects a window function
type Type int

const (
	None Type = iota
	Hann
	Hamming
	Blackman
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Hann:
		return "hann"
	case Hamming:
		return "hamming"
	case Blackman:
		return "blackman"
	default:
		return "unknown"
	}
}

// Window holds precomputed coefficients for a window function. Coefficients
// are generated once at construction so per-frame application is a single
// multiply per sample.
type Window struct {
	windowType   Type
	size         int
	coefficients []float64
}

// New creates a window of the given type and size
func New(windowType Type, size int) *Window {
	w := &Window{
		windowType: windowType,
		size:       size,
	}
	w.generate()
	return w
}

// generate computes the closed-form coefficients per sample index
func (w *Window) generate() {
	w.coefficients = make([]float64, w.size)
	if w.size == 1 {
		w.coefficients[0] = 1.0
		return
	}

	denom := float64(w.size - 1)
	for i := 0; i < w.size; i++ {
		x := 2.0 * math.Pi * float64(i) / denom
		switch w.windowType {
		case Hann:
			w.coefficients[i] = 0.5 * (1.0 - math.Cos(x))
		case Hamming:
			w.coefficients[i] = 0.54 - 0.46*math.Cos(x)
		case Blackman:
			w.coefficients[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2.0*x)
		default:
			w.coefficients[i] = 1.0
		}
	}
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != w.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), w.size)
	}

	if w.windowType == None {
		return nil
	}

	for i := range signal {
		signal[i] *= w.coefficients[i]
	}
	return nil
}

// Coefficients returns a copy of the window coefficients
func (w *Window) Coefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// Size returns the window size
func (w *Window) Size() int {
	return w.size
}

// Type returns the window type
func (w *Window) Type() Type {
	return w.windowType
}
