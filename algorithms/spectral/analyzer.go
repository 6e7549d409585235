package spectral

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
	"github.com/RyanBlaney/sonido-midi/algorithms/windowing"
)

// Smoothing selects the magnitude-spectrum smoothing kernel
type Smoothing int

const (
	SmoothNone Smoothing = iota
	// SmoothBox3 averages (1,1,1)/3
	SmoothBox3
	// SmoothTri5 averages (1,2,3,2,1)/9
	SmoothTri5
	// SmoothAdjacent averages the two neighbors only, (1,0,1)/2
	SmoothAdjacent
)

func (s Smoothing) String() string {
	switch s {
	case SmoothNone:
		return "none"
	case SmoothBox3:
		return "box3"
	case SmoothTri5:
		return "tri5"
	case SmoothAdjacent:
		return "adjacent"
	default:
		return "unknown"
	}
}

// AnalyzerParams configures the spectral front end
type AnalyzerParams struct {
	SampleRate      float64        `json:"sample_rate"`
	FrameSize       int            `json:"frame_size"`
	Window          windowing.Type `json:"window"`
	TiltDBPerDecade float64        `json:"tilt_db_per_decade"`
	Smoothing       Smoothing      `json:"smoothing"`
}

// Analyzer turns a frame of samples into a smoothed, tilt-corrected
// magnitude spectrum. All working buffers are allocated at construction and
// reused; the slice returned by Analyze is owned by the Analyzer and valid
// until the next call.
type Analyzer struct {
	params AnalyzerParams

	fft    *FFT
	window *windowing.Window

	scratch   []float64 // windowed copy of the input frame
	magnitude []float64 // N/2 magnitude bins
	smoothed  []float64 // N/2 smoothed output bins
	tiltGain  []float64 // per-bin linear tilt correction
}

// NewAnalyzer creates a spectral analyzer. The frame size must be a power
// of two for the radix-2 transform.
func NewAnalyzer(params AnalyzerParams) (*Analyzer, error) {
	if params.FrameSize < 4 || !common.IsPowerOfTwo(params.FrameSize) {
		return nil, fmt.Errorf("frame size (%d) must be a power of two >= 4", params.FrameSize)
	}
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %v", params.SampleRate)
	}

	a := &Analyzer{
		params:    params,
		fft:       NewFFT(),
		window:    windowing.New(params.Window, params.FrameSize),
		scratch:   make([]float64, params.FrameSize),
		magnitude: make([]float64, params.FrameSize/2),
		smoothed:  make([]float64, params.FrameSize/2),
	}
	a.tiltGain = tiltGains(params.FrameSize, params.SampleRate, params.TiltDBPerDecade)

	return a, nil
}

// Params returns the analyzer configuration
func (a *Analyzer) Params() AnalyzerParams {
	return a.params
}

// Bins returns the number of output magnitude bins (frame size / 2)
func (a *Analyzer) Bins() int {
	return len(a.magnitude)
}

// Analyze computes the magnitude spectrum of one frame: window, FFT,
// spectral tilt, then one smoothing pass. The input frame is not mutated.
func (a *Analyzer) Analyze(frame []float64) ([]float64, error) {
	if len(frame) != a.params.FrameSize {
		return nil, fmt.Errorf("frame length (%d) doesn't match frame size (%d)", len(frame), a.params.FrameSize)
	}

	copy(a.scratch, frame)
	if err := a.window.ApplyInPlace(a.scratch); err != nil {
		return nil, err
	}

	spectrum := a.fft.Compute(a.scratch)
	a.fft.MagnitudesInto(a.magnitude, spectrum)

	// Tilt leaves DC untouched; tiltGain[0] is always 1.
	for i := range a.magnitude {
		a.magnitude[i] *= a.tiltGain[i]
	}

	return a.smooth(), nil
}

// tiltGains precomputes the linear per-bin gain for a tilt expressed in dB
// per decade of frequency, normalized so the full tilt is reached at the
// Nyquist bin. Decades are measured from the first non-DC bin.
func tiltGains(frameSize int, sampleRate, tiltDB float64) []float64 {
	bins := frameSize / 2
	gains := make([]float64, bins)
	gains[0] = 1.0

	if tiltDB == 0 {
		for i := 1; i < bins; i++ {
			gains[i] = 1.0
		}
		return gains
	}

	// decades(nyquist) relative to bin 1 is log10(N/2)
	decadesNyquist := math.Log10(float64(bins))
	for i := 1; i < bins; i++ {
		decades := math.Log10(float64(i))
		gains[i] = common.DBToLinear(tiltDB * decades / decadesNyquist)
	}
	return gains
}

// smooth applies the configured kernel out-of-place, leaving edge bins
// unmodified, and returns the active output buffer.
func (a *Analyzer) smooth() []float64 {
	n := len(a.magnitude)

	switch a.params.Smoothing {
	case SmoothBox3:
		copy(a.smoothed, a.magnitude)
		for i := 1; i < n-1; i++ {
			a.smoothed[i] = (a.magnitude[i-1] + a.magnitude[i] + a.magnitude[i+1]) / 3.0
		}
		return a.smoothed

	case SmoothTri5:
		copy(a.smoothed, a.magnitude)
		for i := 2; i < n-2; i++ {
			a.smoothed[i] = (a.magnitude[i-2] + 2.0*a.magnitude[i-1] + 3.0*a.magnitude[i] +
				2.0*a.magnitude[i+1] + a.magnitude[i+2]) / 9.0
		}
		return a.smoothed

	case SmoothAdjacent:
		copy(a.smoothed, a.magnitude)
		for i := 1; i < n-1; i++ {
			a.smoothed[i] = (a.magnitude[i-1] + a.magnitude[i+1]) / 2.0
		}
		return a.smoothed

	default:
		return a.magnitude
	}
}
