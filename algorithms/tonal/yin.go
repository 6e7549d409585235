package tonal

import (
	"math"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
)

// MaxLag bounds the autocorrelation lag search regardless of frame size, so
// lag buffers stay small on constrained targets.
const MaxLag = 600

const cmndEpsilon = 1e-12

// PitchResult is the outcome of one detection. A zero frequency means no
// pitch was found; Confidence is always in [0, 1].
type PitchResult struct {
	FreqHz     float64 `json:"freq_hz"`
	Confidence float64 `json:"confidence"`
}

// Valid reports whether a pitch was detected
func (r PitchResult) Valid() bool {
	return r.FreqHz > 0
}

// PitchDetectorParams configures the YIN detector
type PitchDetectorParams struct {
	SampleRate float64 `json:"sample_rate"`
	FrameSize  int     `json:"frame_size"`
	MinFreq    float64 `json:"min_freq"`
	MaxFreq    float64 `json:"max_freq"`
	Threshold  float64 `json:"threshold"` // CMND acceptance threshold
}

// PitchDetector estimates a single fundamental frequency per frame using the
// YIN cumulative mean normalized difference function.
//
// Reference: de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental
// frequency estimator for speech and music".
//
// Difference and CMND buffers are allocated once at construction and reused
// for every frame.
type PitchDetector struct {
	params PitchDetectorParams

	diff []float64
	cmnd []float64
}

// NewPitchDetector creates a YIN detector with preallocated lag buffers
func NewPitchDetector(params PitchDetectorParams) *PitchDetector {
	if params.Threshold <= 0 {
		params.Threshold = 0.10
	}

	bound := lagBound(params.FrameSize)
	return &PitchDetector{
		params: params,
		diff:   make([]float64, bound+1),
		cmnd:   make([]float64, bound+1),
	}
}

// Params returns the detector configuration
func (pd *PitchDetector) Params() PitchDetectorParams {
	return pd.params
}

// lagBound is the largest usable lag for an N-sample frame
func lagBound(n int) int {
	bound := min(n-2, MaxLag)
	if bound < 2 {
		bound = 2
	}
	return bound
}

// Detect estimates the fundamental frequency of one frame. It returns a
// zero result when the frame is too short, no candidate lag exists, or the
// estimate falls outside the configured frequency range.
func (pd *PitchDetector) Detect(frame []float64) PitchResult {
	n := len(frame)
	bound := lagBound(n)
	if n < 4 || bound > len(pd.diff)-1 {
		return PitchResult{}
	}

	sr := pd.params.SampleRate
	tauMin := common.ClampInt(int(math.Floor(sr/pd.params.MaxFreq)), 2, bound)
	tauMax := common.ClampInt(int(math.Ceil(sr/pd.params.MinFreq)), 2, bound)
	if tauMin > tauMax {
		return PitchResult{}
	}

	// Difference function, accumulated in double precision.
	for tau := 1; tau <= tauMax; tau++ {
		sum := 0.0
		for i := 0; i+tau < n; i++ {
			delta := frame[i] - frame[i+tau]
			sum += delta * delta
		}
		pd.diff[tau] = sum
	}

	// Cumulative mean normalized difference.
	pd.cmnd[0] = 1.0
	runningSum := 0.0
	for tau := 1; tau <= tauMax; tau++ {
		runningSum += pd.diff[tau]
		pd.cmnd[tau] = pd.diff[tau] * float64(tau) / (runningSum + cmndEpsilon)
	}
	if runningSum <= cmndEpsilon {
		// Silent frame: every lag matches trivially
		return PitchResult{}
	}

	// First lag under threshold wins, descended to its local minimum;
	// otherwise fall back to the global minimum over the search range.
	tauEst := -1
	for tau := tauMin; tau <= tauMax; tau++ {
		if pd.cmnd[tau] < pd.params.Threshold {
			tauEst = tau
			for tauEst < tauMax && pd.cmnd[tauEst+1] < pd.cmnd[tauEst] {
				tauEst++
			}
			break
		}
	}
	if tauEst < 0 {
		best := math.Inf(1)
		for tau := tauMin; tau <= tauMax; tau++ {
			if pd.cmnd[tau] < best {
				best = pd.cmnd[tau]
				tauEst = tau
			}
		}
	}
	if tauEst < 0 {
		return PitchResult{}
	}

	// Parabolic refinement to sub-sample lag precision.
	tauRefined := float64(tauEst)
	if tauEst > 1 && tauEst < tauMax {
		offset, _ := common.ParabolicPeak(pd.cmnd[tauEst-1], pd.cmnd[tauEst], pd.cmnd[tauEst+1])
		tauRefined += offset
	}

	freq := sr / tauRefined
	if freq < pd.params.MinFreq || freq > pd.params.MaxFreq {
		return PitchResult{}
	}

	// Confidence reads CMND at the nearest integer lag.
	tauIdx := common.ClampInt(int(math.Round(tauRefined)), 1, tauMax)
	confidence := 1.0 - math.Min(pd.cmnd[tauIdx], 1.0)

	return PitchResult{FreqHz: freq, Confidence: confidence}
}
