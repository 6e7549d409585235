// Package filters provides streaming sample filters applied ahead of
// pitch analysis.
package filters

import "math"

// DCRemoval is a single-pole DC blocking filter:
//
//	y[n] = x[n] - x[n-1] + R * y[n-1]
//
// Reference: Julius O. Smith III, "Introduction to Digital Filters with
// Audio Applications", https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCRemoval struct {
	pole float64 // R, 0 < R < 1

	x1 float64
	y1 float64
}

// NewDCRemoval creates a DC blocker with a cutoff of roughly cutoffHz at the
// given sample rate, using the small-angle design R = 1 - 2*pi*fc/fs.
func NewDCRemoval(sampleRate, cutoffHz float64) *DCRemoval {
	pole := 0.995
	if sampleRate > 0 && cutoffHz > 0 {
		pole = 1.0 - 2.0*math.Pi*cutoffHz/sampleRate
		if pole >= 1.0 {
			pole = 0.999
		} else if pole <= 0.0 {
			pole = 0.001
		}
	}
	return &DCRemoval{pole: pole}
}

// Process filters a single sample
func (dc *DCRemoval) Process(input float64) float64 {
	output := input - dc.x1 + dc.pole*dc.y1
	dc.x1 = input
	dc.y1 = output
	return output
}

// ProcessInto filters src into dst, which must be at least as long as src
func (dc *DCRemoval) ProcessInto(dst, src []float64) {
	for i, sample := range src {
		dst[i] = dc.Process(sample)
	}
}

// Reset clears the filter state. Call between discontinuous segments.
func (dc *DCRemoval) Reset() {
	dc.x1 = 0.0
	dc.y1 = 0.0
}

// CutoffHz reports the approximate -3dB cutoff at the given sample rate
func (dc *DCRemoval) CutoffHz(sampleRate float64) float64 {
	if sampleRate <= 0 {
		return 0.0
	}
	return (1.0 - dc.pole) * sampleRate / (2.0 * math.Pi)
}
