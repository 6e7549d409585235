package harmonic

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
)

// maxHarmonicRatio is the highest integer frequency ratio the harmonic veto
// considers (2nd through 8th harmonic).
const maxHarmonicRatio = 8

// NotePeak is a spectral peak quantized to a MIDI note
type NotePeak struct {
	Note      int     `json:"note"` // MIDI note number 0..127
	FreqHz    float64 `json:"freq_hz"`
	Magnitude float64 `json:"magnitude"`
}

// PeakExtractorParams configures peak detection and harmonic rejection
type PeakExtractorParams struct {
	SampleRate float64 `json:"sample_rate"`
	FrameSize  int     `json:"frame_size"`
	MinFreq    float64 `json:"min_freq"`
	MaxFreq    float64 `json:"max_freq"`

	ThresholdDB float64 `json:"threshold_db"` // peak acceptance threshold in dB
	MaxPeaks    int     `json:"max_peaks"`    // cap on peaks per frame, 0 = no cap
	Interpolate bool    `json:"interpolate"`  // parabolic sub-bin refinement

	HarmonicFilter         bool    `json:"harmonic_filter"`
	HarmonicToleranceCents float64 `json:"harmonic_tolerance_cents"`
	HarmonicEnergyRatioMax float64 `json:"harmonic_energy_ratio_max"`

	// OctaveMask drops notes whose octave bit is unset. Octave index is
	// note/12, saturated at 7. 0xFF passes everything.
	OctaveMask uint8 `json:"octave_mask"`
}

// PeakExtractor finds spectral peaks, maps them to MIDI notes, rejects
// harmonics of stronger peaks, and applies the octave mask. The peak slice
// is reused across frames; results are valid until the next Extract call.
type PeakExtractor struct {
	params PeakExtractorParams
	peaks  []NotePeak
	vetoed []bool
}

// NewPeakExtractor creates a peak extractor
func NewPeakExtractor(params PeakExtractorParams) *PeakExtractor {
	return &PeakExtractor{
		params: params,
		peaks:  make([]NotePeak, 0, 32),
		vetoed: make([]bool, 0, 32),
	}
}

// Params returns the extractor configuration
func (pe *PeakExtractor) Params() PeakExtractorParams {
	return pe.params
}

// SetParams replaces the extractor configuration
func (pe *PeakExtractor) SetParams(params PeakExtractorParams) {
	pe.params = params
}

// Extract scans a magnitude spectrum for note peaks. The spectrum holds
// frameSize/2 bins as produced by the spectral analyzer.
func (pe *PeakExtractor) Extract(magnitude []float64) []NotePeak {
	pe.peaks = pe.peaks[:0]
	if len(magnitude) < 3 {
		return pe.peaks
	}

	p := pe.params
	n := float64(p.FrameSize)
	binHz := p.SampleRate / n

	binMin := int(math.Floor(p.MinFreq * n / p.SampleRate))
	binMin = max(binMin, 1)
	binMax := int(math.Ceil(p.MaxFreq * n / p.SampleRate))
	binMax = min(binMax, len(magnitude)-2)

	threshold := common.DBToLinear(p.ThresholdDB)

	for i := binMin; i <= binMax; i++ {
		m := magnitude[i]
		if m <= threshold || m < magnitude[i-1] || m < magnitude[i+1] {
			continue
		}

		bin := float64(i)
		mag := m
		if p.Interpolate {
			offset, value := common.ParabolicPeak(magnitude[i-1], m, magnitude[i+1])
			bin += offset
			mag = value
		}

		freq := bin * binHz
		note := common.FreqToMIDI(freq)
		if note < 0 {
			continue
		}

		pe.peaks = append(pe.peaks, NotePeak{
			Note:      note,
			FreqHz:    freq,
			Magnitude: mag,
		})
	}

	sort.Slice(pe.peaks, func(a, b int) bool {
		return pe.peaks[a].Magnitude > pe.peaks[b].Magnitude
	})

	if p.MaxPeaks > 0 && len(pe.peaks) > p.MaxPeaks {
		pe.peaks = pe.peaks[:p.MaxPeaks]
	}

	if p.HarmonicFilter {
		pe.rejectHarmonics()
	}

	if p.OctaveMask != 0xFF {
		pe.applyOctaveMask()
	}

	return pe.peaks
}

// rejectHarmonics vetoes peaks that sit on an integer multiple (2..8) of a
// stronger surviving peak, within the configured cents tolerance, when
// their energy is below the configured fraction of the fundamental's.
func (pe *PeakExtractor) rejectHarmonics() {
	p := pe.params

	if cap(pe.vetoed) < len(pe.peaks) {
		pe.vetoed = make([]bool, len(pe.peaks))
	}
	pe.vetoed = pe.vetoed[:len(pe.peaks)]
	for i := range pe.vetoed {
		pe.vetoed[i] = false
	}

	for i := range pe.peaks {
		if pe.vetoed[i] {
			continue
		}
		fund := pe.peaks[i]
		if fund.FreqHz <= 1e-9 {
			continue
		}

		for j := range pe.peaks {
			if j == i || pe.vetoed[j] {
				continue
			}
			cand := pe.peaks[j]

			ratio := cand.FreqHz / fund.FreqHz
			harmonic := int(math.Round(ratio))
			if harmonic < 2 || harmonic > maxHarmonicRatio {
				continue
			}

			cents := 1200.0 * math.Log2(cand.FreqHz/(fund.FreqHz*float64(harmonic)))
			if math.Abs(cents) > p.HarmonicToleranceCents {
				continue
			}

			if cand.Magnitude < fund.Magnitude*p.HarmonicEnergyRatioMax {
				pe.vetoed[j] = true
			}
		}
	}

	kept := pe.peaks[:0]
	for i := range pe.peaks {
		if !pe.vetoed[i] {
			kept = append(kept, pe.peaks[i])
		}
	}
	pe.peaks = kept
}

// applyOctaveMask drops peaks whose octave bit is unset
func (pe *PeakExtractor) applyOctaveMask() {
	kept := pe.peaks[:0]
	for _, peak := range pe.peaks {
		octave := peak.Note / 12
		octave = min(octave, 7)
		if pe.params.OctaveMask&(1<<uint(octave)) != 0 {
			kept = append(kept, peak)
		}
	}
	pe.peaks = kept
}
