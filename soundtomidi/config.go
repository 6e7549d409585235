// Package soundtomidi converts streams of normalized audio samples into MIDI
// note-on/note-off events. It provides a monophonic engine built on YIN
// pitch detection, a polyphonic engine built on FFT peak analysis with
// harmonic rejection, a sliding-window front end for overlapped framing,
// and closed-loop auto-tuning of the detection thresholds.
//
// Engines are single-threaded and synchronous: ProcessFrame is called once
// per frame by an external scheduler, runs to completion, and invokes the
// note callbacks inline. No frame processing allocates unboundedly; working
// buffers are sized at construction or reconfiguration.
package soundtomidi

import (
	"math"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
	"github.com/RyanBlaney/sonido-midi/algorithms/spectral"
	"github.com/RyanBlaney/sonido-midi/algorithms/windowing"
)

// medianHistoryCap is the largest monophonic median-filter window
const medianHistoryCap = 11

// Config is the full tunable parameter set of an engine instance. It is a
// value type: engines copy it at construction and on SetConfig, and never
// mutate the caller's copy. Auto-tuning mutates the engine's own copy
// between frames.
type Config struct {
	SampleRateHz float64 `json:"sample_rate_hz"`
	FrameSize    int     `json:"frame_size"`

	// Detection frequency range in Hz
	FreqMinHz float64 `json:"freq_min_hz"`
	FreqMaxHz float64 `json:"freq_max_hz"`

	// DC blocking pre-filter ahead of analysis. The cutoff is clamped to
	// stay below the detection range.
	DCRemoval         bool    `json:"dc_removal"`
	DCRemovalCutoffHz float64 `json:"dc_removal_cutoff_hz"`

	// Gates shared by both engines
	RMSGate             float64 `json:"rms_gate"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	YinThreshold        float64 `json:"yin_threshold"`

	// Onset/offset hysteresis in frames
	NoteHoldFrames   int `json:"note_hold_frames"`
	SilenceFramesOff int `json:"silence_frames_off"`

	// Monophonic retrigger behavior
	NoteChangeSemitones  float64 `json:"note_change_semitone_threshold"`
	NoteChangeHoldFrames int     `json:"note_change_hold_frames"`

	// Monophonic median filter, odd size 1..11, 1 disables
	MedianFilterSize int `json:"median_filter_size"`

	// Velocity mapping: vel = floor + clamp01(rms*gain)*(127-floor)
	VelocityFloor int     `json:"velocity_floor"`
	VelocityGain  float64 `json:"velocity_gain"`

	KOfM     KOfMConfig     `json:"k_of_m"`
	Poly     PolyConfig     `json:"poly"`
	Sliding  SlidingConfig  `json:"sliding_window"`
	AutoTune AutoTuneConfig `json:"auto_tune"`
}

// KOfMConfig enables K-of-M debouncing: a detection (or absence) must hold
// in at least K of the last M frames before the onset/offset counters see it.
type KOfMConfig struct {
	Enabled bool `json:"enabled"`
	K       int  `json:"k"`
	M       int  `json:"m"`
}

// PolyConfig holds the polyphonic engine's spectral and peak parameters
type PolyConfig struct {
	Window          windowing.Type     `json:"window"`
	TiltDBPerDecade float64            `json:"tilt_db_per_decade"`
	Smoothing       spectral.Smoothing `json:"smoothing"`

	PeakThresholdDB   float64 `json:"peak_threshold_db"`
	MaxPeaks          int     `json:"max_peaks"`
	PeakInterpolation bool    `json:"peak_interpolation"`

	HarmonicFilter         bool    `json:"harmonic_filter"`
	HarmonicToleranceCents float64 `json:"harmonic_tolerance_cents"`
	HarmonicEnergyRatioMax float64 `json:"harmonic_energy_ratio_max"`

	// OctaveMask bit i passes octave i (note/12, saturated at 7)
	OctaveMask uint8 `json:"octave_mask"`

	// Pitch class profile stabilizer, advisory only
	PCPEnabled       bool `json:"pcp_enabled"`
	PCPHistoryFrames int  `json:"pcp_history_frames"`
}

// SlidingConfig configures the overlapped framing front end
type SlidingConfig struct {
	Enabled bool           `json:"enabled"`
	HopSize int            `json:"hop_size"`
	Window  windowing.Type `json:"window"`
}

// AutoTuneObserver is notified of every parameter change the auto-tuner
// makes, for diagnostics.
type AutoTuneObserver func(name string, oldValue, newValue float64)

// AutoTuneConfig configures the closed-loop threshold controller
type AutoTuneConfig struct {
	Enabled            bool    `json:"enabled"`
	UpdateRateHz       float64 `json:"update_rate_hz"`
	CalibrationSeconds float64 `json:"calibration_seconds"`

	// Smoothing is the EMA retention factor applied when moving tuned
	// parameters toward their targets.
	Smoothing   float64 `json:"smoothing"`
	NoiseMargin float64 `json:"noise_margin"`

	RMSGateMin float64 `json:"rms_gate_min"`
	RMSGateMax float64 `json:"rms_gate_max"`

	ConfidenceMin float64 `json:"confidence_min"`
	ConfidenceMax float64 `json:"confidence_max"`

	// Note events per second considered healthy
	EventRateMin float64 `json:"event_rate_min"`
	EventRateMax float64 `json:"event_rate_max"`

	// Poly: dB above the noise magnitude estimate for the peak threshold
	PeakMarginDB float64 `json:"peak_margin_db"`

	Observer AutoTuneObserver `json:"-"`
}

// DefaultConfig returns the parameter set engines start from
func DefaultConfig() Config {
	return Config{
		SampleRateHz: 16000,
		FrameSize:    512,

		FreqMinHz: 55.0,
		FreqMaxHz: 2000.0,

		DCRemoval:         false,
		DCRemovalCutoffHz: 10.0,

		RMSGate:             0.01,
		ConfidenceThreshold: 0.5,
		YinThreshold:        0.10,

		NoteHoldFrames:   3,
		SilenceFramesOff: 3,

		NoteChangeSemitones:  1.0,
		NoteChangeHoldFrames: 2,

		MedianFilterSize: 3,

		VelocityFloor: 10,
		VelocityGain:  2.0,

		KOfM: KOfMConfig{
			Enabled: false,
			K:       3,
			M:       5,
		},

		Poly: PolyConfig{
			Window:                 windowing.Hann,
			TiltDBPerDecade:        0.0,
			Smoothing:              spectral.SmoothNone,
			PeakThresholdDB:        20.0,
			MaxPeaks:               16,
			PeakInterpolation:      true,
			HarmonicFilter:         true,
			HarmonicToleranceCents: 35.0,
			HarmonicEnergyRatioMax: 0.7,
			OctaveMask:             0xFF,
			PCPEnabled:             false,
			PCPHistoryFrames:       64,
		},

		Sliding: SlidingConfig{
			Enabled: false,
			HopSize: 256,
			Window:  windowing.Hann,
		},

		AutoTune: AutoTuneConfig{
			Enabled:            false,
			UpdateRateHz:       10.0,
			CalibrationSeconds: 1.0,
			Smoothing:          0.9,
			NoiseMargin:        3.0,
			RMSGateMin:         0.005,
			RMSGateMax:         0.2,
			ConfidenceMin:      0.3,
			ConfidenceMax:      0.9,
			EventRateMin:       0.5,
			EventRateMax:       8.0,
			PeakMarginDB:       12.0,
		},
	}
}

// normalize corrects inconsistent parameters by clamping instead of failing
func (c *Config) normalize() {
	if c.SampleRateHz <= 0 {
		c.SampleRateHz = 16000
	}
	if c.FrameSize < 4 {
		c.FrameSize = 4
	}
	if !common.IsPowerOfTwo(c.FrameSize) {
		c.FrameSize = common.NextPowerOfTwo(c.FrameSize)
	}

	if c.FreqMinHz <= 0 {
		c.FreqMinHz = 1.0
	}
	if c.FreqMaxHz <= c.FreqMinHz {
		c.FreqMaxHz = c.FreqMinHz + 1.0
	}

	if c.DCRemovalCutoffHz <= 0 || c.DCRemovalCutoffHz > c.FreqMinHz {
		c.DCRemovalCutoffHz = math.Min(10.0, c.FreqMinHz)
	}

	c.NoteHoldFrames = max(c.NoteHoldFrames, 1)
	c.SilenceFramesOff = max(c.SilenceFramesOff, 1)
	c.NoteChangeHoldFrames = max(c.NoteChangeHoldFrames, 1)

	c.MedianFilterSize = common.ClampInt(c.MedianFilterSize, 1, medianHistoryCap)
	if c.MedianFilterSize%2 == 0 {
		c.MedianFilterSize--
	}

	c.VelocityFloor = common.ClampInt(c.VelocityFloor, 1, 126)

	c.KOfM.M = common.ClampInt(c.KOfM.M, 1, maxDebounceWindow)
	c.KOfM.K = common.ClampInt(c.KOfM.K, 1, c.KOfM.M)

	c.Poly.MaxPeaks = max(c.Poly.MaxPeaks, 0)
	if c.Poly.PCPHistoryFrames < 1 {
		c.Poly.PCPHistoryFrames = 1
	}

	// hop_size <= frame_size always
	if c.Sliding.HopSize > c.FrameSize || c.Sliding.HopSize < 1 {
		c.Sliding.HopSize = c.FrameSize
	}

	if c.AutoTune.UpdateRateHz <= 0 {
		c.AutoTune.UpdateRateHz = 1.0
	}
	c.AutoTune.Smoothing = common.Clamp(c.AutoTune.Smoothing, 0.0, 0.999)
}

// effectiveHop is the number of samples each processed frame advances by
func (c *Config) effectiveHop() int {
	if c.Sliding.Enabled {
		return c.Sliding.HopSize
	}
	return c.FrameSize
}
