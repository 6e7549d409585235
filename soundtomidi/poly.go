package soundtomidi

import (
	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
	"github.com/RyanBlaney/sonido-midi/algorithms/filters"
	"github.com/RyanBlaney/sonido-midi/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-midi/algorithms/spectral"
	"github.com/RyanBlaney/sonido-midi/logging"
)

// peakMemory is the last known spectral evidence for a note, kept for
// diagnostics and continuity tracking. It does not influence on/off timing.
type peakMemory struct {
	FreqHz       float64
	Magnitude    float64
	FramesAbsent int
}

// noteState tracks one of the 128 MIDI notes across frames
type noteState struct {
	active   bool
	onCount  int
	offCount int
	memory   peakMemory
}

// Poly is the multi-note engine: each frame is windowed, transformed into a
// shaped magnitude spectrum, scanned for note peaks with harmonic
// rejection, and fed through 128 independent onset/offset state machines.
//
// All per-note state lives in fixed arrays indexed by MIDI note number, so
// the hot path performs no per-frame allocation.
type Poly struct {
	cfg    Config
	logger logging.Logger

	onNoteOn  NoteOnHandler
	onNoteOff NoteOffHandler

	analyzer  *spectral.Analyzer
	extractor *harmonic.PeakExtractor
	tuner     *autoTuner
	pcp       pitchClassProfile

	dcFilter *filters.DCRemoval
	filtered []float64

	notes    [128]noteState
	debounce [128]debouncer

	// Per-frame scratch, cleared each frame
	present   [128]bool
	frameMag  [128]float64
	frameFreq [128]float64
}

// NewPoly creates a polyphonic engine. Inconsistent config values are
// clamped rather than rejected; a non-power-of-two frame size is rounded up.
func NewPoly(cfg Config) *Poly {
	p := &Poly{
		logger: logging.WithFields(logging.Fields{"engine": "poly"}),
	}
	p.SetConfig(cfg)
	return p
}

// SetNoteCallbacks installs the event sinks. Either may be nil.
func (p *Poly) SetNoteCallbacks(onNoteOn NoteOnHandler, onNoteOff NoteOffHandler) {
	p.onNoteOn = onNoteOn
	p.onNoteOff = onNoteOff
}

// Config returns a copy of the active configuration
func (p *Poly) Config() Config {
	return p.cfg
}

// SetConfig replaces the configuration wholesale, rebuilding the spectral
// front end. Per-note tracking state survives reconfiguration.
func (p *Poly) SetConfig(cfg Config) {
	cfg.normalize()
	p.cfg = cfg

	analyzer, err := spectral.NewAnalyzer(spectral.AnalyzerParams{
		SampleRate:      cfg.SampleRateHz,
		FrameSize:       cfg.FrameSize,
		Window:          cfg.Poly.Window,
		TiltDBPerDecade: cfg.Poly.TiltDBPerDecade,
		Smoothing:       cfg.Poly.Smoothing,
	})
	if err != nil {
		// normalize() guarantees a power-of-two frame size, so this only
		// trips on a programming error.
		p.logger.Error(err, "spectral analyzer rebuild failed")
		return
	}
	p.analyzer = analyzer

	p.extractor = harmonic.NewPeakExtractor(p.extractorParams())
	p.pcp = newPitchClassProfile(cfg.Poly.PCPHistoryFrames)
	for i := range p.debounce {
		p.debounce[i] = newDebouncer(cfg.KOfM.K, cfg.KOfM.M)
	}
	p.tuner = newAutoTuner(&p.cfg, true)

	if cfg.DCRemoval {
		p.dcFilter = filters.NewDCRemoval(cfg.SampleRateHz, cfg.DCRemovalCutoffHz)
		p.filtered = make([]float64, cfg.FrameSize)
	} else {
		p.dcFilter = nil
		p.filtered = nil
	}

	p.logger.Debug("engine configured", logging.Fields{
		"sample_rate": cfg.SampleRateHz,
		"frame_size":  cfg.FrameSize,
		"window":      cfg.Poly.Window.String(),
	})
}

// extractorParams projects the current config onto the peak extractor.
// Rebuilt every frame because auto-tuning can move the threshold and the
// harmonic energy ratio between frames.
func (p *Poly) extractorParams() harmonic.PeakExtractorParams {
	return harmonic.PeakExtractorParams{
		SampleRate:             p.cfg.SampleRateHz,
		FrameSize:              p.cfg.FrameSize,
		MinFreq:                p.cfg.FreqMinHz,
		MaxFreq:                p.cfg.FreqMaxHz,
		ThresholdDB:            p.cfg.Poly.PeakThresholdDB,
		MaxPeaks:               p.cfg.Poly.MaxPeaks,
		Interpolate:            p.cfg.Poly.PeakInterpolation,
		HarmonicFilter:         p.cfg.Poly.HarmonicFilter,
		HarmonicToleranceCents: p.cfg.Poly.HarmonicToleranceCents,
		HarmonicEnergyRatioMax: p.cfg.Poly.HarmonicEnergyRatioMax,
		OctaveMask:             p.cfg.Poly.OctaveMask,
	}
}

// Reset clears all tracking state without firing events
func (p *Poly) Reset() {
	for i := range p.notes {
		p.notes[i] = noteState{}
		p.debounce[i].reset()
	}
	p.pcp.reset()
	p.tuner = newAutoTuner(&p.cfg, true)
	if p.dcFilter != nil {
		p.dcFilter.Reset()
	}
}

// PCPBias returns the advisory pitch-class-profile energy for a note. It is
// exposed for diagnostics and downstream weighting; the engine itself never
// gates acceptance on it.
func (p *Poly) PCPBias(note int) float64 {
	return p.pcp.bias(note)
}

// NoteActive reports whether a note is currently sounding
func (p *Poly) NoteActive(note int) bool {
	if note < 0 || note > 127 {
		return false
	}
	return p.notes[note].active
}

// ProcessFrame analyzes one frame. Frames of the wrong length are ignored.
func (p *Poly) ProcessFrame(samples []float64) {
	if len(samples) == 0 || len(samples) != p.cfg.FrameSize || p.analyzer == nil {
		return
	}

	if p.dcFilter != nil {
		p.dcFilter.ProcessInto(p.filtered, samples)
		samples = p.filtered
	}

	rms := common.RMS(samples)

	magnitude, err := p.analyzer.Analyze(samples)
	if err != nil {
		return
	}

	var peaks []harmonic.NotePeak
	if rms > p.cfg.RMSGate {
		p.extractor.SetParams(p.extractorParams())
		peaks = p.extractor.Extract(magnitude)
	}

	// Collapse peaks onto the per-note scratch, keeping the strongest
	// evidence per note.
	for i := range p.present {
		p.present[i] = false
		p.frameMag[i] = 0
		p.frameFreq[i] = 0
	}
	for _, pk := range peaks {
		p.present[pk.Note] = true
		if pk.Magnitude > p.frameMag[pk.Note] {
			p.frameMag[pk.Note] = pk.Magnitude
			p.frameFreq[pk.Note] = pk.FreqHz
		}
	}
	maxMag := floats.Max(p.frameMag[:])

	if p.cfg.Poly.PCPEnabled {
		p.pcp.step()
		if maxMag > 0 {
			for note := range p.present {
				if p.present[note] {
					p.pcp.bump(note, p.frameMag[note]/maxMag)
				}
			}
		}
	}

	calibrating := p.tuner != nil && p.tuner.calibrating()
	if !calibrating {
		p.trackNotes(rms, maxMag)
	}

	if p.tuner != nil {
		p.tuner.endFramePoly(&p.cfg, rms, common.LinearToDB(common.Mean(magnitude)), len(peaks))
	}
}

// trackNotes advances all 128 per-note state machines for one frame
func (p *Poly) trackNotes(rms, maxMag float64) {
	globalNorm := common.Clamp01(rms * p.cfg.VelocityGain)

	for note := range p.notes {
		detected := p.present[note]
		if p.cfg.KOfM.Enabled {
			detected = p.debounce[note].push(detected)
		}
		st := &p.notes[note]

		switch {
		case detected && !st.active:
			st.onCount++
			st.offCount = 0
			p.rememberPeak(st, note)
			if st.onCount >= p.cfg.NoteHoldFrames {
				p.fireNoteOn(note, globalNorm, maxMag, st)
				st.active = true
				st.onCount = 0
			}

		case detected && st.active:
			// Sustain
			st.onCount = 0
			st.offCount = 0
			p.rememberPeak(st, note)

		case !detected && st.active:
			st.offCount++
			st.memory.FramesAbsent++
			if st.offCount >= p.cfg.SilenceFramesOff {
				p.fireNoteOff(note)
				st.active = false
				st.offCount = 0
				st.memory = peakMemory{}
			}

		default:
			st.onCount = 0
		}
	}
}

// rememberPeak updates a note's continuity memory from this frame's peak
func (p *Poly) rememberPeak(st *noteState, note int) {
	if p.frameMag[note] > 0 {
		st.memory = peakMemory{
			FreqHz:    p.frameFreq[note],
			Magnitude: p.frameMag[note],
		}
	}
}

func (p *Poly) fireNoteOn(note int, globalNorm, maxMag float64, st *noteState) {
	mag := p.frameMag[note]
	if mag == 0 {
		mag = st.memory.Magnitude
	}

	relAmp := 0.0
	if maxMag > 0 {
		relAmp = mag / maxMag
	}
	vel := velocity(p.cfg.VelocityFloor, globalNorm*relAmp)

	if p.onNoteOn != nil {
		p.onNoteOn(uint8(note), vel)
	}
	if p.tuner != nil {
		p.tuner.noteOn()
	}
}

func (p *Poly) fireNoteOff(note int) {
	if p.onNoteOff != nil {
		p.onNoteOff(uint8(note))
	}
	if p.tuner != nil {
		p.tuner.noteOff()
	}
}
