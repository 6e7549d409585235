package soundtomidi

import (
	"math"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
	"github.com/RyanBlaney/sonido-midi/algorithms/filters"
	"github.com/RyanBlaney/sonido-midi/algorithms/tonal"
	"github.com/RyanBlaney/sonido-midi/logging"
)

// Mono is the single-note engine: YIN pitch detection per frame, a median
// filter over recent detections, and an onset/offset/retrigger state
// machine with frame-count hysteresis.
//
// At most one note is sounding at a time. Events fire synchronously inside
// ProcessFrame, exactly at state transitions.
type Mono struct {
	cfg    Config
	logger logging.Logger

	onNoteOn  NoteOnHandler
	onNoteOff NoteOffHandler

	detector *tonal.PitchDetector
	tuner    *autoTuner
	debounce debouncer

	dcFilter *filters.DCRemoval
	filtered []float64

	// Circular history of raw note detections for the median filter
	history   [medianHistoryCap]int
	histIdx   int
	histCount int
	scratch   [medianHistoryCap]int

	activeNote   int // sounding note, -1 when silent
	onsetNote    int
	onsetCount   int
	retrigNote   int
	retrigCount  int
	silenceCount int
}

// NewMono creates a monophonic engine. Inconsistent config values are
// clamped rather than rejected.
func NewMono(cfg Config) *Mono {
	m := &Mono{
		logger:     logging.WithFields(logging.Fields{"engine": "mono"}),
		activeNote: -1,
		onsetNote:  -1,
		retrigNote: -1,
	}
	m.SetConfig(cfg)
	return m
}

// SetNoteCallbacks installs the event sinks. Either may be nil.
func (m *Mono) SetNoteCallbacks(onNoteOn NoteOnHandler, onNoteOff NoteOffHandler) {
	m.onNoteOn = onNoteOn
	m.onNoteOff = onNoteOff
}

// Config returns a copy of the active configuration
func (m *Mono) Config() Config {
	return m.cfg
}

// SetConfig replaces the configuration wholesale and reallocates the
// detector buffers. Tracking state survives so a sounding note is not lost
// across reconfiguration.
func (m *Mono) SetConfig(cfg Config) {
	cfg.normalize()
	m.cfg = cfg

	m.detector = tonal.NewPitchDetector(tonal.PitchDetectorParams{
		SampleRate: cfg.SampleRateHz,
		FrameSize:  cfg.FrameSize,
		MinFreq:    cfg.FreqMinHz,
		MaxFreq:    cfg.FreqMaxHz,
		Threshold:  cfg.YinThreshold,
	})
	m.debounce = newDebouncer(cfg.KOfM.K, cfg.KOfM.M)
	m.tuner = newAutoTuner(&m.cfg, false)

	if cfg.DCRemoval {
		m.dcFilter = filters.NewDCRemoval(cfg.SampleRateHz, cfg.DCRemovalCutoffHz)
		m.filtered = make([]float64, cfg.FrameSize)
	} else {
		m.dcFilter = nil
		m.filtered = nil
	}

	m.logger.Debug("engine configured", logging.Fields{
		"sample_rate": cfg.SampleRateHz,
		"frame_size":  cfg.FrameSize,
		"freq_min":    cfg.FreqMinHz,
		"freq_max":    cfg.FreqMaxHz,
	})
}

// Reset clears all tracking state without firing events
func (m *Mono) Reset() {
	m.activeNote = -1
	m.onsetNote = -1
	m.onsetCount = 0
	m.retrigNote = -1
	m.retrigCount = 0
	m.silenceCount = 0
	m.clearHistory()
	m.debounce.reset()
	m.tuner = newAutoTuner(&m.cfg, false)
	if m.dcFilter != nil {
		m.dcFilter.Reset()
	}
}

// ProcessFrame analyzes one frame. Frames of the wrong length are ignored.
func (m *Mono) ProcessFrame(samples []float64) {
	if len(samples) == 0 || len(samples) != m.cfg.FrameSize {
		return
	}

	if m.dcFilter != nil {
		m.dcFilter.ProcessInto(m.filtered, samples)
		samples = m.filtered
	}

	rms := common.RMS(samples)
	result := m.detector.Detect(samples)

	voiced := rms > m.cfg.RMSGate &&
		result.Confidence > m.cfg.ConfidenceThreshold &&
		result.FreqHz > 0
	if m.cfg.KOfM.Enabled {
		voiced = m.debounce.push(voiced)
	}

	// During auto-tune calibration only the noise estimators run; no note
	// state changes and no events fire.
	if m.tuner == nil || !m.tuner.calibrating() {
		if voiced {
			m.voicedFrame(result.FreqHz, rms)
		} else {
			m.unvoicedFrame()
		}
	}

	if m.tuner != nil {
		m.tuner.endFrameMono(&m.cfg, rms, result.FreqHz, result.Confidence, voiced)
	}
}

func (m *Mono) voicedFrame(freqHz, rms float64) {
	raw := common.FreqToMIDI(freqHz)
	if raw < 0 {
		return
	}
	m.pushHistory(raw)
	note := m.medianNote()
	m.silenceCount = 0

	if m.activeNote < 0 {
		// Building onset confirmation
		if note == m.onsetNote {
			m.onsetCount++
		} else {
			m.onsetNote = note
			m.onsetCount = 1
		}
		if m.onsetCount >= m.cfg.NoteHoldFrames {
			m.fireNoteOn(note, rms)
			m.activeNote = note
			m.onsetNote = -1
			m.onsetCount = 0
		}
		return
	}

	if math.Abs(float64(note-m.activeNote)) >= m.cfg.NoteChangeSemitones {
		// Pitch moved: confirm the retrigger over consecutive frames of
		// the same candidate before switching notes.
		if note == m.retrigNote {
			m.retrigCount++
		} else {
			m.retrigNote = note
			m.retrigCount = 1
		}
		if m.retrigCount >= m.cfg.NoteChangeHoldFrames {
			m.fireNoteOff(m.activeNote)
			m.fireNoteOn(note, rms)
			m.activeNote = note
			m.retrigNote = -1
			m.retrigCount = 0
		}
		return
	}

	// Steady note
	m.retrigNote = -1
	m.retrigCount = 0
}

func (m *Mono) unvoicedFrame() {
	if m.activeNote < 0 && m.onsetCount == 0 {
		return
	}

	m.silenceCount++
	if m.silenceCount < m.cfg.SilenceFramesOff {
		return
	}

	if m.activeNote >= 0 {
		m.fireNoteOff(m.activeNote)
	}
	m.activeNote = -1
	m.onsetNote = -1
	m.onsetCount = 0
	m.retrigNote = -1
	m.retrigCount = 0
	m.silenceCount = 0
	m.clearHistory()
}

func (m *Mono) fireNoteOn(note int, rms float64) {
	vel := velocity(m.cfg.VelocityFloor, rms*m.cfg.VelocityGain)
	if m.onNoteOn != nil {
		m.onNoteOn(uint8(note), vel)
	}
	if m.tuner != nil {
		m.tuner.noteOn()
	}
}

func (m *Mono) fireNoteOff(note int) {
	if m.onNoteOff != nil {
		m.onNoteOff(uint8(note))
	}
	if m.tuner != nil {
		m.tuner.noteOff()
	}
}

// pushHistory appends a raw note detection to the circular median history
func (m *Mono) pushHistory(note int) {
	m.history[m.histIdx] = note
	m.histIdx = (m.histIdx + 1) % medianHistoryCap
	if m.histCount < medianHistoryCap {
		m.histCount++
	}
}

// medianNote returns the median of the most recent detections. The window
// is the configured median size clamped to the available history; size 1
// passes the latest detection through unfiltered.
func (m *Mono) medianNote() int {
	w := min(m.cfg.MedianFilterSize, m.histCount)
	if w <= 1 {
		latest := (m.histIdx - 1 + medianHistoryCap) % medianHistoryCap
		return m.history[latest]
	}

	start := m.histIdx - w
	if start < 0 {
		start += medianHistoryCap
	}
	for i := 0; i < w; i++ {
		m.scratch[i] = m.history[(start+i)%medianHistoryCap]
	}
	return common.MedianInt(m.scratch[:w])
}

func (m *Mono) clearHistory() {
	m.histIdx = 0
	m.histCount = 0
}
