package soundtomidi

import (
	"math"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
	"github.com/RyanBlaney/sonido-midi/logging"
)

const (
	// statAlpha is the retention factor of the per-frame observation EMAs
	statAlpha = 0.9

	confidenceStep      = 0.01
	jitterHighSemitones = 0.5
	jitterLowSemitones  = 0.05

	// peaksPerFramePressure is the peaks-per-frame EMA above which the
	// polyphonic peak threshold gets an extra nudge upward.
	peaksPerFramePressure = 4.0

	harmonicTightenFactor = 0.95
	harmonicRatioFloor    = 0.1
)

// autoTuner adapts detection gates and thresholds at runtime from EMAs of
// the engine's observations. It owns no audio data: engines feed it one
// summary per frame and it mutates the engine's Config between frames, at
// the configured update cadence. During the initial calibration window it
// only trains the noise-floor estimates and the engine suppresses all note
// output.
type autoTuner struct {
	poly   bool
	logger logging.Logger

	frameSeconds    float64
	updateInterval  int
	sinceUpdate     int
	calibrationLeft int

	// observation EMAs
	noiseRMS   float64
	noiseMagDB float64
	confEMA    float64
	jitterEMA  float64
	eventEMA   float64 // note events per frame
	peaksEMA   float64 // spectral peaks per frame

	durEMA  float64 // frames a note stays on
	gapEMA  float64 // frames between notes
	haveDur bool
	haveGap bool

	lastNote        int
	eventsThisFrame int
	activeNotes     int
	framesOn        int
	framesOff       int
}

// newAutoTuner builds a tuner for the given (already normalized) config, or
// returns nil when auto-tuning is disabled.
func newAutoTuner(cfg *Config, poly bool) *autoTuner {
	if !cfg.AutoTune.Enabled {
		return nil
	}

	frameSeconds := float64(cfg.effectiveHop()) / cfg.SampleRateHz
	interval := int(math.Round(1.0 / (cfg.AutoTune.UpdateRateHz * frameSeconds)))
	interval = max(interval, 1)

	calibration := int(math.Round(cfg.AutoTune.CalibrationSeconds / frameSeconds))
	calibration = max(calibration, 0)

	return &autoTuner{
		poly:            poly,
		logger:          logging.WithFields(logging.Fields{"component": "auto_tune"}),
		frameSeconds:    frameSeconds,
		updateInterval:  interval,
		calibrationLeft: calibration,
		noiseMagDB:      -120.0,
		lastNote:        -1,
	}
}

// calibrating reports whether the initial calibration window is still open.
// While true, engines suppress all note events.
func (t *autoTuner) calibrating() bool {
	return t.calibrationLeft > 0
}

// noteOn records a fired note-on for the event-rate and gap statistics
func (t *autoTuner) noteOn() {
	t.eventsThisFrame++
	if t.activeNotes == 0 {
		t.gapEMA = emaOrSeed(t.gapEMA, float64(t.framesOff), t.haveGap)
		t.haveGap = true
		t.framesOff = 0
	}
	t.activeNotes++
}

// noteOff records a fired note-off for the event-rate and duration statistics
func (t *autoTuner) noteOff() {
	t.eventsThisFrame++
	if t.activeNotes > 0 {
		t.activeNotes--
		if t.activeNotes == 0 {
			t.durEMA = emaOrSeed(t.durEMA, float64(t.framesOn), t.haveDur)
			t.haveDur = true
			t.framesOn = 0
		}
	}
}

// endFrameMono ingests one monophonic frame summary
func (t *autoTuner) endFrameMono(cfg *Config, rms, freqHz, confidence float64, voiced bool) {
	if t.calibrationLeft > 0 {
		t.noiseRMS = emaOrSeed(t.noiseRMS, rms, t.noiseRMS > 0)
		t.calibrationLeft--
		return
	}

	if !voiced {
		t.noiseRMS = ema(t.noiseRMS, rms)
	}
	t.confEMA = ema(t.confEMA, confidence)

	if voiced && freqHz > 0 {
		raw := common.FreqToMIDI(freqHz)
		if t.lastNote >= 0 {
			t.jitterEMA = ema(t.jitterEMA, math.Abs(float64(raw-t.lastNote)))
		}
		t.lastNote = raw
	}

	t.tick(cfg)
}

// endFramePoly ingests one polyphonic frame summary. meanMagDB is the mean
// spectral magnitude of the frame in dB, used as the noise magnitude
// estimate when the frame produced no peaks.
func (t *autoTuner) endFramePoly(cfg *Config, rms, meanMagDB float64, peakCount int) {
	if t.calibrationLeft > 0 {
		t.noiseRMS = emaOrSeed(t.noiseRMS, rms, t.noiseRMS > 0)
		t.noiseMagDB = ema(t.noiseMagDB, meanMagDB)
		t.calibrationLeft--
		return
	}

	if peakCount == 0 {
		t.noiseRMS = ema(t.noiseRMS, rms)
		t.noiseMagDB = ema(t.noiseMagDB, meanMagDB)
	}
	t.peaksEMA = ema(t.peaksEMA, float64(peakCount))

	t.tick(cfg)
}

// tick advances the shared counters and applies tuning on the update cadence
func (t *autoTuner) tick(cfg *Config) {
	if t.activeNotes > 0 {
		t.framesOn++
	} else {
		t.framesOff++
	}

	t.eventEMA = ema(t.eventEMA, float64(t.eventsThisFrame))
	t.eventsThisFrame = 0

	t.sinceUpdate++
	if t.sinceUpdate >= t.updateInterval {
		t.sinceUpdate = 0
		t.apply(cfg)
	}
}

// apply mutates the config toward the observed operating point
func (t *autoTuner) apply(cfg *Config) {
	at := cfg.AutoTune
	eventsPerSec := t.eventEMA / t.frameSeconds

	gateTarget := common.Clamp(t.noiseRMS*at.NoiseMargin, at.RMSGateMin, at.RMSGateMax)
	t.set(cfg, "rms_gate", &cfg.RMSGate,
		at.Smoothing*cfg.RMSGate+(1.0-at.Smoothing)*gateTarget)

	if !t.poly {
		conf := cfg.ConfidenceThreshold
		if t.confEMA < cfg.ConfidenceThreshold || eventsPerSec > at.EventRateMax {
			conf += confidenceStep
		} else if eventsPerSec < at.EventRateMin {
			conf -= confidenceStep
		}
		t.set(cfg, "confidence_threshold", &cfg.ConfidenceThreshold,
			common.Clamp(conf, at.ConfidenceMin, at.ConfidenceMax))

		size := cfg.MedianFilterSize
		if t.jitterEMA > jitterHighSemitones {
			size = min(size+2, 5)
		} else if t.jitterEMA < jitterLowSemitones {
			size = max(size-2, 1)
		}
		t.setInt(cfg, "median_filter_size", &cfg.MedianFilterSize, size)
	}

	if t.haveDur {
		hold := common.ClampInt(int(math.Round(0.75*t.durEMA)), 1, 10)
		t.setInt(cfg, "note_hold_frames", &cfg.NoteHoldFrames, hold)
	}
	if t.haveGap {
		off := common.ClampInt(int(math.Round(0.5*t.gapEMA)), 1, 10)
		t.setInt(cfg, "silence_frames_off", &cfg.SilenceFramesOff, off)
	}

	if t.poly {
		threshold := at.Smoothing*cfg.Poly.PeakThresholdDB +
			(1.0-at.Smoothing)*(t.noiseMagDB+at.PeakMarginDB)
		if t.peaksEMA > peaksPerFramePressure {
			threshold += 1.0
		}
		t.set(cfg, "peak_threshold_db", &cfg.Poly.PeakThresholdDB, threshold)

		// Harmonic ratio tightens only when the event rate stays high
		// after the threshold correction above.
		if eventsPerSec > at.EventRateMax {
			tightened := math.Max(harmonicRatioFloor,
				cfg.Poly.HarmonicEnergyRatioMax*harmonicTightenFactor)
			t.set(cfg, "harmonic_energy_ratio_max", &cfg.Poly.HarmonicEnergyRatioMax, tightened)
		}
	}
}

func (t *autoTuner) set(cfg *Config, name string, field *float64, newValue float64) {
	old := *field
	if old == newValue {
		return
	}
	*field = newValue

	if cfg.AutoTune.Observer != nil {
		cfg.AutoTune.Observer(name, old, newValue)
	}
	t.logger.Debug("auto-tune adjusted parameter",
		logging.Fields{"param": name, "old": old, "new": newValue})
}

func (t *autoTuner) setInt(cfg *Config, name string, field *int, newValue int) {
	old := *field
	if old == newValue {
		return
	}
	*field = newValue

	if cfg.AutoTune.Observer != nil {
		cfg.AutoTune.Observer(name, float64(old), float64(newValue))
	}
	t.logger.Debug("auto-tune adjusted parameter",
		logging.Fields{"param": name, "old": old, "new": newValue})
}

func ema(current, sample float64) float64 {
	return statAlpha*current + (1.0-statAlpha)*sample
}

// emaOrSeed seeds the EMA with the first sample instead of averaging
// against a zero start.
func emaOrSeed(current, sample float64, seeded bool) float64 {
	if !seeded {
		return sample
	}
	return ema(current, sample)
}
