package soundtomidi

import (
	"testing"
)

func autoTuneTestConfig() Config {
	cfg := DefaultConfig()
	cfg.AutoTune.Enabled = true
	cfg.AutoTune.CalibrationSeconds = 0
	cfg.normalize()
	return cfg
}

func TestNewAutoTunerDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.normalize()
	if tuner := newAutoTuner(&cfg, false); tuner != nil {
		t.Error("got a tuner with auto-tune disabled")
	}
}

func TestAutoTuneCalibrationWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoTune.Enabled = true
	cfg.AutoTune.CalibrationSeconds = 1.0
	cfg.normalize()

	tuner := newAutoTuner(&cfg, false)
	if tuner == nil {
		t.Fatal("no tuner")
	}
	if !tuner.calibrating() {
		t.Fatal("tuner not calibrating at start")
	}

	// 512 samples per frame at 16 kHz is 32 ms; one second is 31 frames
	gateBefore := cfg.RMSGate
	frames := 0
	for tuner.calibrating() {
		tuner.endFrameMono(&cfg, 0.05, 0, 0, false)
		frames++
		if frames > 1000 {
			t.Fatal("calibration never ended")
		}
	}
	if frames != 31 {
		t.Errorf("calibration lasted %d frames, want 31", frames)
	}
	if cfg.RMSGate != gateBefore {
		t.Errorf("RMSGate changed during calibration: %v -> %v", gateBefore, cfg.RMSGate)
	}
	if tuner.noiseRMS <= 0 {
		t.Error("noise floor not trained during calibration")
	}
}

func TestAutoTuneRaisesGateOverNoise(t *testing.T) {
	cfg := autoTuneTestConfig()
	tuner := newAutoTuner(&cfg, false)

	gateBefore := cfg.RMSGate
	for i := 0; i < 200; i++ {
		tuner.endFrameMono(&cfg, 0.05, 0, 0, false)
	}

	// Noise RMS 0.05 with margin 3 targets a 0.15 gate
	if cfg.RMSGate <= gateBefore {
		t.Errorf("gate did not rise over noise: %v", cfg.RMSGate)
	}
	if cfg.RMSGate > cfg.AutoTune.RMSGateMax {
		t.Errorf("gate %v exceeded max %v", cfg.RMSGate, cfg.AutoTune.RMSGateMax)
	}
}

func TestAutoTuneGateStaysInBounds(t *testing.T) {
	cfg := autoTuneTestConfig()
	tuner := newAutoTuner(&cfg, false)

	// Extreme noise still clamps to the configured ceiling
	for i := 0; i < 500; i++ {
		tuner.endFrameMono(&cfg, 0.9, 0, 0, false)
	}
	if cfg.RMSGate > cfg.AutoTune.RMSGateMax {
		t.Errorf("gate %v exceeded max %v", cfg.RMSGate, cfg.AutoTune.RMSGateMax)
	}
}

func TestAutoTuneMedianGrowsUnderJitter(t *testing.T) {
	cfg := autoTuneTestConfig()
	tuner := newAutoTuner(&cfg, false)

	if cfg.MedianFilterSize != 3 {
		t.Fatalf("unexpected starting median size %d", cfg.MedianFilterSize)
	}

	// Alternate an octave apart: one semitone jump of 12 per frame
	for i := 0; i < 100; i++ {
		freq := 440.0
		if i%2 == 1 {
			freq = 880.0
		}
		tuner.endFrameMono(&cfg, 0.3, freq, 0.9, true)
	}
	if cfg.MedianFilterSize != 5 {
		t.Errorf("median size = %d under heavy jitter, want 5", cfg.MedianFilterSize)
	}
}

func TestAutoTuneObserverNotified(t *testing.T) {
	cfg := autoTuneTestConfig()
	type change struct {
		name     string
		old, new float64
	}
	var changes []change
	cfg.AutoTune.Observer = func(name string, oldValue, newValue float64) {
		changes = append(changes, change{name, oldValue, newValue})
	}
	tuner := newAutoTuner(&cfg, false)

	for i := 0; i < 50; i++ {
		tuner.endFrameMono(&cfg, 0.05, 0, 0, false)
	}

	if len(changes) == 0 {
		t.Fatal("observer never notified")
	}
	sawGate := false
	for _, c := range changes {
		if c.name == "rms_gate" {
			sawGate = true
			if c.old == c.new {
				t.Errorf("no-op change reported: %+v", c)
			}
		}
	}
	if !sawGate {
		t.Error("no rms_gate change observed")
	}
}

func TestAutoTunePolyThresholdTracksNoise(t *testing.T) {
	cfg := autoTuneTestConfig()
	tuner := newAutoTuner(&cfg, true)

	before := cfg.Poly.PeakThresholdDB

	// Quiet spectra with no peaks: noise magnitude around -60 dB, so the
	// threshold should fall from 20 dB toward -60+12 dB.
	for i := 0; i < 300; i++ {
		tuner.endFramePoly(&cfg, 0.001, -60.0, 0)
	}
	if cfg.Poly.PeakThresholdDB >= before {
		t.Errorf("peak threshold did not drop: %v", cfg.Poly.PeakThresholdDB)
	}
}

func TestAutoTuneHarmonicTightensUnderEventStorm(t *testing.T) {
	cfg := autoTuneTestConfig()
	tuner := newAutoTuner(&cfg, true)

	before := cfg.Poly.HarmonicEnergyRatioMax

	// Every frame fires an event pair: far beyond EventRateMax
	for i := 0; i < 100; i++ {
		tuner.noteOn()
		tuner.noteOff()
		tuner.endFramePoly(&cfg, 0.3, -20.0, 3)
	}
	if cfg.Poly.HarmonicEnergyRatioMax >= before {
		t.Errorf("harmonic ratio did not tighten: %v", cfg.Poly.HarmonicEnergyRatioMax)
	}
	if cfg.Poly.HarmonicEnergyRatioMax < harmonicRatioFloor {
		t.Errorf("harmonic ratio %v fell below floor %v",
			cfg.Poly.HarmonicEnergyRatioMax, harmonicRatioFloor)
	}
}

func TestAutoTuneHoldFramesFollowNoteDurations(t *testing.T) {
	cfg := autoTuneTestConfig()
	tuner := newAutoTuner(&cfg, false)

	// Long notes and long gaps: 20 frames on, 20 frames off
	for i := 0; i < 10; i++ {
		tuner.noteOn()
		for i := 0; i < 20; i++ {
			tuner.endFrameMono(&cfg, 0.3, 440.0, 0.9, true)
		}
		tuner.noteOff()
		for i := 0; i < 20; i++ {
			tuner.endFrameMono(&cfg, 0.001, 0, 0, false)
		}
	}

	// 0.75 of a 20-frame duration clamps at the 10-frame ceiling
	if cfg.NoteHoldFrames <= 3 {
		t.Errorf("hold frames = %d, want grown above 3", cfg.NoteHoldFrames)
	}
	if cfg.NoteHoldFrames > 10 {
		t.Errorf("hold frames = %d above ceiling", cfg.NoteHoldFrames)
	}
	if cfg.SilenceFramesOff <= 3 {
		t.Errorf("silence frames = %d, want grown above 3", cfg.SilenceFramesOff)
	}
}
