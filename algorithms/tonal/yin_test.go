package tonal

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
)

const testSampleRate = 16000.0

func testDetector(frameSize int) *PitchDetector {
	return NewPitchDetector(PitchDetectorParams{
		SampleRate: testSampleRate,
		FrameSize:  frameSize,
		MinFreq:    55.0,
		MaxFreq:    2000.0,
		Threshold:  0.10,
	})
}

func sineFrame(freq, amplitude float64, frameSize int) []float64 {
	frame := make([]float64, frameSize)
	for i := range frame {
		frame[i] = amplitude * math.Sin(2.0*math.Pi*freq*float64(i)/testSampleRate)
	}
	return frame
}

func TestDetectSine(t *testing.T) {
	pd := testDetector(512)

	cases := []struct {
		freq float64
		note int
	}{
		{440.0, 69},
		{523.25, 72},
		{220.0, 57},
		{110.0, 45},
		{880.0, 81},
	}
	for _, c := range cases {
		result := pd.Detect(sineFrame(c.freq, 0.5, 512))
		if !result.Valid() {
			t.Errorf("%v Hz: no pitch detected", c.freq)
			continue
		}
		if note := common.FreqToMIDI(result.FreqHz); note != c.note {
			t.Errorf("%v Hz: detected %v Hz (note %d), want note %d",
				c.freq, result.FreqHz, note, c.note)
		}
		if result.Confidence <= 0.5 {
			t.Errorf("%v Hz: confidence %v too low", c.freq, result.Confidence)
		}
	}
}

func TestDetectFrequencyAccuracy(t *testing.T) {
	pd := testDetector(512)
	result := pd.Detect(sineFrame(440.0, 0.5, 512))
	if !result.Valid() {
		t.Fatal("no pitch detected")
	}
	// Parabolic lag refinement should land within a few Hz
	if math.Abs(result.FreqHz-440.0) > 3.0 {
		t.Errorf("detected %v Hz, want 440 +/- 3", result.FreqHz)
	}
}

func TestDetectSilence(t *testing.T) {
	pd := testDetector(512)
	result := pd.Detect(make([]float64, 512))
	if result.Confidence > 0.5 {
		t.Errorf("silence produced confidence %v", result.Confidence)
	}
}

func TestDetectOutOfRange(t *testing.T) {
	pd := NewPitchDetector(PitchDetectorParams{
		SampleRate: testSampleRate,
		FrameSize:  512,
		MinFreq:    200.0,
		MaxFreq:    400.0,
		Threshold:  0.10,
	})

	// 110 Hz sits below the detector's range
	result := pd.Detect(sineFrame(110.0, 0.5, 512))
	if result.Valid() && (result.FreqHz < 200.0 || result.FreqHz > 400.0) {
		t.Errorf("out-of-range detection %v Hz escaped the configured range", result.FreqHz)
	}
}

func TestDetectShortFrame(t *testing.T) {
	pd := testDetector(512)
	if result := pd.Detect(make([]float64, 2)); result.Valid() {
		t.Error("expected no detection for a 2-sample frame")
	}
}

func TestDetectAmplitudeInvariance(t *testing.T) {
	pd := testDetector(512)

	loud := pd.Detect(sineFrame(330.0, 0.9, 512))
	quiet := pd.Detect(sineFrame(330.0, 0.05, 512))

	if !loud.Valid() || !quiet.Valid() {
		t.Fatal("detection failed at one of the amplitudes")
	}
	// CMND normalization makes the estimate amplitude-independent
	if math.Abs(loud.FreqHz-quiet.FreqHz) > 1.0 {
		t.Errorf("amplitude changed the estimate: %v vs %v", loud.FreqHz, quiet.FreqHz)
	}
}

func TestLagBound(t *testing.T) {
	if got := lagBound(512); got != 510 {
		t.Errorf("lagBound(512) = %d, want 510", got)
	}
	if got := lagBound(2048); got != MaxLag {
		t.Errorf("lagBound(2048) = %d, want %d", got, MaxLag)
	}
	if got := lagBound(3); got != 2 {
		t.Errorf("lagBound(3) = %d, want 2", got)
	}
}

func TestDetectDeterministic(t *testing.T) {
	pd := testDetector(512)
	frame := sineFrame(261.63, 0.5, 512)

	first := pd.Detect(frame)
	for i := 0; i < 5; i++ {
		if got := pd.Detect(frame); got != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}
