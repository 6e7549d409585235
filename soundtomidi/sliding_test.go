package soundtomidi

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-midi/algorithms/windowing"
)

// stubEngine records the frames it receives
type stubEngine struct {
	cfg    Config
	frames [][]float64
}

func (s *stubEngine) ProcessFrame(samples []float64) {
	frame := make([]float64, len(samples))
	copy(frame, samples)
	s.frames = append(s.frames, frame)
}
func (s *stubEngine) SetNoteCallbacks(on NoteOnHandler, off NoteOffHandler) {}
func (s *stubEngine) Config() Config                                        { return s.cfg }
func (s *stubEngine) SetConfig(cfg Config)                                  { s.cfg = cfg }
func (s *stubEngine) Reset()                                                {}

func slidingStub(frameSize, hopSize int) *stubEngine {
	cfg := DefaultConfig()
	cfg.FrameSize = frameSize
	cfg.Sliding.Enabled = true
	cfg.Sliding.HopSize = hopSize
	cfg.Sliding.Window = windowing.None
	cfg.normalize()
	return &stubEngine{cfg: cfg}
}

func TestSlidingWindowEmitsOnHopBoundaries(t *testing.T) {
	stub := slidingStub(512, 256)
	sw := NewSlidingWindow(stub)

	// 1024 samples: hop boundaries at 256, 512, 768, 1024; the first lacks
	// a full frame of history, so three frames come out.
	samples := make([]float64, 1024)
	for i := range samples {
		samples[i] = float64(i)
	}
	sw.ProcessSamples(samples)

	if len(stub.frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(stub.frames))
	}
	for i, frame := range stub.frames {
		if len(frame) != 512 {
			t.Fatalf("frame %d has %d samples, want 512", i, len(frame))
		}
	}

	// The last frame holds the most recent 512 samples in order
	last := stub.frames[2]
	if last[0] != 512 || last[511] != 1023 {
		t.Errorf("last frame spans %v..%v, want 512..1023", last[0], last[511])
	}
}

func TestSlidingWindowArbitraryChunks(t *testing.T) {
	stub := slidingStub(512, 256)
	sw := NewSlidingWindow(stub)

	// Same stream, awkward chunk sizes
	samples := make([]float64, 1024)
	for i := range samples {
		samples[i] = float64(i)
	}
	for start := 0; start < len(samples); start += 100 {
		end := min(start+100, len(samples))
		sw.ProcessSamples(samples[start:end])
	}

	if len(stub.frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(stub.frames))
	}
	last := stub.frames[2]
	if last[0] != 512 || last[511] != 1023 {
		t.Errorf("last frame spans %v..%v, want 512..1023", last[0], last[511])
	}
}

func TestSlidingWindowAppliesWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSize = 512
	cfg.Sliding.Enabled = true
	cfg.Sliding.HopSize = 512
	cfg.Sliding.Window = windowing.Hann
	cfg.normalize()
	stub := &stubEngine{cfg: cfg}
	sw := NewSlidingWindow(stub)

	ones := make([]float64, 512)
	for i := range ones {
		ones[i] = 1.0
	}
	sw.ProcessSamples(ones)

	if len(stub.frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(stub.frames))
	}
	frame := stub.frames[0]
	if math.Abs(frame[0]) > 1e-12 {
		t.Errorf("frame[0] = %v, want 0 (Hann tapered)", frame[0])
	}
	if math.Abs(frame[256]-1.0) > 0.01 {
		t.Errorf("frame center = %v, want ~1", frame[256])
	}
}

func TestSlidingWindowReset(t *testing.T) {
	stub := slidingStub(512, 256)
	sw := NewSlidingWindow(stub)

	sw.ProcessSamples(make([]float64, 700))
	sw.Reset()
	got := len(stub.frames)

	// After Reset a full frame of history must accumulate again
	sw.ProcessSamples(make([]float64, 511))
	if len(stub.frames) != got {
		t.Fatalf("frame emitted from an underfilled buffer after Reset")
	}
	sw.ProcessSamples(make([]float64, 1))
	if len(stub.frames) != got+1 {
		t.Fatalf("no frame at the first full boundary after Reset")
	}
}

func TestSlidingWindowOverMono(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sliding.Enabled = true
	cfg.Sliding.HopSize = 256
	cfg.Sliding.Window = windowing.None
	sw := NewSlidingWindow(NewMono(cfg))
	var rec eventRecorder
	rec.bind(sw)

	// Half a second of A4 through the overlapped front end
	n := 8000
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2.0*math.Pi*440.0*float64(i)/cfg.SampleRateHz)
	}
	sw.ProcessSamples(samples)

	ons := rec.ons()
	if len(ons) != 1 {
		t.Fatalf("got %d note-ons, want 1", len(ons))
	}
	if ons[0].note != 69 {
		t.Errorf("note = %d, want 69", ons[0].note)
	}
}
