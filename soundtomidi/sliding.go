package soundtomidi

import (
	"github.com/RyanBlaney/sonido-midi/algorithms/common"
	"github.com/RyanBlaney/sonido-midi/algorithms/windowing"
)

// SlidingWindow adapts an engine to overlapped framing: callers push samples
// in chunks of any size and the front end emits one analysis frame to the
// wrapped engine every hop_size samples, taken from a ring of the most
// recent frame_size samples. An optional window is applied before delegation
// so the inner engine sees pre-shaped frames.
type SlidingWindow struct {
	inner Engine

	ring     *common.RingBuffer
	window   *windowing.Window
	frame    []float64
	hop      int
	sinceHop int
}

// NewSlidingWindow wraps an engine in an overlapped framing front end. The
// engine's own configuration supplies frame size, hop size and window type.
func NewSlidingWindow(inner Engine) *SlidingWindow {
	s := &SlidingWindow{inner: inner}
	s.rebuild()
	return s
}

func (s *SlidingWindow) rebuild() {
	cfg := s.inner.Config()

	hop := cfg.Sliding.HopSize
	if hop < 1 || hop > cfg.FrameSize {
		hop = cfg.FrameSize
	}
	s.hop = hop
	s.sinceHop = 0

	s.ring = common.NewRingBuffer(cfg.FrameSize + hop)
	s.frame = make([]float64, cfg.FrameSize)
	s.window = windowing.New(cfg.Sliding.Window, cfg.FrameSize)
}

// ProcessSamples accepts any number of samples, emitting a frame to the
// wrapped engine each time hop_size new samples have arrived and at least
// frame_size samples are buffered.
func (s *SlidingWindow) ProcessSamples(samples []float64) {
	for _, sample := range samples {
		s.ring.Write(sample)
		s.sinceHop++
		if s.sinceHop < s.hop {
			continue
		}
		s.sinceHop = 0

		if !s.ring.CopyLatest(s.frame) {
			continue
		}
		if s.window != nil {
			s.window.ApplyInPlace(s.frame)
		}
		s.inner.ProcessFrame(s.frame)
	}
}

// ProcessFrame feeds one chunk through the sliding buffer. The chunk does
// not need to match the configured frame size; it is treated as a sample
// stream like ProcessSamples.
func (s *SlidingWindow) ProcessFrame(samples []float64) {
	s.ProcessSamples(samples)
}

// SetNoteCallbacks installs the event sinks on the wrapped engine
func (s *SlidingWindow) SetNoteCallbacks(onNoteOn NoteOnHandler, onNoteOff NoteOffHandler) {
	s.inner.SetNoteCallbacks(onNoteOn, onNoteOff)
}

// Config returns the wrapped engine's configuration
func (s *SlidingWindow) Config() Config {
	return s.inner.Config()
}

// SetConfig reconfigures the wrapped engine and rebuilds the sample ring
func (s *SlidingWindow) SetConfig(cfg Config) {
	s.inner.SetConfig(cfg)
	s.rebuild()
}

// Reset clears the sample ring and the wrapped engine's tracking state
func (s *SlidingWindow) Reset() {
	s.ring.Clear()
	s.sinceHop = 0
	s.inner.Reset()
}
