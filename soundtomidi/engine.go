package soundtomidi

import (
	"math"

	"github.com/RyanBlaney/sonido-midi/algorithms/common"
)

// NoteOnHandler receives note-on events. Velocity is always in 1..127.
type NoteOnHandler func(note, velocity uint8)

// NoteOffHandler receives note-off events
type NoteOffHandler func(note uint8)

// Engine is the common surface of the monophonic and polyphonic engines.
// The sliding-window front end implements it too, wrapping either variant.
//
// Engines are not safe for concurrent use: ProcessFrame, SetConfig and
// Reset must be serialized by the caller on a single logical thread.
type Engine interface {
	// ProcessFrame analyzes one frame of samples normalized to [-1, 1] and
	// fires note callbacks synchronously. Frames whose length doesn't match
	// the configured frame size are ignored without mutating state.
	ProcessFrame(samples []float64)

	// SetNoteCallbacks installs the event sinks. Either may be nil.
	SetNoteCallbacks(onNoteOn NoteOnHandler, onNoteOff NoteOffHandler)

	// Config returns a copy of the active configuration
	Config() Config

	// SetConfig replaces the configuration wholesale, reallocating
	// analysis buffers as needed. Inconsistent values are clamped.
	SetConfig(cfg Config)

	// Reset clears all tracking state without firing events
	Reset()
}

// velocity maps a normalized amplitude to a MIDI velocity:
// floor + clamp01(norm)*(127-floor), clamped to 1..127.
func velocity(floor int, norm float64) uint8 {
	v := float64(floor) + common.Clamp01(norm)*(127.0-float64(floor))
	return uint8(common.Clamp(math.Floor(v), 1, 127))
}
