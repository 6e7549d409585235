// Package midiout bridges engine note events to MIDI messages. The Emitter
// constructs channel voice messages with gomidi and hands them to a
// pluggable send function, so callers can back it with a hardware driver
// port, a file writer, or a test capture without the package linking any
// driver itself.
package midiout

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"

	"github.com/RyanBlaney/sonido-midi/logging"
	"github.com/RyanBlaney/sonido-midi/soundtomidi"
)

// SendFunc delivers one MIDI message to an output
type SendFunc func(msg midi.Message) error

// Emitter converts note events into MIDI note-on/note-off messages on a
// fixed channel. Send failures are logged and dropped; audio processing must
// never block on a slow MIDI output.
type Emitter struct {
	channel uint8
	send    SendFunc
	logger  logging.Logger
}

// NewEmitter creates an emitter on the given MIDI channel (0..15)
func NewEmitter(channel uint8, send SendFunc) (*Emitter, error) {
	if channel > 15 {
		return nil, fmt.Errorf("midi channel %d out of range 0..15", channel)
	}
	if send == nil {
		return nil, fmt.Errorf("send function is required")
	}
	return &Emitter{
		channel: channel,
		send:    send,
		logger:  logging.WithFields(logging.Fields{"component": "midi_out"}),
	}, nil
}

// NoteOn emits a note-on message
func (e *Emitter) NoteOn(note, velocity uint8) {
	if err := e.send(midi.NoteOn(e.channel, note, velocity)); err != nil {
		e.logger.Error(err, "note-on send failed", logging.Fields{"note": note})
	}
}

// NoteOff emits a note-off message
func (e *Emitter) NoteOff(note uint8) {
	if err := e.send(midi.NoteOff(e.channel, note)); err != nil {
		e.logger.Error(err, "note-off send failed", logging.Fields{"note": note})
	}
}

// Bind wires the emitter into an engine's note callbacks
func (e *Emitter) Bind(engine soundtomidi.Engine) {
	engine.SetNoteCallbacks(e.NoteOn, e.NoteOff)
}
