package midiout

import (
	"errors"
	"math"
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"github.com/RyanBlaney/sonido-midi/soundtomidi"
)

func capture(messages *[]midi.Message) SendFunc {
	return func(msg midi.Message) error {
		*messages = append(*messages, msg)
		return nil
	}
}

func TestEmitterNoteOn(t *testing.T) {
	var messages []midi.Message
	e, err := NewEmitter(2, capture(&messages))
	if err != nil {
		t.Fatal(err)
	}

	e.NoteOn(69, 100)

	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(messages))
	}
	var ch, key, vel uint8
	if !messages[0].GetNoteStart(&ch, &key, &vel) {
		t.Fatalf("message %v is not a note start", messages[0])
	}
	if ch != 2 || key != 69 || vel != 100 {
		t.Errorf("got ch=%d key=%d vel=%d, want 2, 69, 100", ch, key, vel)
	}
}

func TestEmitterNoteOff(t *testing.T) {
	var messages []midi.Message
	e, err := NewEmitter(0, capture(&messages))
	if err != nil {
		t.Fatal(err)
	}

	e.NoteOff(69)

	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(messages))
	}
	var ch, key uint8
	if !messages[0].GetNoteEnd(&ch, &key) {
		t.Fatalf("message %v is not a note end", messages[0])
	}
	if ch != 0 || key != 69 {
		t.Errorf("got ch=%d key=%d, want 0, 69", ch, key)
	}
}

func TestNewEmitterValidation(t *testing.T) {
	if _, err := NewEmitter(16, func(midi.Message) error { return nil }); err == nil {
		t.Error("expected error for channel 16")
	}
	if _, err := NewEmitter(0, nil); err == nil {
		t.Error("expected error for nil send function")
	}
}

func TestEmitterSendErrorDoesNotPanic(t *testing.T) {
	e, err := NewEmitter(0, func(midi.Message) error { return errors.New("port closed") })
	if err != nil {
		t.Fatal(err)
	}
	e.NoteOn(60, 80)
	e.NoteOff(60)
}

func TestEmitterBind(t *testing.T) {
	var messages []midi.Message
	e, err := NewEmitter(0, capture(&messages))
	if err != nil {
		t.Fatal(err)
	}

	engine := soundtomidi.NewMono(soundtomidi.DefaultConfig())
	e.Bind(engine)

	// Drive the engine far enough to fire an onset
	frame := make([]float64, 512)
	for i := range frame {
		frame[i] = 0.5 * math.Sin(2.0*math.Pi*440.0*float64(i)/16000.0)
	}
	for i := 0; i < 5; i++ {
		engine.ProcessFrame(frame)
	}

	if len(messages) == 0 {
		t.Fatal("no MIDI messages after binding")
	}
	var ch, key, vel uint8
	if !messages[0].GetNoteStart(&ch, &key, &vel) {
		t.Fatalf("first message %v is not a note start", messages[0])
	}
	if key != 69 {
		t.Errorf("key = %d, want 69", key)
	}
}
