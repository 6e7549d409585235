// wav2midi streams a WAV file through a sound-to-MIDI engine and prints the
// resulting note events with their frame timestamps.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/unixpickle/wav"

	"github.com/RyanBlaney/sonido-midi/logging"
	"github.com/RyanBlaney/sonido-midi/soundtomidi"
)

func main() {
	poly := flag.Bool("poly", false, "use the polyphonic engine")
	frameSize := flag.Int("frame", 512, "analysis frame size in samples (rounded up to a power of two)")
	hopSize := flag.Int("hop", 0, "hop size in samples; 0 disables overlapped framing")
	freqMin := flag.Float64("fmin", 55.0, "minimum detectable frequency in Hz")
	freqMax := flag.Float64("fmax", 2000.0, "maximum detectable frequency in Hz")
	autoTune := flag.Bool("autotune", false, "enable closed-loop threshold tuning")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] input.wav\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	if *debug {
		logging.SetLevel(logging.DebugLevel)
	}
	logger := logging.WithFields(logging.Fields{"component": "wav2midi"})

	sound, err := wav.ReadSoundFile(flag.Arg(0))
	if err != nil {
		logger.Error(err, "failed to read wav file", logging.Fields{"path": flag.Arg(0)})
		os.Exit(1)
	}

	samples := monoSamples(sound)
	logger.Info("loaded wav file", logging.Fields{
		"path":        flag.Arg(0),
		"sample_rate": sound.SampleRate(),
		"channels":    sound.Channels(),
		"samples":     len(samples),
	})

	cfg := soundtomidi.DefaultConfig()
	cfg.SampleRateHz = float64(sound.SampleRate())
	cfg.FrameSize = *frameSize
	cfg.FreqMinHz = *freqMin
	cfg.FreqMaxHz = *freqMax
	cfg.AutoTune.Enabled = *autoTune
	if *hopSize > 0 {
		cfg.Sliding.Enabled = true
		cfg.Sliding.HopSize = *hopSize
	}

	var engine soundtomidi.Engine
	if *poly {
		engine = soundtomidi.NewPoly(cfg)
	} else {
		engine = soundtomidi.NewMono(cfg)
	}
	if cfg.Sliding.Enabled {
		engine = soundtomidi.NewSlidingWindow(engine)
	}

	// Frame index advances as samples are consumed, so event timestamps are
	// derived from position rather than wall time.
	cfg = engine.Config()
	hop := cfg.FrameSize
	if cfg.Sliding.Enabled {
		hop = cfg.Sliding.HopSize
	}
	processed := 0

	timestamp := func() float64 {
		return float64(processed) / cfg.SampleRateHz
	}
	engine.SetNoteCallbacks(
		func(note, velocity uint8) {
			fmt.Printf("%8.3fs  note-on   %3d  vel %3d\n", timestamp(), note, velocity)
		},
		func(note uint8) {
			fmt.Printf("%8.3fs  note-off  %3d\n", timestamp(), note)
		},
	)

	for processed+hop <= len(samples) {
		if cfg.Sliding.Enabled {
			engine.ProcessFrame(samples[processed : processed+hop])
		} else {
			engine.ProcessFrame(samples[processed : processed+cfg.FrameSize])
		}
		processed += hop
	}

	logger.Info("done", logging.Fields{"frames": processed / hop})
}

// monoSamples downmixes interleaved channels to a single float64 stream
func monoSamples(sound wav.Sound) []float64 {
	raw := sound.Samples()
	channels := sound.Channels()
	if channels <= 1 {
		out := make([]float64, len(raw))
		for i, s := range raw {
			out[i] = float64(s)
		}
		return out
	}

	out := make([]float64, 0, len(raw)/channels)
	for i := 0; i+channels <= len(raw); i += channels {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(raw[i+c])
		}
		out = append(out, sum/float64(channels))
	}
	return out
}
