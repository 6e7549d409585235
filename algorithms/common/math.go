package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Basic math shared across the analysis algorithms, using gonum where it is
// more robust than a hand-rolled loop.

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Variance calculates the sample variance of a slice using gonum
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.Variance(data, nil)
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sumSquares := 0.0
	for _, val := range data {
		sumSquares += val * val
	}

	return math.Sqrt(sumSquares / float64(len(data)))
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Clamp01 constrains a value to [0, 1]
func Clamp01(value float64) float64 {
	return Clamp(value, 0.0, 1.0)
}

// ClampInt constrains an integer to a range
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// DBToLinear converts a decibel amplitude value to linear gain
func DBToLinear(db float64) float64 {
	return math.Pow(10.0, db/20.0)
}

// LinearToDB converts a linear amplitude value to decibels.
// Values at or below zero map to a -120 dB floor.
func LinearToDB(linear float64) float64 {
	if linear <= 0 {
		return -120.0
	}
	return 20.0 * math.Log10(linear)
}

// FreqToMIDI maps a frequency in Hz to the nearest MIDI note number,
// clamped to [0, 127]. Returns -1 for non-positive frequencies.
func FreqToMIDI(freqHz float64) int {
	if freqHz <= 0 {
		return -1
	}
	note := int(math.Round(69.0 + 12.0*math.Log2(freqHz/440.0)))
	return ClampInt(note, 0, 127)
}

// MIDIToFreq returns the frequency in Hz of a MIDI note number
func MIDIToFreq(note int) float64 {
	return 440.0 * math.Pow(2.0, float64(note-69)/12.0)
}

// MedianInt returns the median of a slice of ints. For even lengths the
// lower of the two middle values is returned, which keeps the result a
// value that actually occurred.
func MedianInt(values []int) int {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	return sorted[(len(sorted)-1)/2]
}

// IsPowerOfTwo checks if n is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
