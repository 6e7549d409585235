package common

// RingBuffer is a fixed-capacity circular sample buffer for streaming audio.
// It is sized once at construction and never reallocates; writes overwrite
// the oldest samples once the buffer is full.
type RingBuffer struct {
	buffer   []float64
	writePos int
	count    int
}

// NewRingBuffer creates a ring buffer holding size samples
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{
		buffer: make([]float64, size),
	}
}

// Write appends a single sample, overwriting the oldest when full
func (rb *RingBuffer) Write(sample float64) {
	rb.buffer[rb.writePos] = sample
	rb.writePos = (rb.writePos + 1) % len(rb.buffer)
	if rb.count < len(rb.buffer) {
		rb.count++
	}
}

// CopyLatest copies the most recent len(dst) samples into dst in
// chronological order, handling wraparound. It returns false when fewer
// samples than requested have been written, in which case dst is untouched.
func (rb *RingBuffer) CopyLatest(dst []float64) bool {
	n := len(dst)
	if n > rb.count || n > len(rb.buffer) {
		return false
	}

	start := rb.writePos - n
	if start < 0 {
		start += len(rb.buffer)
	}

	for i := 0; i < n; i++ {
		dst[i] = rb.buffer[(start+i)%len(rb.buffer)]
	}
	return true
}

// Count returns the number of samples written, saturated at capacity
func (rb *RingBuffer) Count() int {
	return rb.count
}

// Size returns the buffer capacity
func (rb *RingBuffer) Size() int {
	return len(rb.buffer)
}

// Clear resets the buffer to empty
func (rb *RingBuffer) Clear() {
	rb.writePos = 0
	rb.count = 0
	for i := range rb.buffer {
		rb.buffer[i] = 0.0
	}
}
