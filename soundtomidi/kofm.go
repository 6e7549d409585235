package soundtomidi

// maxDebounceWindow bounds M so per-note histories stay fixed-size arrays
const maxDebounceWindow = 16

// debouncer is a K-of-M vote over the most recent raw detections. It sits
// between raw per-frame detection and the onset/offset counters: push
// returns whether at least K of the last M frames were positive, which is
// what the state machines treat as "voiced"/"present" for the frame.
type debouncer struct {
	window [maxDebounceWindow]bool
	idx    int
	filled int
	trues  int
	k, m   int
}

func newDebouncer(k, m int) debouncer {
	if m < 1 {
		m = 1
	}
	if m > maxDebounceWindow {
		m = maxDebounceWindow
	}
	if k < 1 {
		k = 1
	}
	if k > m {
		k = m
	}
	return debouncer{k: k, m: m}
}

// push records one raw detection and returns the debounced value
func (d *debouncer) push(detected bool) bool {
	if d.filled == d.m && d.window[d.idx] {
		d.trues--
	}
	d.window[d.idx] = detected
	if detected {
		d.trues++
	}
	d.idx = (d.idx + 1) % d.m
	if d.filled < d.m {
		d.filled++
	}

	return d.trues >= d.k
}

// reset clears the vote history
func (d *debouncer) reset() {
	d.idx = 0
	d.filled = 0
	d.trues = 0
	for i := range d.window {
		d.window[i] = false
	}
}
