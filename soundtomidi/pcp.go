package soundtomidi

// pitchClassProfile is a 12-bin EMA energy histogram over pitch classes
// (note mod 12). It is advisory only: the polyphonic engine exposes it as a
// bias value and never uses it to gate note acceptance.
type pitchClassProfile struct {
	bins  [12]float64
	decay float64
}

func newPitchClassProfile(historyFrames int) pitchClassProfile {
	if historyFrames < 1 {
		historyFrames = 1
	}
	return pitchClassProfile{
		decay: 1.0 - 1.0/float64(historyFrames),
	}
}

// step decays every pitch class by the history factor, once per frame
func (p *pitchClassProfile) step() {
	for i := range p.bins {
		p.bins[i] *= p.decay
	}
}

// bump boosts the pitch class of a detected note by a relative weight
func (p *pitchClassProfile) bump(note int, weight float64) {
	if note < 0 {
		return
	}
	p.bins[note%12] += (1.0 - p.decay) * weight
}

// bias returns the accumulated energy of a note's pitch class
func (p *pitchClassProfile) bias(note int) float64 {
	if note < 0 {
		return 0
	}
	return p.bins[note%12]
}

// reset clears the histogram
func (p *pitchClassProfile) reset() {
	for i := range p.bins {
		p.bins[i] = 0.0
	}
}
