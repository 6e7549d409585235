package soundtomidi

import (
	"math"
	"testing"
)

func TestDebouncerVoting(t *testing.T) {
	d := newDebouncer(3, 5)

	inputs := []bool{true, true, false, true, false}
	wants := []bool{false, false, false, true, true}
	for i, in := range inputs {
		if got := d.push(in); got != wants[i] {
			t.Errorf("push %d: got %v, want %v", i, got, wants[i])
		}
	}
}

func TestDebouncerWindowSlides(t *testing.T) {
	d := newDebouncer(2, 3)

	d.push(true)
	d.push(true)
	if !d.push(false) {
		t.Error("2 of last 3 true, want true")
	}
	if d.push(false) {
		t.Error("1 of last 3 true, want false")
	}
}

func TestDebouncerClamping(t *testing.T) {
	d := newDebouncer(10, 3)
	if d.k != 3 || d.m != 3 {
		t.Errorf("k=%d m=%d, want k clamped to m", d.k, d.m)
	}

	d = newDebouncer(0, 0)
	if d.k != 1 || d.m != 1 {
		t.Errorf("k=%d m=%d, want 1, 1", d.k, d.m)
	}

	d = newDebouncer(1, 100)
	if d.m != maxDebounceWindow {
		t.Errorf("m=%d, want %d", d.m, maxDebounceWindow)
	}
}

func TestDebouncerReset(t *testing.T) {
	d := newDebouncer(1, 3)
	d.push(true)
	d.reset()
	if d.push(false) {
		t.Error("vote survived reset")
	}
}

func TestPCPDecay(t *testing.T) {
	p := newPitchClassProfile(4)

	p.bump(69, 1.0)
	initial := p.bias(69)
	if initial <= 0 {
		t.Fatalf("bias after bump = %v, want > 0", initial)
	}

	for i := 0; i < 20; i++ {
		p.step()
	}
	if decayed := p.bias(69); decayed >= initial {
		t.Errorf("bias did not decay: %v >= %v", decayed, initial)
	}
}

func TestPCPConvergesToOne(t *testing.T) {
	p := newPitchClassProfile(8)

	// A constantly present class converges to its weight
	for i := 0; i < 200; i++ {
		p.step()
		p.bump(60, 1.0)
	}
	if got := p.bias(60); math.Abs(got-1.0) > 0.01 {
		t.Errorf("steady-state bias = %v, want ~1", got)
	}
}

func TestPCPPitchClassWrap(t *testing.T) {
	p := newPitchClassProfile(4)
	p.bump(9, 1.0)

	// 9, 21, 69 share pitch class A
	if p.bias(21) != p.bias(9) || p.bias(69) != p.bias(9) {
		t.Error("octaves of the same pitch class disagree")
	}
	if p.bias(10) != 0 {
		t.Errorf("neighboring class bias = %v, want 0", p.bias(10))
	}
}

func TestPCPReset(t *testing.T) {
	p := newPitchClassProfile(4)
	p.bump(60, 1.0)
	p.reset()
	if p.bias(60) != 0 {
		t.Errorf("bias after reset = %v, want 0", p.bias(60))
	}
}
