package engine

import (
	"testing"
)

func TestRNGDeterministic(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)
	for i := 0; i < 1000; i++ {
		if av, bv := a.Uint32(), b.Uint32(); av != bv {
			t.Fatalf("draw %d: %d != %d for the same seed", i, av, bv)
		}
	}

	c := NewRNG(43)
	same := 0
	a = NewRNG(42)
	for i := 0; i < 1000; i++ {
		if a.Uint32() == c.Uint32() {
			same++
		}
	}
	if same > 10 {
		t.Errorf("different seeds matched on %d of 1000 draws", same)
	}
}

func TestRNGBounds(t *testing.T) {
	r := NewRNG(7)
	for i := 0; i < 10000; i++ {
		if v := r.Float64(); v < 0 || v >= 1 {
			t.Fatalf("Float64() = %v, want [0, 1)", v)
		}
		if v := r.Intn(10); v < 0 || v >= 10 {
			t.Fatalf("Intn(10) = %d, want [0, 10)", v)
		}
		if v := r.IntRange(3, 8); v < 3 || v > 8 {
			t.Fatalf("IntRange(3, 8) = %d", v)
		}
		if v := r.FloatRange(-2.5, 2.5); v < -2.5 || v >= 2.5 {
			t.Fatalf("FloatRange(-2.5, 2.5) = %v", v)
		}
	}

	if v := r.IntRange(5, 5); v != 5 {
		t.Errorf("IntRange(5, 5) = %d, want 5", v)
	}
	if v := r.FloatRange(1.5, 1.5); v != 1.5 {
		t.Errorf("FloatRange(1.5, 1.5) = %v, want 1.5", v)
	}
	if r.Chance(0) {
		t.Error("Chance(0) returned true")
	}
	if !r.Chance(100) {
		t.Error("Chance(100) returned false")
	}
}

func TestRNGStateRestore(t *testing.T) {
	r := NewRNG(1234)
	for i := 0; i < 700; i++ { // past one twist
		r.Uint32()
	}

	index, words := r.State()
	if len(words) != StateWords {
		t.Fatalf("State() returned %d words, want %d", len(words), StateWords)
	}

	want := make([]uint32, 500)
	for i := range want {
		want[i] = r.Uint32()
	}

	fresh := NewRNG(9999)
	if err := fresh.Restore(index, words); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	for i, w := range want {
		if got := fresh.Uint32(); got != w {
			t.Fatalf("draw %d after restore: got %d, want %d", i, got, w)
		}
	}
}

func TestRNGRestoreRejectsBadState(t *testing.T) {
	r := NewRNG(1)
	if err := r.Restore(0, make([]uint32, StateWords-1)); err == nil {
		t.Error("Restore accepted a short word array")
	}
	if err := r.Restore(-1, make([]uint32, StateWords)); err == nil {
		t.Error("Restore accepted a negative index")
	}
	if err := r.Restore(StateWords+1, make([]uint32, StateWords)); err == nil {
		t.Error("Restore accepted an out-of-range index")
	}
}

func TestRNGStateBytesRoundTrip(t *testing.T) {
	r := NewRNG(5150)
	for i := 0; i < 123; i++ {
		r.Uint32()
	}
	buf := r.StateBytes()

	want := make([]uint32, 100)
	for i := range want {
		want[i] = r.Uint32()
	}

	fresh := NewRNG(1)
	if err := fresh.RestoreStateBytes(buf); err != nil {
		t.Fatalf("RestoreStateBytes: %v", err)
	}
	for i, w := range want {
		if got := fresh.Uint32(); got != w {
			t.Fatalf("draw %d after byte restore: got %d, want %d", i, got, w)
		}
	}

	if err := fresh.RestoreStateBytes(buf[:len(buf)-1]); err == nil {
		t.Error("RestoreStateBytes accepted a short buffer")
	}
}
