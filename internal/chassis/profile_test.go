package chassis

import (
	"math"
	"testing"
)

func TestRampMoveUpRisesToMax(t *testing.T) {
	r := newRamp(1.0, 0.5, 3.0)
	if v := r.moveUp(0); v != r.floor {
		t.Fatalf("moveUp(0) = %v, want floor %v", v, r.floor)
	}
	if v := r.moveUp(0.5); v != 1.0 {
		t.Fatalf("moveUp at full up-distance = %v, want max 1.0", v)
	}
	if v := r.moveUp(10); v != 1.0 {
		t.Fatalf("moveUp past up-distance = %v, want max 1.0", v)
	}
}

func TestRampMoveDownFallsToFloor(t *testing.T) {
	r := newRamp(1.0, 0.5, 3.0)
	if v := r.moveDown(3.0); v != 1.0 {
		t.Fatalf("moveDown at full down-distance = %v, want max 1.0", v)
	}
	if v := r.moveDown(0); v != r.floor {
		t.Fatalf("moveDown(0) = %v, want floor %v", v, r.floor)
	}
	if v := r.moveDown(-1); v != r.floor {
		t.Fatalf("moveDown past target = %v, want floor %v", v, r.floor)
	}
}

func TestRampSpeedIsMinimumOfUpAndDown(t *testing.T) {
	r := newRamp(1.0, 0.5, 3.0)
	// Near the start of a long run: up-ramp constrains, down-ramp doesn't.
	if v := r.speed(0.1, 100); math.Abs(v-r.moveUp(0.1)) > 1e-9 {
		t.Fatalf("speed near start = %v, want up-ramp value %v", v, r.moveUp(0.1))
	}
	// Near the end: down-ramp constrains.
	if v := r.speed(100, 0.5); math.Abs(v-r.moveDown(0.5)) > 1e-9 {
		t.Fatalf("speed near end = %v, want down-ramp value %v", v, r.moveDown(0.5))
	}
	// Mid-run, both ramps are saturated at max: capped at maxV.
	if v := r.speed(10, 10); v != r.maxV {
		t.Fatalf("speed mid-run = %v, want maxV %v", v, r.maxV)
	}
}

func TestRampNeverExceedsMaxV(t *testing.T) {
	r := newRamp(0.3, 0.5, 3.0)
	for _, traveled := range []float64{0, 0.25, 0.5, 1, 2.5, 2.9, 3.0} {
		remaining := 3.0 - traveled
		if v := r.speed(traveled, remaining); v > r.maxV+1e-9 {
			t.Fatalf("speed(%v, %v) = %v exceeds maxV %v", traveled, remaining, v, r.maxV)
		}
	}
}
