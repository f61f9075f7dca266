package kinematics

import (
	"math"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

var testCfg = ChassisConfig{Width: 0.5, Length: 0.35, LeftRadius: 0.1, RightRadius: 0.1}

func TestVelocityToPhysicalStraight(t *testing.T) {
	p := VelocityToPhysical(1.2, 0, testCfg)
	if p.Speed != 1.2 || p.Rudder != 0 {
		t.Fatalf("got %+v, want speed=1.2 rudder=0", p)
	}
}

func TestVelocityToPhysicalPivot(t *testing.T) {
	p := VelocityToPhysical(0, 1.0, testCfg)
	if p.Speed != 0 {
		t.Fatalf("pivot turn should have zero speed, got %+v", p)
	}
	if !approxEqual(p.Rudder, -math.Pi/2, 1e-6) {
		t.Fatalf("pivot turn rudder = %v, want -pi/2 for positive w", p.Rudder)
	}
}

// roundTripChassis decodes a wheel-speed pair back to implied chassis
// (v, w) via the exact algebraic inverse of VelocityToPhysical +
// PhysicalToWheels, for round-trip verification.
func roundTripChassis(ws WheelSpeeds, cfg ChassisConfig) (v, w float64) {
	l := ws.Left * cfg.LeftRadius
	r := ws.Right * cfg.RightRadius
	speed := (l + r) / 2
	wChassis := (l - r) / cfg.Width
	if speed == 0 && wChassis == 0 {
		return 0, 0
	}
	rudder := 0.0
	if speed != 0 || wChassis != 0 {
		rudder = math.Atan(-wChassis * cfg.Length / speed)
	}
	v = speed * math.Cos(rudder)
	if math.Cos(rudder) == 0 {
		return v, 0
	}
	w = -v * math.Tan(rudder) / cfg.Length
	return v, w
}

func TestVelocityPhysicalWheelsRoundTrip(t *testing.T) {
	cases := []struct{ v, w float64 }{
		{1.0, 0.2},
		{0.5, -0.8},
		{2.0, 0.05},
		{-1.0, 0.3},
		{0.3, -0.1},
	}
	for _, c := range cases {
		phys := VelocityToPhysical(c.v, c.w, testCfg)
		wheels := PhysicalToWheels(phys.Speed, phys.Rudder, testCfg)
		v2, w2 := roundTripChassis(wheels, testCfg)
		if !approxEqual(v2, c.v, 1e-6) || !approxEqual(w2, c.w, 1e-6) {
			t.Fatalf("round trip of (v=%v,w=%v) gave (%v,%v)", c.v, c.w, v2, w2)
		}
	}
}

func TestPhysicalToWheelsZeroRudderMatchesBothWheels(t *testing.T) {
	ws := PhysicalToWheels(1.0, 0, testCfg)
	if ws.Left != ws.Right {
		t.Fatalf("zero rudder should drive both wheels equally, got %+v", ws)
	}
}

func TestWheelsToOdometryDeltaStraightLine(t *testing.T) {
	d := WheelsToOdometryDelta(1.0, 1.0, testCfg)
	if !approxEqual(d.DX, 0.1, 1e-9) || d.DY != 0 {
		t.Fatalf("equal wheel deltas should move straight, got %+v", d)
	}
}

func TestOptimizeClampsRudderStep(t *testing.T) {
	opt := OptimizeParams{MaxRudderStep: 0.1, MaxSpeedStep: 10, RudderTolerance: 1.0}
	out := Optimize(PhysicalSetpoint{Speed: 0, Rudder: 1.0}, PhysicalSetpoint{Speed: 0, Rudder: 0}, opt)
	if !approxEqual(out.Rudder, 0.1, 1e-9) {
		t.Fatalf("rudder step = %v, want clamped to 0.1", out.Rudder)
	}
}

func TestOptimizeHoldsSpeedUntilRudderConverges(t *testing.T) {
	opt := OptimizeParams{MaxRudderStep: 0.05, MaxSpeedStep: 10, RudderTolerance: 0.01}
	out := Optimize(PhysicalSetpoint{Speed: 2.0, Rudder: 0.5}, PhysicalSetpoint{Speed: 0, Rudder: 0}, opt)
	if out.Speed != 0 {
		t.Fatalf("speed should stay at zero while rudder has not converged, got %v", out.Speed)
	}
}

func TestOptimizeFreezeSentinel(t *testing.T) {
	opt := DefaultOptimizeParams(0.5, 50)
	out := Optimize(PhysicalSetpoint{Speed: 3, Rudder: math.NaN()}, PhysicalSetpoint{Speed: 1, Rudder: 0.2}, opt)
	if out.Speed != 0 || out.Rudder != 0.2 {
		t.Fatalf("NaN rudder should brake and hold rudder, got %+v", out)
	}
}
