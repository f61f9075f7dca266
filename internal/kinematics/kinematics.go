// Package kinematics implements the pure forward/inverse transforms
// between chassis-level (v, ω), physical-level (rear-wheel speed,
// rudder angle), and individual wheel speeds, plus the profile
// limiter that smooths set-points tick to tick.
package kinematics

import "math"

// epsilon is the tolerance below which a velocity component is
// treated as zero throughout this package.
const epsilon = 1e-6

// ChassisConfig holds the chassis's physical dimensions in metres.
type ChassisConfig struct {
	Width       float64 // rear wheel track
	Length      float64 // rear axle midpoint to rudder
	LeftRadius  float64
	RightRadius float64
}

// PhysicalSetpoint is the rear-wheel midpoint linear speed and rudder
// angle. Rudder == NaN is the canonical "freeze, do not steer" sentinel.
type PhysicalSetpoint struct {
	Speed  float64
	Rudder float64
}

// VelocitySetpoint is the chassis linear and angular velocity.
type VelocitySetpoint struct {
	V float64
	W float64
}

// WheelSpeeds holds the individual left/right wheel angular speeds
// (rad/s) that realise a physical set-point.
type WheelSpeeds struct {
	Left, Right float64
}

// OdometryDelta is the result of integrating one pair of wheel-encoder
// deltas: arc-length and angular magnitude, plus the local-frame
// translation and signed heading delta.
type OdometryDelta struct {
	ArcLength float64 // |s|
	AngleMag  float64 // |a|
	DX        float64 // local-frame x translation
	DY        float64 // local-frame y translation
	DTheta    float64 // signed heading delta
}

// OptimizeParams bounds how fast the physical set-point may change
// per control tick.
type OptimizeParams struct {
	MaxRudderStep   float64 // radians per tick, default π/4
	MaxSpeedStep    float64 // m/s per tick = acceleration / control_frequency
	RudderTolerance float64 // radians; rudder must be within this of target before driving
}

// DefaultOptimizeParams returns the spec's default slew limits for a
// given acceleration (m/s²) and control frequency (Hz).
func DefaultOptimizeParams(acceleration, controlFrequencyHz float64) OptimizeParams {
	return OptimizeParams{
		MaxRudderStep:   math.Pi / 4,
		MaxSpeedStep:    acceleration / controlFrequencyHz,
		RudderTolerance: math.Pi / 36, // 5 degrees, matching the original driver's lock band
	}
}

// VelocityToPhysical converts chassis velocity to the equivalent
// physical set-point.
func VelocityToPhysical(v, w float64, cfg ChassisConfig) PhysicalSetpoint {
	switch {
	case math.Abs(w) < epsilon:
		return PhysicalSetpoint{Speed: v, Rudder: 0}
	case math.Abs(v) < epsilon:
		rudder := math.Pi / 2
		if w > 0 {
			rudder = -math.Pi / 2
		}
		return PhysicalSetpoint{Speed: 0, Rudder: rudder}
	default:
		rudder := -math.Atan(w * cfg.Length / v)
		speed := v / math.Cos(rudder)
		return PhysicalSetpoint{Speed: speed, Rudder: rudder}
	}
}

// PhysicalToWheels converts a physical set-point to individual wheel
// angular speeds.
func PhysicalToWheels(speed, rudder float64, cfg ChassisConfig) WheelSpeeds {
	wChassis := -speed * math.Tan(rudder) / cfg.Length
	return WheelSpeeds{
		Left:  (speed + wChassis*cfg.Width/2) / cfg.LeftRadius,
		Right: (speed - wChassis*cfg.Width/2) / cfg.RightRadius,
	}
}

// WheelsToOdometryDelta integrates one pair of wheel-encoder deltas
// (in radians) into a local-frame pose delta.
func WheelsToOdometryDelta(deltaLeftRad, deltaRightRad float64, cfg ChassisConfig) OdometryDelta {
	l := cfg.LeftRadius * deltaLeftRad
	r := cfg.RightRadius * deltaRightRad
	s := (l + r) / 2
	a := (r - l) / cfg.Width

	var dx, dy float64
	if math.Abs(a) < epsilon {
		dx, dy = s, 0
	} else {
		radius := s / a
		dx = radius * math.Sin(a)
		dy = radius * (1 - math.Cos(a))
	}

	return OdometryDelta{
		ArcLength: math.Abs(s),
		AngleMag:  math.Abs(a),
		DX:        dx,
		DY:        dy,
		DTheta:    a,
	}
}

// Optimize smooths a new physical target against the chassis's
// current physical state: it limits rudder slew and speed
// acceleration per tick, and holds speed at zero while the rudder has
// not yet converged to its target — the central safety invariant of
// the controller (rudder-lock-before-drive).
func Optimize(target, current PhysicalSetpoint, opt OptimizeParams) PhysicalSetpoint {
	if math.IsNaN(target.Rudder) {
		return PhysicalSetpoint{Speed: 0, Rudder: current.Rudder}
	}

	rudder := clampStep(target.Rudder, current.Rudder, opt.MaxRudderStep)
	speed := clampStep(target.Speed, current.Speed, opt.MaxSpeedStep)

	if math.Abs(current.Rudder-target.Rudder) > opt.RudderTolerance {
		speed = 0
	}

	return PhysicalSetpoint{Speed: speed, Rudder: rudder}
}

// clampStep moves current toward target by at most maxStep.
func clampStep(target, current, maxStep float64) float64 {
	delta := target - current
	if delta > maxStep {
		delta = maxStep
	} else if delta < -maxStep {
		delta = -maxStep
	}
	return current + delta
}
