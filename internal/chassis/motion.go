package chassis

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autolabor/pm1sdk/internal/kinematics"
)

const (
	controlPeriod = 10 * time.Millisecond // ~100 Hz, matching the primitive loop rate

	rampUpLinear    = 0.5         // metres over which speed rises to max
	rampDownLinear  = 3.0         // metres before the target over which speed falls
	rampUpAngular   = math.Pi / 4 // radians over which angular speed rises to max
	rampDownAngular = math.Pi     // radians before the target over which it falls
	rampFloorFrac   = 0.1         // floor speed as a fraction of max_v
)

// Executor runs one motion primitive at a time against a Session,
// consulting the session's accumulated odometry every tick to ramp
// and terminate the primitive from measured distance rather than
// elapsed time. Pause, Resume, and CancelAll act on whatever
// primitive is currently running, from any goroutine.
type Executor struct {
	session *Session

	actionMu sync.Mutex
	paused   atomic.Bool
	canceled atomic.Bool
}

// NewExecutor returns an Executor driving session.
func NewExecutor(session *Session) *Executor {
	return &Executor{session: session}
}

// Pause freezes the running primitive's motion without abandoning it:
// the chassis is commanded to a stop with the rudder held (the
// (0, NaN) freeze set-point) until Resume.
func (e *Executor) Pause() { e.paused.Store(true) }

// Resume releases a Pause.
func (e *Executor) Resume() { e.paused.Store(false) }

// CancelAll aborts whatever primitive is currently running. It has no
// effect if nothing is running.
func (e *Executor) CancelAll() { e.canceled.Store(true) }

// freeze commands a stop while leaving the rudder where it is — the
// (0, NaN) set-point the spec uses for pause and for winding a
// primitive down, as distinct from a velocity (0, 0) command.
func (e *Executor) freeze() {
	e.session.SetTarget(kinematics.PhysicalSetpoint{Speed: 0, Rudder: math.NaN()})
}

// ramp bounds the applied speed magnitude each tick to a floor..maxV
// trapezoid keyed by distance already travelled and distance
// remaining — the spec's move_up/move_down shape — rather than a
// precomputed, time-based profile.
type ramp struct {
	maxV     float64
	upDist   float64
	downDist float64
	floor    float64
}

func newRamp(maxV, upDist, downDist float64) ramp {
	return ramp{maxV: maxV, upDist: upDist, downDist: downDist, floor: maxV * rampFloorFrac}
}

// moveUp rises from the floor to maxV over the first upDist of travel.
func (r ramp) moveUp(traveled float64) float64 {
	if traveled >= r.upDist {
		return r.maxV
	}
	if traveled <= 0 {
		return r.floor
	}
	return r.floor + (r.maxV-r.floor)*traveled/r.upDist
}

// moveDown falls from maxV to the floor over the last downDist before
// the target.
func (r ramp) moveDown(remaining float64) float64 {
	if remaining >= r.downDist {
		return r.maxV
	}
	if remaining <= 0 {
		return r.floor
	}
	return r.floor + (r.maxV-r.floor)*remaining/r.downDist
}

// speed returns the applied magnitude for the given travelled/
// remaining distance: the minimum of the requested max, the up-ramp,
// and the down-ramp.
func (r ramp) speed(traveled, remaining float64) float64 {
	return math.Min(r.maxV, math.Min(r.moveUp(traveled), r.moveDown(remaining)))
}

// runDistance drives toVW at a ramped magnitude once per control
// tick. traveled reports live progress toward target — derived from
// the session's accumulated odometry, already oriented so it grows
// from 0 toward target regardless of turn/travel direction — rather
// than a precomputed, time-based profile; the primitive terminates
// once traveled() >= target.
func (e *Executor) runDistance(target float64, r ramp, sign float64, traveled func() float64, toVW func(scalar float64) (v, w float64)) error {
	ticker := time.NewTicker(controlPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if e.canceled.Swap(false) {
			e.freeze()
			return ErrActionCanceled()
		}
		if e.paused.Load() {
			e.freeze()
			continue
		}

		t := traveled()
		if t >= target {
			e.freeze()
			return nil
		}

		remaining := target - t
		scalar := sign * r.speed(t, remaining)
		v, w := toVW(scalar)
		e.session.SetVelocityTarget(v, w)
	}
	return nil
}

// runTiming drives a constant (v, w) for duration, relying on the
// session's own optimizer to ramp into it rather than profiling the
// ramp itself. Pause freezes the remaining duration; CancelAll aborts.
func (e *Executor) runTiming(v, w float64, duration time.Duration) error {
	deadline := time.Now().Add(duration)
	ticker := time.NewTicker(controlPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if e.canceled.Swap(false) {
			e.freeze()
			return ErrActionCanceled()
		}
		if e.paused.Load() {
			e.freeze()
			deadline = deadline.Add(controlPeriod) // push the deadline back while paused
			continue
		}
		if time.Now().After(deadline) {
			e.freeze()
			return nil
		}
		e.session.SetVelocityTarget(v, w)
	}
	return nil
}

// GoStraight drives distance metres (signed) until the accumulated
// arc length travelled reaches |distance|, ramping up over the first
// 0.5 m and down over the last 3 m, capped at maxV m/s.
func (e *Executor) GoStraight(distance, maxV, accel float64) error {
	if maxV <= 0 || accel <= 0 {
		return ErrInfiniteAction()
	}
	e.actionMu.Lock()
	defer e.actionMu.Unlock()
	e.canceled.Store(false)

	sign := 1.0
	if distance < 0 {
		sign = -1.0
	}
	start := e.session.Odometry().S
	traveled := func() float64 { return e.session.Odometry().S - start }
	r := newRamp(maxV, rampUpLinear, rampDownLinear)
	return e.runDistance(math.Abs(distance), r, sign, traveled, func(scalar float64) (float64, float64) { return scalar, 0 })
}

// GoStraightTiming drives at constant velocity v for duration.
func (e *Executor) GoStraightTiming(v float64, duration time.Duration) error {
	if duration <= 0 {
		return ErrIllegalArgument("target state should greater than 0")
	}
	e.actionMu.Lock()
	defer e.actionMu.Unlock()
	e.canceled.Store(false)
	return e.runTiming(v, 0, duration)
}

// GoArc drives an arc of the given radius (metres, magnitude) through
// angle radians (signed: positive turns left), until the accumulated
// arc length travelled reaches the arc's length, ramping as
// GoStraight does, capped at maxV m/s of arc-length speed.
func (e *Executor) GoArc(radius, angle, maxV, accel float64) error {
	if maxV <= 0 || accel <= 0 || radius == 0 {
		return ErrInfiniteAction()
	}
	e.actionMu.Lock()
	defer e.actionMu.Unlock()
	e.canceled.Store(false)

	sign := 1.0
	if angle < 0 {
		sign = -1.0
	}
	arcLength := math.Abs(radius * angle)
	r := math.Abs(radius)
	start := e.session.Odometry().S
	traveled := func() float64 { return e.session.Odometry().S - start }
	rp := newRamp(maxV, rampUpLinear, rampDownLinear)
	return e.runDistance(arcLength, rp, sign, traveled, func(scalar float64) (float64, float64) { return scalar, scalar / r })
}

// GoArcTiming drives a constant-radius arc at linear speed v for
// duration; w is derived from v and radius and handed straight to the
// session's optimizer rather than ramped here.
func (e *Executor) GoArcTiming(v, radius float64, duration time.Duration) error {
	if duration <= 0 {
		return ErrIllegalArgument("target state should greater than 0")
	}
	if radius == 0 {
		return ErrIllegalArgument("radius must be nonzero")
	}
	e.actionMu.Lock()
	defer e.actionMu.Unlock()
	e.canceled.Store(false)
	return e.runTiming(v, v/radius, duration)
}

// TurnAround rotates in place by angle radians (signed: positive is
// left/counter-clockwise) until the accumulated heading change
// reaches |angle|, ramping up over the first π/4 rad and down over
// the last π rad, capped at maxW rad/s.
func (e *Executor) TurnAround(angle, maxW, accel float64) error {
	if maxW <= 0 || accel <= 0 {
		return ErrInfiniteAction()
	}
	e.actionMu.Lock()
	defer e.actionMu.Unlock()
	e.canceled.Store(false)

	sign := 1.0
	if angle < 0 {
		sign = -1.0
	}
	start := e.session.Odometry().Theta
	traveled := func() float64 {
		d := (e.session.Odometry().Theta - start) * sign
		if d < 0 {
			d = 0
		}
		return d
	}
	r := newRamp(maxW, rampUpAngular, rampDownAngular)
	return e.runDistance(math.Abs(angle), r, sign, traveled, func(scalar float64) (float64, float64) { return 0, scalar })
}

// TurnAroundTiming rotates at constant angular velocity w for duration.
func (e *Executor) TurnAroundTiming(w float64, duration time.Duration) error {
	if duration <= 0 {
		return ErrIllegalArgument("target state should greater than 0")
	}
	e.actionMu.Lock()
	defer e.actionMu.Unlock()
	e.canceled.Store(false)
	return e.runTiming(0, w, duration)
}
