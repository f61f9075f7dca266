// Package odometry accumulates wheel-encoder deltas into a running
// chassis pose estimate.
package odometry

import (
	"math"
	"sync"
	"time"

	"github.com/autolabor/pm1sdk/internal/kinematics"
)

// Pose is the chassis's estimated position, heading, and most recent
// differential rate in the world frame established at the last Reset.
// S is total arc length travelled and is always non-decreasing; Theta
// accumulates without wrapping.
type Pose struct {
	S           float64
	X, Y, Theta float64
	Vx, Vy, W   float64
}

// side holds one wheel's most recent unmatched delta sample.
type side struct {
	seq   uint8
	delta float64
	valid bool
}

// Accumulator integrates paired left/right wheel-encoder deltas into a
// world-frame pose. Samples for the two wheels arrive independently
// (one CAN frame per wheel per poll); a pose update only happens once
// both halves of the same poll sequence number have arrived. A sample
// that never finds its pair — because a reply was dropped or arrived
// out of order — is silently discarded in favour of the newer one.
//
// clearFlag is armed by ClearOdometry and consumed the next time a
// pair completes, whatever wheel order that happens in, so a reset
// racing an in-flight half-pair drops that pair instead of producing
// a pose discontinuity.
type Accumulator struct {
	cfg kinematics.ChassisConfig

	mu         sync.Mutex
	pose       Pose
	left       side
	right      side
	clearFlag  bool
	lastUpdate time.Time
}

// NewAccumulator returns an Accumulator at the origin.
func NewAccumulator(cfg kinematics.ChassisConfig) *Accumulator {
	return &Accumulator{cfg: cfg}
}

// Pose returns the current pose estimate.
func (a *Accumulator) Pose() Pose {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pose
}

// Reset zeroes the pose and discards any unmatched half-pair.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pose = Pose{}
	a.left = side{}
	a.right = side{}
	a.lastUpdate = time.Time{}
}

// ArmClear marks the next wheel-delta pair to complete — on either
// side — for discard rather than integration. This is the clear_flag
// operation: callers (ClearOdometry) call Reset then ArmClear so a
// pairing already in flight across the reset boundary doesn't
// integrate a stale half against a fresh one.
func (a *Accumulator) ArmClear() {
	a.mu.Lock()
	a.clearFlag = true
	a.mu.Unlock()
}

// FeedLeft records a left wheel delta (radians) carrying poll sequence
// seq, and integrates a pose update if the matching right-side sample
// has already arrived.
func (a *Accumulator) FeedLeft(seq uint8, delta float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feed(&a.left, &a.right, seq, delta, true)
}

// FeedRight records a right wheel delta (radians) carrying poll
// sequence seq, and integrates a pose update if the matching
// left-side sample has already arrived.
func (a *Accumulator) FeedRight(seq uint8, delta float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feed(&a.right, &a.left, seq, delta, false)
}

// feed implements the pairing rule for one side. mine is the side
// being fed; other is its counterpart. isLeft tells integrate() how to
// order the (left, right) arguments. The clear flag is only consulted
// — and only consumed — once a pair actually completes; a lone half
// sample never trips it.
func (a *Accumulator) feed(mine, other *side, seq uint8, delta float64, isLeft bool) {
	if other.valid && other.seq == seq {
		other.valid = false
		mine.valid = false
		if a.clearFlag {
			a.clearFlag = false
			return
		}
		if isLeft {
			a.integrate(delta, other.delta)
		} else {
			a.integrate(other.delta, delta)
		}
		return
	}
	*mine = side{seq: seq, delta: delta, valid: true}
}

// integrate rotates one local-frame wheel-delta pair into the world
// frame and accumulates it into the running pose. Theta accumulates
// without wrapping, matching the controller's unbounded heading
// convention. (vx, vy, w) are derived by dividing the world-frame
// delta by the elapsed time since the previous completed pair.
func (a *Accumulator) integrate(deltaLeft, deltaRight float64) {
	d := kinematics.WheelsToOdometryDelta(deltaLeft, deltaRight, a.cfg)

	sinT := math.Sin(a.pose.Theta)
	cosT := math.Cos(a.pose.Theta)
	dx := d.DX*cosT - d.DY*sinT
	dy := d.DX*sinT + d.DY*cosT

	now := time.Now()
	if !a.lastUpdate.IsZero() {
		if dt := now.Sub(a.lastUpdate).Seconds(); dt > 0 {
			a.pose.Vx = dx / dt
			a.pose.Vy = dy / dt
			a.pose.W = d.DTheta / dt
		}
	}
	a.lastUpdate = now

	a.pose.S += d.ArcLength
	a.pose.X += dx
	a.pose.Y += dy
	a.pose.Theta += d.DTheta
}
