package odometry

import (
	"math"
	"testing"

	"github.com/autolabor/pm1sdk/internal/kinematics"
)

var testCfg = kinematics.ChassisConfig{Width: 0.5, Length: 0.35, LeftRadius: 0.1, RightRadius: 0.1}

func TestAccumulatorStraightLine(t *testing.T) {
	a := NewAccumulator(testCfg)
	for i := 0; i < 10; i++ {
		a.FeedLeft(uint8(i), 1.0)
		a.FeedRight(uint8(i), 1.0)
	}
	p := a.Pose()
	want := 1.0 // 10 ticks * 0.1m each
	if math.Abs(p.X-want) > 1e-9 {
		t.Fatalf("pose.X = %v, want %v", p.X, want)
	}
	if p.Y != 0 || p.Theta != 0 {
		t.Fatalf("straight line odometry should keep y=0, theta=0, got %+v", p)
	}
}

func TestAccumulatorOnlyIntegratesOnMatchingSequence(t *testing.T) {
	a := NewAccumulator(testCfg)
	a.FeedLeft(5, 1.0)
	a.FeedRight(6, 1.0) // mismatched sequence, should not pair
	if p := a.Pose(); p.X != 0 {
		t.Fatalf("mismatched sequence numbers should not integrate, got %+v", p)
	}
	a.FeedRight(5, 1.0) // left(5) is still pending and now pairs with right(5)
	p := a.Pose()
	if p.X == 0 {
		t.Fatalf("left(5)/right(5) should have paired once both arrived, got %+v", p)
	}
}

func TestAccumulatorInterleavedSequences(t *testing.T) {
	a := NewAccumulator(testCfg)
	a.FeedLeft(1, 1.0)
	a.FeedLeft(2, 1.0) // overwrites the unmatched left(1) sample
	a.FeedRight(2, 1.0)
	p := a.Pose()
	want := 0.1 // only the (2,2) pair integrated; (1,_) was discarded
	if math.Abs(p.X-want) > 1e-9 {
		t.Fatalf("pose.X = %v, want %v (only matched pair integrates)", p.X, want)
	}
}

func TestAccumulatorReset(t *testing.T) {
	a := NewAccumulator(testCfg)
	a.FeedLeft(1, 1.0)
	a.FeedRight(1, 1.0)
	a.Reset()
	if p := a.Pose(); p != (Pose{}) {
		t.Fatalf("pose after Reset = %+v, want zero", p)
	}
	// a previously pending, now-discarded half should not resurrect after reset
	a.FeedLeft(2, 1.0)
	a.FeedRight(1, 1.0) // stale sequence from before reset, must not match
	if p := a.Pose(); p.X != 0 {
		t.Fatalf("stale pre-reset sequence should not pair after Reset, got %+v", p)
	}
}

func TestAccumulatorTurningUpdatesTheta(t *testing.T) {
	a := NewAccumulator(testCfg)
	a.FeedLeft(1, 0.5)
	a.FeedRight(1, 1.5)
	p := a.Pose()
	if p.Theta == 0 {
		t.Fatalf("differential wheel deltas should produce nonzero heading change")
	}
}

func TestAccumulatorArcLengthAccumulates(t *testing.T) {
	a := NewAccumulator(testCfg)
	for i := 0; i < 5; i++ {
		a.FeedLeft(uint8(i), 1.0)
		a.FeedRight(uint8(i), 1.0)
	}
	p := a.Pose()
	want := 0.5 // 5 ticks * 0.1m arc length each
	if math.Abs(p.S-want) > 1e-9 {
		t.Fatalf("pose.S = %v, want %v", p.S, want)
	}
}

func TestAccumulatorClearDiscardsOnlyACompletedPair(t *testing.T) {
	a := NewAccumulator(testCfg)

	// A half sample is pending (left(1)) when ClearOdometry-style
	// arming happens; it must still be available to pair normally —
	// the flag must not fire on this lone half.
	a.FeedLeft(1, 1.0)
	a.ArmClear()
	if p := a.Pose(); p.X != 0 {
		t.Fatalf("arming clear on a lone pending half should not integrate anything, got %+v", p)
	}

	// Completing the pair should now be discarded (clear_flag consumed),
	// not integrated.
	a.FeedRight(1, 1.0)
	if p := a.Pose(); p.X != 0 {
		t.Fatalf("first pair to complete after ArmClear should be discarded, got %+v", p)
	}

	// The flag is single-shot: the next pair integrates normally.
	a.FeedLeft(2, 1.0)
	a.FeedRight(2, 1.0)
	if p := a.Pose(); p.X == 0 {
		t.Fatalf("pair after the discarded one should integrate normally, got %+v", p)
	}
}
