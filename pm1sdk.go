// Package pm1sdk drives an autolabor PM1 chassis over a serial CAN
// link: handshake and session management, odometry, and the motion
// primitives (straight runs, arcs, in-place turns) built on top of
// them.
package pm1sdk

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/autolabor/pm1sdk/internal/chassis"
	"github.com/autolabor/pm1sdk/internal/config"
	"github.com/autolabor/pm1sdk/internal/kinematics"
	"github.com/autolabor/pm1sdk/internal/odometry"
	"github.com/autolabor/pm1sdk/internal/transport"
)

// ChassisError is the SDK's error type: a tagged union over cause,
// not a tree of sentinel values.
type ChassisError = chassis.Error

// Odometry is the chassis's estimated pose. GetOdometry returns a
// pose filled with NaN when no chassis is initialized.
type Odometry = odometry.Pose

var (
	mu        sync.Mutex
	session   *chassis.Session
	executor  *chassis.Executor
	cfg       *config.Config
	locked    bool
)

// ListPorts enumerates serial ports that might carry a chassis.
func ListPorts() ([]string, error) {
	ports, err := transport.ListPorts()
	if err != nil {
		return nil, chassis.ErrIO("%v", err)
	}
	return ports, nil
}

// Initialize opens a session with the chassis on port. If port is
// empty, the configured serial port is used; if that is empty too,
// every port returned by ListPorts is tried in turn and the first one
// that completes the chassis handshake wins — mirroring the original
// driver's autodiscovery-first-success-wins behaviour.
func Initialize(port string) error {
	mu.Lock()
	defer mu.Unlock()

	if session != nil {
		return nil
	}
	if cfg == nil {
		cfg = config.LoadConfig("")
	}
	if port == "" {
		port = cfg.Serial.Port
	}

	chassisCfg := kinematics.ChassisConfig{
		Width:       cfg.Chassis.Width,
		Length:      cfg.Chassis.Length,
		LeftRadius:  cfg.Chassis.LeftRadius,
		RightRadius: cfg.Chassis.RightRadius,
	}
	optParams := kinematics.DefaultOptimizeParams(cfg.Motion.Acceleration, cfg.Motion.ControlHz)
	optParams.RudderTolerance = cfg.Motion.RudderToleranceDeg * math.Pi / 180

	candidates := []string{port}
	if port == "" {
		ports, err := transport.ListPorts()
		if err != nil {
			return chassis.ErrNoSerial(err.Error())
		}
		if len(ports) == 0 {
			return chassis.ErrNoSerial("no serial ports found")
		}
		candidates = ports
	}

	var lastErr error
	for _, candidate := range candidates {
		sp, err := transport.Open(candidate)
		if err != nil {
			lastErr = err
			continue
		}
		s, err := chassis.Open(sp, chassisCfg, optParams)
		if err != nil {
			sp.Close()
			lastErr = err
			continue
		}
		session = s
		executor = chassis.NewExecutor(s)
		return nil
	}
	if lastErr == nil {
		lastErr = chassis.ErrNotAPm1Chassis()
	}
	return lastErr
}

// Shutdown closes the active session, if any.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	if session == nil {
		return nil
	}
	err := session.Close()
	session = nil
	executor = nil
	return err
}

func activeSession() (*chassis.Session, *chassis.Executor, error) {
	mu.Lock()
	defer mu.Unlock()
	if session == nil {
		return nil, nil, chassis.ErrNotInitialized()
	}
	if locked {
		return nil, nil, chassis.ErrChassisLocked()
	}
	return session, executor, nil
}

// Lock is a software e-stop: it immediately commands the chassis to
// stop and hold its rudder (a (0, NaN) set-point, which the control
// loop treats as freeze-in-place), cancels whatever motion primitive
// is running, and rejects any further motion command with
// ErrChassisLocked until Unlock is called. Safe to call with no
// active session.
func Lock() {
	mu.Lock()
	locked = true
	s, e := session, executor
	mu.Unlock()

	if s != nil {
		s.SetTarget(kinematics.PhysicalSetpoint{Speed: 0, Rudder: math.NaN()})
	}
	if e != nil {
		e.CancelAll()
	}
}

// Unlock releases a previous Lock.
func Unlock() {
	mu.Lock()
	locked = false
	mu.Unlock()
}

// CheckState reports whether the SDK currently has an active,
// unlocked session ready to accept motion commands.
func CheckState() error {
	_, _, err := activeSession()
	return err
}

// Drive commands a continuous chassis velocity (v m/s, w rad/s).
func Drive(v, w float64) error {
	s, _, err := activeSession()
	if err != nil {
		return err
	}
	s.SetVelocityTarget(v, w)
	return nil
}

// GetOdometry returns the accumulated pose estimate. If no chassis is
// initialized, every field is NaN.
func GetOdometry() Odometry {
	mu.Lock()
	s := session
	mu.Unlock()
	if s == nil {
		nan := math.NaN()
		return Odometry{S: nan, X: nan, Y: nan, Theta: nan, Vx: nan, Vy: nan, W: nan}
	}
	return s.Odometry()
}

// ResetOdometry zeroes the pose estimate back to the origin.
func ResetOdometry() error {
	s, _, err := activeSession()
	if err != nil {
		return err
	}
	s.ClearOdometry()
	return nil
}

// GoStraight drives distance metres (signed) at up to maxSpeed m/s,
// ramping at the configured acceleration.
func GoStraight(distance, maxSpeed float64) error {
	_, e, err := activeSession()
	if err != nil {
		return err
	}
	return e.GoStraight(distance, maxSpeed, accelOf())
}

// GoStraightTiming drives at constant speed for duration.
func GoStraightTiming(speed float64, duration time.Duration) error {
	_, e, err := activeSession()
	if err != nil {
		return err
	}
	return e.GoStraightTiming(speed, duration)
}

// GoArc drives an arc of the given radius (metres) through angle
// radians, at up to maxSpeed m/s of arc-length speed.
func GoArc(radius, angle, maxSpeed float64) error {
	_, e, err := activeSession()
	if err != nil {
		return err
	}
	return e.GoArc(radius, angle, maxSpeed, accelOf())
}

// GoArcTiming drives a constant-radius arc at linear speed v for
// duration.
func GoArcTiming(speed, radius float64, duration time.Duration) error {
	_, e, err := activeSession()
	if err != nil {
		return err
	}
	return e.GoArcTiming(speed, radius, duration)
}

// TurnAround rotates in place by angle radians at up to maxSpeed
// rad/s.
func TurnAround(angle, maxSpeed float64) error {
	_, e, err := activeSession()
	if err != nil {
		return err
	}
	return e.TurnAround(angle, maxSpeed, accelOf())
}

// TurnAroundTiming rotates at constant angular velocity for duration.
func TurnAroundTiming(speed float64, duration time.Duration) error {
	_, e, err := activeSession()
	if err != nil {
		return err
	}
	return e.TurnAroundTiming(speed, duration)
}

// Pause freezes the currently running motion primitive, if any.
func Pause() error {
	_, e, err := activeSession()
	if err != nil {
		return err
	}
	e.Pause()
	return nil
}

// Resume releases a previous Pause.
func Resume() error {
	_, e, err := activeSession()
	if err != nil {
		return err
	}
	e.Resume()
	return nil
}

// CancelAll aborts the currently running motion primitive, if any.
func CancelAll() error {
	_, e, err := activeSession()
	if err != nil {
		return err
	}
	e.CancelAll()
	return nil
}

// Delay blocks the caller for duration. It exists so callers can
// sequence SDK calls without reaching for time.Sleep directly,
// matching the original driver's surface.
func Delay(duration time.Duration) {
	time.Sleep(duration)
}

func accelOf() float64 {
	mu.Lock()
	defer mu.Unlock()
	if cfg == nil {
		return 0.5
	}
	return cfg.Motion.Acceleration
}

// IsLocked reports whether Lock has been called without a matching
// Unlock.
func IsLocked() bool {
	mu.Lock()
	defer mu.Unlock()
	return locked
}

// AsChassisError reports whether err is a *ChassisError and returns it.
func AsChassisError(err error) (*ChassisError, bool) {
	var ce *ChassisError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
