// Package chassis drives the live CAN session with a connected PM1
// chassis: handshake, periodic polling, odometry accumulation, and the
// rudder-lock-before-drive control loop.
package chassis

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autolabor/pm1sdk/internal/can"
	"github.com/autolabor/pm1sdk/internal/kinematics"
	"github.com/autolabor/pm1sdk/internal/odometry"
	"github.com/autolabor/pm1sdk/internal/transport"
)

const (
	handshakeTimeout = time.Second
	ecuTimeoutMs     = 200 // watchdog programmed into the ECU nodes
	controlTimeout   = 200 * time.Millisecond
	ecuPollInterval  = 50 * time.Millisecond
	tcuPollInterval  = 20 * time.Millisecond
)

// Session owns one live connection to a chassis: the serial link, the
// odometry accumulator, the last known node state, and the
// poller/reader goroutines that keep both up to date.
type Session struct {
	port *transport.SerialPort
	cfg  kinematics.ChassisConfig
	opt  kinematics.OptimizeParams
	odo  *odometry.Accumulator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	frameSeq atomic.Uint32

	mu          sync.Mutex
	target      kinematics.PhysicalSetpoint
	targetSetAt time.Time
	current     kinematics.PhysicalSetpoint // last-applied, optimizer-smoothed output
	leftSpeed   float64
	rightSpeed  float64
	rudderPos   float64
}

// Open performs the handshake and starts the session's background
// goroutines. It returns ErrNotAPm1Chassis if the three expected nodes
// (ECU0, ECU1, TCU0) do not all answer within the handshake deadline.
func Open(port *transport.SerialPort, cfg kinematics.ChassisConfig, opt kinematics.OptimizeParams) (*Session, error) {
	s := &Session{port: port, cfg: cfg, opt: opt, odo: odometry.NewAccumulator(cfg)}
	s.current = kinematics.PhysicalSetpoint{Speed: 0, Rudder: 0}

	if err := s.handshake(); err != nil {
		return nil, err
	}

	if err := s.programECUTimeout(); err != nil {
		return nil, err
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(3)
	go s.readerLoop()
	go s.ecuPollLoop()
	go s.tcuPollLoop()

	return s, nil
}

// handshake broadcasts a STATE query to every node type and waits up
// to handshakeTimeout for ECU0, ECU1, and TCU0 to all answer.
func (s *Session) handshake() error {
	if err := s.send(can.PackNoData(can.ECUBroadcastState, 0)); err != nil {
		return err
	}
	if err := s.send(can.PackNoData(can.TCUBroadcastState, 0)); err != nil {
		return err
	}

	seen := map[[2]uint8]bool{}
	want := [][2]uint8{{can.NodeECU, 0}, {can.NodeECU, 1}, {can.NodeTCU, 0}}

	deadline := time.Now().Add(handshakeTimeout)
	var parser can.Parser
	buf := make([]byte, 64)

	for time.Now().Before(deadline) {
		n, err := s.port.Read(buf)
		if err != nil {
			return ErrIO("handshake read: %v", err)
		}
		for i := 0; i < n; i++ {
			r := parser.Feed(buf[i])
			if r.Kind != can.ResultMessage {
				continue
			}
			key := [2]uint8{r.Frame.NodeType(), r.Frame.NodeIndex()}
			seen[key] = true
		}
		if allSeen(seen, want) {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return ErrNotAPm1Chassis()
}

func allSeen(seen map[[2]uint8]bool, want [][2]uint8) bool {
	for _, w := range want {
		if !seen[w] {
			return false
		}
	}
	return true
}

// programECUTimeout tells both ECU nodes to brake if they stop
// hearing target-speed updates for ecuTimeoutMs milliseconds. This is
// the hardware-level floor beneath the session's own controlTimeout.
func (s *Session) programECUTimeout() error {
	for _, idx := range []uint8{can.IndexLeft, can.IndexRight} {
		f := can.PackBigEndianInt16(can.ECUTimeout(idx), int16(ecuTimeoutMs), 0)
		if err := s.send(f); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the session's goroutines and releases the underlying
// serial port.
func (s *Session) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.port.BreakRead()
	s.wg.Wait()
	return s.port.Close()
}

// SetTarget stores a physical set-point for the control loop to
// converge toward on the next TCU position report.
func (s *Session) SetTarget(p kinematics.PhysicalSetpoint) {
	s.mu.Lock()
	s.target = p
	s.targetSetAt = time.Now()
	s.mu.Unlock()
}

// SetVelocityTarget converts a chassis velocity to a physical
// set-point and stores it.
func (s *Session) SetVelocityTarget(v, w float64) {
	s.SetTarget(kinematics.VelocityToPhysical(v, w, s.cfg))
}

// Left returns the last reported left wheel speed.
func (s *Session) Left() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leftSpeed
}

// Right returns the last reported right wheel speed.
func (s *Session) Right() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rightSpeed
}

// Rudder returns the last reported rudder position, in radians.
func (s *Session) Rudder() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rudderPos
}

// Odometry returns the current pose estimate.
func (s *Session) Odometry() odometry.Pose {
	return s.odo.Pose()
}

// ClearOdometry resets the pose estimate to the origin and arms the
// accumulator's clear flag, so that a wheel-delta pair already in
// flight across the reset is discarded once it completes rather than
// integrated against the old origin.
func (s *Session) ClearOdometry() {
	s.odo.Reset()
	s.odo.ArmClear()
}

func (s *Session) nextSeq() uint8 {
	return uint8(s.frameSeq.Add(1))
}

func (s *Session) send(f can.Frame) error {
	if err := s.port.Send(f.Bytes()); err != nil {
		return ErrIO("%v", err)
	}
	return nil
}

// ecuPollLoop periodically requests each ECU node's current wheel
// position and speed. A request is a no-data frame; the reply is a
// with-data frame of the same (node, message) identity carrying the
// poll's frame ID back, which is how replies get paired for odometry.
func (s *Session) ecuPollLoop() {
	defer s.wg.Done()
	t := time.NewTicker(ecuPollInterval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			seq := s.nextSeq()
			for _, idx := range []uint8{can.IndexLeft, can.IndexRight} {
				if err := s.send(can.PackNoData(can.ECUCurrentPosition(idx), seq)); err != nil {
					log.Printf("[chassis] ecu poll: %v", err)
				}
				if err := s.send(can.PackNoData(can.ECUCurrentSpeed(idx), seq)); err != nil {
					log.Printf("[chassis] ecu poll: %v", err)
				}
			}
		}
	}
}

// tcuPollLoop periodically requests the TCU's current rudder
// position. Each reply drives one iteration of the control loop.
func (s *Session) tcuPollLoop() {
	defer s.wg.Done()
	t := time.NewTicker(tcuPollInterval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			if err := s.send(can.PackNoData(can.TCUCurrentPosition(can.IndexOnly), s.nextSeq())); err != nil {
				log.Printf("[chassis] tcu poll: %v", err)
			}
		}
	}
}

// readerLoop feeds bytes from the serial port into the CAN parser and
// dispatches each recovered frame.
func (s *Session) readerLoop() {
	defer s.wg.Done()
	var parser can.Parser
	buf := make([]byte, 256)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		n, err := s.port.Read(buf)
		if err != nil {
			log.Printf("[chassis] read: %v", err)
			continue
		}
		for i := 0; i < n; i++ {
			r := parser.Feed(buf[i])
			switch r.Kind {
			case can.ResultMessage:
				s.dispatch(r.Frame)
			case can.ResultCrcError:
				log.Printf("[chassis] crc error, resynchronising")
			}
		}
	}
}

// dispatch routes one parsed frame to the appropriate handler.
func (s *Session) dispatch(f can.Frame) {
	switch {
	case f.NodeType() == can.NodeECU && f.Type == can.MsgCurrentPosition && f.HasData:
		s.onECUPosition(f)
	case f.NodeType() == can.NodeECU && f.Type == can.MsgCurrentSpeed && f.HasData:
		s.onECUSpeed(f)
	case f.NodeType() == can.NodeTCU && f.Type == can.MsgTCUPosition && f.HasData:
		s.onTCUPosition(f)
	}
}

func (s *Session) onECUPosition(f can.Frame) {
	delta := float64(can.GetBigEndianInt32(&f)) / can.TicksPerRadian
	if f.NodeIndex() == can.IndexLeft {
		s.odo.FeedLeft(f.FrameID, delta)
	} else {
		s.odo.FeedRight(f.FrameID, delta)
	}
}

func (s *Session) onECUSpeed(f can.Frame) {
	v := float64(can.GetBigEndianInt16(&f)) / can.SpeedScale
	s.mu.Lock()
	if f.NodeIndex() == can.IndexLeft {
		s.leftSpeed = v
	} else {
		s.rightSpeed = v
	}
	s.mu.Unlock()
}

// onTCUPosition is the heart of the control loop: every rudder
// position report is one control tick.
func (s *Session) onTCUPosition(f can.Frame) {
	rudder := float64(can.GetBigEndianInt32(&f)) / can.TicksPerRadian

	s.mu.Lock()
	s.rudderPos = rudder
	target := s.target
	setAt := s.targetSetAt
	current := s.current
	current.Rudder = rudder // the true, measured rudder angle replaces our last command echo
	s.mu.Unlock()

	var next kinematics.PhysicalSetpoint
	if time.Since(setAt) < controlTimeout {
		next = kinematics.Optimize(target, current, s.opt)
	} else {
		// No live target: brake the wheels, hold the rudder where it is.
		next = kinematics.PhysicalSetpoint{Speed: 0, Rudder: current.Rudder}
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	wheels := kinematics.PhysicalToWheels(next.Speed, next.Rudder, s.cfg)
	seq := s.nextSeq()
	if err := s.send(can.PackBigEndianInt16(can.ECUTargetSpeed(can.IndexLeft), int16(wheels.Left*can.SpeedScale), seq)); err != nil {
		log.Printf("[chassis] send target speed: %v", err)
	}
	if err := s.send(can.PackBigEndianInt16(can.ECUTargetSpeed(can.IndexRight), int16(wheels.Right*can.SpeedScale), seq)); err != nil {
		log.Printf("[chassis] send target speed: %v", err)
	}
	if err := s.send(can.PackBigEndianInt32(can.TCUTargetPosition(can.IndexOnly), int32(next.Rudder*can.TicksPerRadian), seq)); err != nil {
		log.Printf("[chassis] send target rudder: %v", err)
	}
}
