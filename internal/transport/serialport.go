// Package transport owns the byte-level duplex link to the chassis.
package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

const (
	baudRate      = 115200
	readTimeout   = 50 * time.Millisecond
	breakPollTick = time.Millisecond
)

// SerialPort is a 115200 8N1 duplex link with interruptible blocking
// reads. Reads are serialised by a weak-try lock: a reader that loses
// the race returns 0 bytes immediately instead of blocking behind the
// winner, matching the original driver's weak_lock_guard semantics.
type SerialPort struct {
	handle atomic.Pointer[serial.Port]

	readMu    sync.Mutex
	breakFlag atomic.Bool
}

// Open opens name at 115200 baud, 8N1, no flow control.
func Open(name string) (*SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("IO Exception: open %s: %w", name, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("IO Exception: set timeout on %s: %w", name, err)
	}
	sp := &SerialPort{}
	sp.handle.Store(&port)
	return sp, nil
}

// Send blocks until the full buffer has been written.
func (p *SerialPort) Send(data []byte) error {
	h := p.handle.Load()
	if h == nil {
		return fmt.Errorf("IO Exception: port is closed")
	}
	n, err := (*h).Write(data)
	if err != nil {
		return fmt.Errorf("IO Exception: write: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("IO Exception: short write (%d of %d bytes)", n, len(data))
	}
	return nil
}

// Read blocks for up to the driver's inactivity timeout and returns
// the bytes read, or 0 on timeout, on break, or if another goroutine
// is already reading (weak-try semantics — the loser never blocks).
func (p *SerialPort) Read(buf []byte) (int, error) {
	if !p.readMu.TryLock() {
		return 0, nil
	}
	defer p.readMu.Unlock()

	if p.breakFlag.Load() {
		return 0, nil
	}

	h := p.handle.Load()
	if h == nil {
		return 0, nil
	}
	n, err := (*h).Read(buf)
	if err != nil {
		return 0, nil // treat read faults as a normal empty read; port close terminates the loop
	}
	return n, nil
}

// BreakRead signals the active reader to return promptly. Idempotent,
// and safe to call even when no reader is currently blocked.
func (p *SerialPort) BreakRead() {
	p.breakFlag.Store(true)
	for {
		if p.readMu.TryLock() {
			p.readMu.Unlock()
			break
		}
		time.Sleep(breakPollTick)
	}
	p.breakFlag.Store(false)
}

// Close exchanges the handle atomically and waits for any in-flight
// reader to unwind before releasing the underlying driver handle.
func (p *SerialPort) Close() error {
	h := p.handle.Swap(nil)
	if h == nil {
		return nil
	}
	p.BreakRead()
	return (*h).Close()
}

// ListPorts enumerates serial ports available for autodiscovery.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("IO Exception: list ports: %w", err)
	}
	return ports, nil
}
