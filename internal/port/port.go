// Package port defines the link-layer contract the loader state machine
// drives a target over, and a real implementation backed by a serial
// device.
package port

import (
	"fmt"
	"time"
)

// Port is the dependency the session state machine needs from whatever
// physical link it talks to the target over. Implementations need not be
// serial ports: internal/port/fake provides a scriptable in-memory double
// for tests.
type Port interface {
	// Send writes data to the target.
	Send(data []byte) error

	// RecvByte reads one byte, blocking until either a byte arrives or the
	// deadline passes. ok is false on a plain timeout; err is non-nil only
	// for unexpected I/O failures.
	RecvByte(deadline time.Time) (b byte, ok bool, err error)

	// StartTimer returns a deadline timeout after now.
	StartTimer(timeout time.Duration) time.Time

	// DelayMs blocks for the given number of milliseconds. Used to
	// reproduce the stability pauses the deflate-path flashing sequence
	// depends on.
	DelayMs(ms int)

	// EnterBootloader resets the target with GPIO0 held low so it boots
	// into its ROM loader instead of the flashed application.
	EnterBootloader() error

	// ResetTarget resets the target without forcing bootloader mode,
	// letting it boot its normal application image.
	ResetTarget() error

	// DebugPrint logs a line of protocol-level trace output. Implementations
	// that don't care about tracing may no-op.
	DebugPrint(format string, args ...any)
}

// SerialPort is the production Port implementation, backed by a physical
// serial device.
type SerialPort struct {
	t        *transport
	debug    bool
	portName string
}

// Options configures Open.
type Options struct {
	BaudRate int
	Debug    bool
}

// Open opens portName as a SerialPort at the given baud rate.
func Open(portName string, opts Options) (*SerialPort, error) {
	baud := opts.BaudRate
	if baud == 0 {
		baud = 115200
	}
	t, err := openTransport(portName, baud)
	if err != nil {
		return nil, err
	}
	return &SerialPort{t: t, debug: opts.Debug, portName: portName}, nil
}

// Close releases the underlying device.
func (s *SerialPort) Close() error { return s.t.Close() }

// PortName returns the device path this port was opened on.
func (s *SerialPort) PortName() string { return s.portName }

func (s *SerialPort) Send(data []byte) error {
	_, err := s.t.Write(data)
	return err
}

func (s *SerialPort) RecvByte(deadline time.Time) (byte, bool, error) {
	timeout := time.Until(deadline)
	if timeout <= 0 {
		return 0, false, nil
	}
	return s.t.ReadByte(timeout)
}

func (s *SerialPort) StartTimer(timeout time.Duration) time.Time {
	return time.Now().Add(timeout)
}

func (s *SerialPort) DelayMs(ms int) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

func (s *SerialPort) EnterBootloader() error {
	return s.t.enterBootloader()
}

func (s *SerialPort) ResetTarget() error {
	return s.t.hardReset()
}

func (s *SerialPort) DebugPrint(format string, args ...any) {
	if !s.debug {
		return
	}
	fmt.Printf(format+"\n", args...)
}
