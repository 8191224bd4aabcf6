package port

import (
	"fmt"
	"runtime"
	"time"

	"go.bug.st/serial"
)

// transport wraps a serial connection with the line-level operations the
// bootloader protocol needs: byte writes, deadline-bound reads, control
// signals, and reset sequences. On Linux it talks to the device through raw
// termios syscalls for better USB-CDC adapter compatibility; elsewhere it
// falls back to go.bug.st/serial.
type transport struct {
	conn     serial.Port
	raw      *rawTransport
	portName string
	baudRate int
}

// openTransport opens the named serial device at baudRate.
func openTransport(portName string, baudRate int) (*transport, error) {
	if runtime.GOOS == "linux" {
		raw, err := openRawTransport(portName, baudRate)
		if err != nil {
			return nil, err
		}
		return &transport{raw: raw, portName: portName, baudRate: baudRate}, nil
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	conn, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("port: open %s: %w", portName, err)
	}
	if err := conn.SetReadTimeout(100 * time.Millisecond); err != nil {
		conn.Close()
		return nil, fmt.Errorf("port: set read timeout: %w", err)
	}
	return &transport{conn: conn, portName: portName, baudRate: baudRate}, nil
}

func (t *transport) Close() error {
	if t.raw != nil {
		return t.raw.Close()
	}
	return t.conn.Close()
}

func (t *transport) Write(data []byte) (int, error) {
	if t.raw != nil {
		return t.raw.Write(data)
	}
	return t.conn.Write(data)
}

// ReadByte reads a single byte, blocking at most until timeout elapses. It
// reports (0, false, nil) on a plain timeout with no data.
func (t *transport) ReadByte(timeout time.Duration) (byte, bool, error) {
	buf := make([]byte, 1)
	var n int
	var err error
	if t.raw != nil {
		n, err = t.raw.ReadWithTimeout(buf, timeout)
	} else {
		if setErr := t.conn.SetReadTimeout(timeout); setErr != nil {
			return 0, false, setErr
		}
		n, err = t.conn.Read(buf)
	}
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}
	return buf[0], true, nil
}

func (t *transport) Flush() error {
	if t.raw != nil {
		return t.raw.Flush()
	}
	return t.conn.ResetInputBuffer()
}

func (t *transport) SetDTR(v bool) error {
	if t.raw != nil {
		return t.raw.SetDTR(v)
	}
	return t.conn.SetDTR(v)
}

func (t *transport) SetRTS(v bool) error {
	if t.raw != nil {
		return t.raw.SetRTS(v)
	}
	return t.conn.SetRTS(v)
}

// enterBootloader performs the classic auto-reset-circuit sequence that
// toggles EN/GPIO0 via RTS/DTR to boot the target into its ROM loader.
func (t *transport) enterBootloader() error {
	if t.raw != nil {
		return t.raw.ResetToBootloader()
	}
	if err := t.SetRTS(true); err != nil {
		return err
	}
	if err := t.SetDTR(false); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)

	if err := t.SetRTS(false); err != nil {
		return err
	}
	if err := t.SetDTR(true); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)

	if err := t.SetRTS(true); err != nil {
		return err
	}
	if err := t.SetDTR(false); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)

	if err := t.SetRTS(false); err != nil {
		return err
	}
	if err := t.SetDTR(false); err != nil {
		return err
	}

	t.Flush()
	time.Sleep(100 * time.Millisecond)
	return nil
}

// hardReset pulses EN without touching GPIO0, letting the target boot its
// normal application image.
func (t *transport) hardReset() error {
	if t.raw != nil {
		return t.raw.HardReset()
	}
	if err := t.SetRTS(true); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return t.SetRTS(false)
}

// ListPorts returns the names of available serial devices.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
