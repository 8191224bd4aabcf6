//go:build !linux

package port

import (
	"errors"
	"time"
)

// rawTransport is unused outside Linux; openTransport never constructs one
// on other platforms, it goes through go.bug.st/serial instead.
type rawTransport struct{}

func openRawTransport(portName string, baudRate int) (*rawTransport, error) {
	return nil, errors.New("port: raw transport not supported on this platform")
}

func (t *rawTransport) Close() error                  { return errors.New("port: unsupported") }
func (t *rawTransport) Write(data []byte) (int, error) { return 0, errors.New("port: unsupported") }
func (t *rawTransport) ReadWithTimeout(buf []byte, timeout time.Duration) (int, error) {
	return 0, errors.New("port: unsupported")
}
func (t *rawTransport) Flush() error             { return errors.New("port: unsupported") }
func (t *rawTransport) SetDTR(value bool) error  { return errors.New("port: unsupported") }
func (t *rawTransport) SetRTS(value bool) error  { return errors.New("port: unsupported") }
func (t *rawTransport) ResetToBootloader() error { return errors.New("port: unsupported") }
func (t *rawTransport) HardReset() error         { return errors.New("port: unsupported") }
