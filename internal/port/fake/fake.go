// Package fake provides a scriptable in-memory Port double for testing the
// loader state machine without real hardware.
package fake

import (
	"sync"
	"time"
)

// Port is a programmable stand-in for port.Port. Tests queue inbound bytes
// with Feed and inspect what the code under test wrote via TakeSent.
type Port struct {
	mu              sync.Mutex
	inbound         []byte
	sent            []byte
	bootloaderCalls int
	resetCalls      int

	// TimeoutAfter, when non-zero, makes RecvByte behave as if no byte
	// arrived at all past that many bytes consumed from inbound — used to
	// simulate a device that stops responding mid-frame.
	TimeoutAfter int
	recvCount    int
}

// New creates an empty fake port.
func New() *Port {
	return &Port{}
}

// Feed appends raw bytes to the simulated inbound stream.
func (p *Port) Feed(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbound = append(p.inbound, data...)
}

// Send implements port.Port.
func (p *Port) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, data...)
	return nil
}

// RecvByte implements port.Port. It never sleeps and ignores deadline: it
// returns the next queued byte, or reports a timeout (ok=false) at once
// when nothing is queued. A caller that keeps polling until its deadline
// therefore waits out that deadline in real time.
func (p *Port) RecvByte(deadline time.Time) (byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recvCount++
	if p.TimeoutAfter > 0 && p.recvCount > p.TimeoutAfter {
		return 0, false, nil
	}
	if len(p.inbound) == 0 {
		return 0, false, nil
	}
	b := p.inbound[0]
	p.inbound = p.inbound[1:]
	return b, true, nil
}

// StartTimer implements port.Port using the real wall clock, so it composes
// with the real time.Now() comparisons Transport's read loop makes. There
// is no simulated clock; tests needing quick timeouts pass very small
// durations.
func (p *Port) StartTimer(timeout time.Duration) time.Time {
	return time.Now().Add(timeout)
}

// DelayMs implements port.Port as a no-op; tests don't want to actually
// wait out the deflate-path stability pauses.
func (p *Port) DelayMs(ms int) {}

// EnterBootloader implements port.Port, recording the call for assertions.
func (p *Port) EnterBootloader() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bootloaderCalls++
	return nil
}

// ResetTarget implements port.Port, recording the call for assertions.
func (p *Port) ResetTarget() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetCalls++
	return nil
}

// DebugPrint implements port.Port as a no-op.
func (p *Port) DebugPrint(format string, args ...any) {}

// TakeSent returns everything written so far and clears the buffer.
func (p *Port) TakeSent() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.sent
	p.sent = nil
	return out
}

// BootloaderCalls reports how many times EnterBootloader was invoked.
func (p *Port) BootloaderCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bootloaderCalls
}

// ResetCalls reports how many times ResetTarget was invoked.
func (p *Port) ResetCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resetCalls
}

// Pending reports how many inbound bytes remain unread.
func (p *Port) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inbound)
}
