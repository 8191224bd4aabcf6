package protocol

import (
	"time"

	"github.com/espflash/espflash/internal/port"
	"github.com/espflash/espflash/internal/slip"
)

// Transport drives the command/response exchange over a Port: SLIP framing,
// header encode/decode, and the ignore-unrelated-frames discipline the ROM
// loader's own chatter requires (the bootloader occasionally echoes stray
// bytes or duplicate responses, particularly around SYNC).
type Transport struct {
	Port port.Port
}

// NewTransport wraps p for command/response exchanges.
func NewTransport(p port.Port) *Transport {
	return &Transport{Port: p}
}

// readFrame accumulates bytes from the port until a complete SLIP frame
// arrives or the deadline passes.
func (t *Transport) readFrame(deadline time.Time) ([]byte, error) {
	var buf []byte
	for {
		if !time.Now().Before(deadline) {
			return nil, newError(Timeout, "no response from target")
		}
		b, ok, err := t.Port.RecvByte(deadline)
		if err != nil {
			return nil, wrapError(Timeout, "read failed", err)
		}
		if !ok {
			continue
		}
		buf = append(buf, b)
		if frame, _ := slip.ReadFrame(buf); frame != nil {
			return frame, nil
		}
	}
}

// syncResponseCount is the number of matching responses a single SYNC
// request gets from the ROM loader. protocol.c's send_cmd sets its
// response_cnt to 8 specifically for SYNC (every other command gets 1);
// the loader replies to one SYNC frame with eight, and all eight must be
// drained before the link is considered synchronized.
const syncResponseCount = 8

// Command sends opcode/payload and waits up to timeout for a matching
// response, silently discarding frames for other opcodes (the ROM loader
// can emit leftover traffic from a previous command). SYNC is special: it
// drains syncResponseCount matching frames, sharing a single deadline,
// instead of returning after the first.
func (t *Transport) Command(opcode byte, payload []byte, timeout time.Duration) (*Response, error) {
	req := NewRequest(opcode, payload)
	if err := t.Port.Send(slip.Encode(req.Encode())); err != nil {
		return nil, wrapError(Timeout, "write failed", err)
	}

	want := 1
	if opcode == Sync {
		want = syncResponseCount
	}

	deadline := t.Port.StartTimer(timeout)
	var resp *Response
	for got := 0; got < want; {
		frame, err := t.readFrame(deadline)
		if err != nil {
			return nil, err
		}
		r, err := DecodeResponse(slip.Decode(frame))
		if err != nil {
			// Malformed or unrelated chatter; keep listening until the
			// deadline instead of failing the whole command.
			continue
		}
		if r.Opcode != opcode {
			continue
		}
		if !r.IsSuccess() {
			return nil, newResponseError(r.Code)
		}
		resp = r
		got++
	}
	return resp, nil
}

// Sync issues the SYNC handshake and waits for Command to drain all
// syncResponseCount matching responses. A response that never arrives
// within timeout is a normal, expected failure signal to the retry loop
// in internal/loader, not a logged error.
func (t *Transport) Sync(timeout time.Duration) error {
	_, err := t.Command(Sync, SyncPayload(), timeout)
	return err
}
