package protocol

import (
	"testing"
	"time"

	"github.com/espflash/espflash/internal/port/fake"
	"github.com/espflash/espflash/internal/slip"
)

func encodedResponse(opcode byte, value uint32, data []byte, failed byte, code ErrorCode) []byte {
	resp := &Response{Opcode: opcode, Value: value, Data: data, Failed: failed, Code: code}
	payload := append(append([]byte{}, data...), failed, byte(code))
	raw := make([]byte, headerSize+len(payload))
	raw[0] = DirResponse
	raw[1] = resp.Opcode
	raw[2] = byte(len(payload))
	raw[3] = byte(len(payload) >> 8)
	raw[4] = byte(value)
	raw[5] = byte(value >> 8)
	raw[6] = byte(value >> 16)
	raw[7] = byte(value >> 24)
	copy(raw[headerSize:], payload)
	return slip.Encode(raw)
}

func TestTransport_Command_Success(t *testing.T) {
	p := fake.New()
	p.Feed(encodedResponse(ReadReg, 0x1234, nil, 0, 0))

	tr := NewTransport(p)
	resp, err := tr.Command(ReadReg, ReadRegPayload(0), time.Second)
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if resp.Value != 0x1234 {
		t.Errorf("Value = 0x%X, want 0x1234", resp.Value)
	}
}

func TestTransport_Command_IgnoresUnrelatedFrames(t *testing.T) {
	p := fake.New()
	p.Feed(encodedResponse(WriteReg, 0, nil, 0, 0)) // unrelated opcode, should be skipped
	p.Feed(encodedResponse(ReadReg, 0x99, nil, 0, 0))

	tr := NewTransport(p)
	resp, err := tr.Command(ReadReg, ReadRegPayload(0), time.Second)
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if resp.Value != 0x99 {
		t.Errorf("Value = 0x%X, want 0x99", resp.Value)
	}
}

func TestTransport_Command_FailurePropagatesErrorCode(t *testing.T) {
	p := fake.New()
	p.Feed(encodedResponse(FlashData, 0, nil, 1, DeflateError))

	tr := NewTransport(p)
	_, err := tr.Command(FlashData, nil, time.Second)
	if err == nil {
		t.Fatal("expected error")
	}
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if perr.Kind != InvalidResponse || perr.Code != DeflateError {
		t.Errorf("got Kind=%v Code=%v, want InvalidResponse/DeflateError", perr.Kind, perr.Code)
	}
}

func TestTransport_Command_TimeoutWhenNoResponse(t *testing.T) {
	p := fake.New()
	tr := NewTransport(p)
	_, err := tr.Command(Sync, SyncPayload(), 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Kind != Timeout {
		t.Fatalf("error = %v, want Timeout", err)
	}
}

func TestTransport_Command_SendsFramedRequest(t *testing.T) {
	p := fake.New()
	for i := 0; i < syncResponseCount; i++ {
		p.Feed(encodedResponse(Sync, 0, nil, 0, 0))
	}

	tr := NewTransport(p)
	if _, err := tr.Command(Sync, SyncPayload(), time.Second); err != nil {
		t.Fatalf("Command: %v", err)
	}

	sent := p.TakeSent()
	frame, _ := slip.ReadFrame(sent)
	if frame == nil {
		t.Fatal("expected a complete SLIP frame to have been sent")
	}
	decoded := slip.Decode(frame)
	if decoded[0] != DirRequest || decoded[1] != Sync {
		t.Errorf("sent header = %v, want direction=0 opcode=Sync", decoded[:2])
	}
}

// TestTransport_Sync_DrainsAllEightResponses scripts exactly
// syncResponseCount SYNC acks and confirms Sync only succeeds once all of
// them are consumed: a script one response short must time out instead of
// returning early after the first ack.
func TestTransport_Sync_DrainsAllEightResponses(t *testing.T) {
	p := fake.New()
	for i := 0; i < syncResponseCount; i++ {
		p.Feed(encodedResponse(Sync, 0, nil, 0, 0))
	}

	tr := NewTransport(p)
	if err := tr.Sync(time.Second); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if p.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 (all %d SYNC responses should be drained)", p.Pending(), syncResponseCount)
	}
}

func TestTransport_Sync_TimesOutOneResponseShort(t *testing.T) {
	p := fake.New()
	for i := 0; i < syncResponseCount-1; i++ {
		p.Feed(encodedResponse(Sync, 0, nil, 0, 0))
	}

	tr := NewTransport(p)
	err := tr.Sync(50 * time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout when only 7 of 8 SYNC responses are available")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Kind != Timeout {
		t.Fatalf("error = %v, want Timeout", err)
	}
}
