package protocol

import (
	"bytes"
	"testing"
)

func TestRequest_Encode(t *testing.T) {
	req := NewRequest(Sync, []byte{0x01, 0x02})
	encoded := req.Encode()

	if encoded[0] != DirRequest {
		t.Errorf("direction byte = 0x%02X, want 0x%02X", encoded[0], DirRequest)
	}
	if encoded[1] != Sync {
		t.Errorf("opcode byte = 0x%02X, want 0x%02X", encoded[1], Sync)
	}
	if len(encoded) != headerSize+2 {
		t.Errorf("encoded length = %d, want %d", len(encoded), headerSize+2)
	}
	if !bytes.Equal(encoded[headerSize:], []byte{0x01, 0x02}) {
		t.Errorf("payload = %v, want [1 2]", encoded[headerSize:])
	}
}

func TestDecodeResponse_Success(t *testing.T) {
	// direction, opcode, payload_size=2, checksum=0, data, failed=0, code=0
	raw := []byte{DirResponse, FlashData, 0x02, 0x00, 0, 0, 0, 0, 0, 0}
	resp, err := DecodeResponse(raw)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if !resp.IsSuccess() {
		t.Error("expected success")
	}
	if resp.Opcode != FlashData {
		t.Errorf("opcode = 0x%02X, want 0x%02X", resp.Opcode, FlashData)
	}
}

func TestDecodeResponse_Failure(t *testing.T) {
	// failed=1, code=DeflateError(0x06)
	raw := []byte{DirResponse, FlashDeflData, 0x02, 0x00, 0, 0, 0, 0, 1, byte(DeflateError)}
	resp, err := DecodeResponse(raw)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if resp.IsSuccess() {
		t.Error("expected failure")
	}
	if resp.Code != DeflateError {
		t.Errorf("code = %v, want %v", resp.Code, DeflateError)
	}
}

func TestDecodeResponse_RegisterValue(t *testing.T) {
	raw := []byte{DirResponse, ReadReg, 0x02, 0x00, 0xEF, 0xBE, 0xAD, 0xDE, 0, 0}
	resp, err := DecodeResponse(raw)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if resp.Value != 0xDEADBEEF {
		t.Errorf("Value = 0x%X, want 0xDEADBEEF", resp.Value)
	}
}

func TestDecodeResponse_TooShort(t *testing.T) {
	_, err := DecodeResponse([]byte{DirResponse, Sync})
	if err == nil {
		t.Fatal("expected error for short response")
	}
}

func TestDecodeResponse_WrongDirection(t *testing.T) {
	raw := []byte{DirRequest, Sync, 0x02, 0x00, 0, 0, 0, 0, 0, 0}
	_, err := DecodeResponse(raw)
	if err == nil {
		t.Fatal("expected error for request-direction byte in response")
	}
}

func TestDecodeResponse_PayloadMismatch(t *testing.T) {
	raw := []byte{DirResponse, Sync, 0xFF, 0x00, 0, 0, 0, 0, 0, 0}
	_, err := DecodeResponse(raw)
	if err == nil {
		t.Fatal("expected error for payload size mismatch")
	}
}
