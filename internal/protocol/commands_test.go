package protocol

import (
	"encoding/binary"
	"testing"
)

func TestSyncPayload(t *testing.T) {
	payload := SyncPayload()
	if len(payload) != 36 {
		t.Fatalf("len = %d, want 36", len(payload))
	}
	want := []byte{0x07, 0x07, 0x12, 0x20}
	for i, b := range want {
		if payload[i] != b {
			t.Errorf("payload[%d] = 0x%02X, want 0x%02X", i, payload[i], b)
		}
	}
	for i := 4; i < len(payload); i++ {
		if payload[i] != 0x55 {
			t.Errorf("payload[%d] = 0x%02X, want 0x55", i, payload[i])
		}
	}
}

func TestFlashBeginPayload_NoEncryption(t *testing.T) {
	payload := FlashBeginPayload(0x1000, 2, 0x400, 0x8000, false)
	if len(payload) != 16 {
		t.Fatalf("len = %d, want 16", len(payload))
	}
	if got := binary.LittleEndian.Uint32(payload[0:4]); got != 0x1000 {
		t.Errorf("size field = 0x%X, want 0x1000", got)
	}
	if got := binary.LittleEndian.Uint32(payload[12:16]); got != 0x8000 {
		t.Errorf("offset field = 0x%X, want 0x8000", got)
	}
}

func TestFlashBeginPayload_Encryption(t *testing.T) {
	payload := FlashBeginPayload(0x1000, 2, 0x400, 0x8000, true)
	if len(payload) != 20 {
		t.Fatalf("len = %d, want 20", len(payload))
	}
}

func TestDataPayload(t *testing.T) {
	data := []byte{0xAA, 0xBB}
	payload := DataPayload(data, 3)
	if len(payload) != 16+len(data) {
		t.Fatalf("len = %d, want %d", len(payload), 16+len(data))
	}
	if got := binary.LittleEndian.Uint32(payload[0:4]); got != uint32(len(data)) {
		t.Errorf("size field = %d, want %d", got, len(data))
	}
	if got := binary.LittleEndian.Uint32(payload[4:8]); got != 3 {
		t.Errorf("sequence field = %d, want 3", got)
	}
	if payload[16] != 0xAA || payload[17] != 0xBB {
		t.Errorf("tail data = %v, want [AA BB]", payload[16:])
	}
}

func TestFlashEndPayload(t *testing.T) {
	if got := FlashEndPayload(true); binary.LittleEndian.Uint32(got) != 1 {
		t.Errorf("stayInLoader=true -> %v, want [1 0 0 0]", got)
	}
	if got := FlashEndPayload(false); binary.LittleEndian.Uint32(got) != 0 {
		t.Errorf("stayInLoader=false -> %v, want [0 0 0 0]", got)
	}
}

func TestMemEndPayload_StayInLoaderWhenEntryPointZero(t *testing.T) {
	payload := MemEndPayload(0)
	if binary.LittleEndian.Uint32(payload[0:4]) != 1 {
		t.Error("expected stay_in_loader=1 when entryPoint is 0")
	}
}

func TestMemEndPayload_JumpsWhenEntryPointSet(t *testing.T) {
	payload := MemEndPayload(0x40000000)
	if binary.LittleEndian.Uint32(payload[0:4]) != 0 {
		t.Error("expected stay_in_loader=0 when entryPoint is non-zero")
	}
	if binary.LittleEndian.Uint32(payload[4:8]) != 0x40000000 {
		t.Errorf("entry point = 0x%X, want 0x40000000", binary.LittleEndian.Uint32(payload[4:8]))
	}
}

func TestCalculateBlocks(t *testing.T) {
	cases := []struct {
		n, blockSize int
		want         uint32
	}{
		{0, 1024, 0},
		{1, 1024, 1},
		{1024, 1024, 1},
		{1025, 1024, 2},
		{2048, 1024, 2},
	}
	for _, c := range cases {
		if got := CalculateBlocks(c.n, c.blockSize); got != c.want {
			t.Errorf("CalculateBlocks(%d, %d) = %d, want %d", c.n, c.blockSize, got, c.want)
		}
	}
}
