package protocol

import "testing"

func TestChecksum_Empty(t *testing.T) {
	if got := Checksum(nil); got != ChecksumSeed {
		t.Errorf("Checksum(nil) = 0x%X, want 0x%X", got, ChecksumSeed)
	}
}

func TestChecksum_KnownValue(t *testing.T) {
	// 0xEF ^ 0x01 ^ 0x02 ^ 0x03 = 0xEF
	data := []byte{0x01, 0x02, 0x03}
	want := uint32(0xEF ^ 0x01 ^ 0x02 ^ 0x03)
	if got := Checksum(data); got != want {
		t.Errorf("Checksum(%v) = 0x%X, want 0x%X", data, got, want)
	}
}

func TestChecksum_OrderIndependent(t *testing.T) {
	a := Checksum([]byte{0xAA, 0xBB, 0xCC})
	b := Checksum([]byte{0xCC, 0xBB, 0xAA})
	if a != b {
		t.Errorf("checksum should be order-independent: %X != %X", a, b)
	}
}
