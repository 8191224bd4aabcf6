package protocol

import "testing"

func TestDetectByMagic_KnownChip(t *testing.T) {
	if got := DetectByMagic(0x00f01d83); got != ESP32 {
		t.Errorf("DetectByMagic(ESP32 magic) = %v, want ESP32", got)
	}
	if got := DetectByMagic(0x6921506f); got != ESP32C3 {
		t.Errorf("DetectByMagic(ESP32-C3 magic) = %v, want ESP32-C3", got)
	}
}

func TestDetectByMagic_Unknown(t *testing.T) {
	if got := DetectByMagic(0xDEADBEEF); got != Unknown {
		t.Errorf("DetectByMagic(garbage) = %v, want Unknown", got)
	}
}

func TestRegisters_ESP8266Quirks(t *testing.T) {
	regs := Registers(ESP8266)
	if regs == nil {
		t.Fatal("expected register map for ESP8266")
	}
	if regs.HasDlenRegisters {
		t.Error("ESP8266 should not report DLEN registers")
	}
	if regs.SupportsSPIAttach {
		t.Error("ESP8266 should not support SPI_ATTACH")
	}
	if regs.SupportsChangeBaudrate {
		t.Error("ESP8266 should not support CHANGE_BAUDRATE")
	}
}

func TestRegisters_ESP32SupportsEverything(t *testing.T) {
	regs := Registers(ESP32)
	if regs == nil {
		t.Fatal("expected register map for ESP32")
	}
	if !regs.HasDlenRegisters || !regs.SupportsSPIAttach || !regs.SupportsChangeBaudrate || !regs.SupportsVerify {
		t.Error("ESP32 should support the full feature set")
	}
}

func TestTarget_String(t *testing.T) {
	if ESP32S3.String() != "ESP32-S3" {
		t.Errorf("ESP32S3.String() = %q, want ESP32-S3", ESP32S3.String())
	}
	if Unknown.String() != "Unknown" {
		t.Errorf("Unknown.String() = %q, want Unknown", Unknown.String())
	}
}
