package protocol

// Target identifies a chip family.
type Target int

const (
	Unknown Target = iota
	ESP8266
	ESP32
	ESP32S2
	ESP32S3
	ESP32C3
	ESP32C2
	ESP32C6
	ESP32H2
)

func (t Target) String() string {
	switch t {
	case ESP8266:
		return "ESP8266"
	case ESP32:
		return "ESP32"
	case ESP32S2:
		return "ESP32-S2"
	case ESP32S3:
		return "ESP32-S3"
	case ESP32C3:
		return "ESP32-C3"
	case ESP32C2:
		return "ESP32-C2"
	case ESP32C6:
		return "ESP32-C6"
	case ESP32H2:
		return "ESP32-H2"
	default:
		return "Unknown"
	}
}

// RegisterMap holds the absolute MMIO addresses a target uses to drive its
// SPI0 controller for raw flash vendor commands, plus protocol quirks that
// vary per family.
type RegisterMap struct {
	CMD      uint32
	USR      uint32
	USR1     uint32
	USR2     uint32
	W0       uint32
	MosiDlen uint32
	MisoDlen uint32

	// HasDlenRegisters is false for ESP8266, which packs MOSI/MISO bit
	// counts into USR1 fields instead of dedicated MOSI_DLEN/MISO_DLEN
	// registers.
	HasDlenRegisters bool

	// EncryptionField is true when FLASH_BEGIN/FLASH_DEFL_BEGIN on this
	// target accepts a trailing "encrypted" word.
	EncryptionField bool

	// SupportsSPIAttach is false for ESP8266, whose ROM loader has no
	// SPI_ATTACH command.
	SupportsSPIAttach bool

	// SupportsChangeBaudrate is false for ESP8266.
	SupportsChangeBaudrate bool

	// SupportsVerify is false for ESP8266 (no SPI_FLASH_MD5 over the ROM
	// loader in the same uniform way the ESP32 family offers it).
	SupportsVerify bool

	// ChipMagicValue is the value expected at ChipMagicRegAddr() (or
	// ESP8266ChipMagicRegAddr() for ESP8266) to identify this target.
	// There's no per-target magic *address* field here: detection has to
	// read one of the two known addresses before it knows which target
	// it's talking to.
	ChipMagicValue uint32
}

// chipDetectMagicRegAddr is the MMIO address read on the ESP32 family after
// a successful SYNC to identify the chip variant.
const chipDetectMagicRegAddr = 0x40001000

// esp8266ChipMagicRegAddr is the analogous register on ESP8266, which lives
// in a different address space since the ESP8266 has no ESP32-style SPI0
// controller shared layout.
const esp8266ChipMagicRegAddr = 0x3ff00050

var registerMaps = map[Target]*RegisterMap{
	ESP8266: {
		CMD: 0x60000200, USR: 0x6000021c, USR1: 0x60000220, USR2: 0x60000224,
		W0:               0x60000240,
		HasDlenRegisters: false,
		EncryptionField:  false,
		SupportsSPIAttach: false, SupportsChangeBaudrate: false, SupportsVerify: false,
		ChipMagicValue: 0xfff0c101,
	},
	ESP32: {
		CMD: 0x3ff42000, USR: 0x3ff4201c, USR1: 0x3ff42020, USR2: 0x3ff42024,
		W0:               0x3ff42098,
		HasDlenRegisters: true,
		EncryptionField:  true,
		SupportsSPIAttach: true, SupportsChangeBaudrate: true, SupportsVerify: true,
		ChipMagicValue: 0x00f01d83,
	},
	ESP32S2: {
		CMD: 0x3f402000, USR: 0x3f40201c, USR1: 0x3f402020, USR2: 0x3f402024,
		W0:               0x3f402098,
		HasDlenRegisters: true,
		EncryptionField:  true,
		SupportsSPIAttach: true, SupportsChangeBaudrate: true, SupportsVerify: true,
		ChipMagicValue: 0x000007c6,
	},
	ESP32S3: {
		CMD: 0x60002000, USR: 0x6000201c, USR1: 0x60002020, USR2: 0x60002024,
		W0:               0x60002098,
		HasDlenRegisters: true,
		EncryptionField:  true,
		SupportsSPIAttach: true, SupportsChangeBaudrate: true, SupportsVerify: true,
		ChipMagicValue: 0x00000009,
	},
	ESP32C3: {
		CMD: 0x60002000, USR: 0x6000201c, USR1: 0x60002020, USR2: 0x60002024,
		W0:               0x60002098,
		HasDlenRegisters: true,
		EncryptionField:  true,
		SupportsSPIAttach: true, SupportsChangeBaudrate: true, SupportsVerify: true,
		ChipMagicValue: 0x6921506f,
	},
	ESP32C2: {
		CMD: 0x60002000, USR: 0x6000201c, USR1: 0x60002020, USR2: 0x60002024,
		W0:               0x60002098,
		HasDlenRegisters: true,
		EncryptionField:  true,
		SupportsSPIAttach: true, SupportsChangeBaudrate: true, SupportsVerify: true,
		ChipMagicValue: 0x6f51306f,
	},
	ESP32C6: {
		CMD: 0x60003000, USR: 0x6000301c, USR1: 0x60003020, USR2: 0x60003024,
		W0:               0x60003098,
		HasDlenRegisters: true,
		EncryptionField:  true,
		SupportsSPIAttach: true, SupportsChangeBaudrate: true, SupportsVerify: true,
		ChipMagicValue: 0x2ce0806f,
	},
	ESP32H2: {
		CMD: 0x60003000, USR: 0x6000301c, USR1: 0x60003020, USR2: 0x60003024,
		W0:               0x60003098,
		HasDlenRegisters: true,
		EncryptionField:  true,
		SupportsSPIAttach: true, SupportsChangeBaudrate: true, SupportsVerify: true,
		ChipMagicValue: 0xd7b73e80,
	},
}

// Registers returns the immutable register map for a known target, or nil
// for Unknown.
func Registers(t Target) *RegisterMap {
	return registerMaps[t]
}

// DetectByMagic matches a chip-identity register value read from
// chipDetectMagicRegAddr (or esp8266ChipMagicRegAddr as a fallback) against
// the known targets.
func DetectByMagic(value uint32) Target {
	for t, reg := range registerMaps {
		if reg.ChipMagicValue == value {
			return t
		}
	}
	return Unknown
}

// ChipMagicRegAddr returns the primary detection register address, shared
// by the whole ESP32 family.
func ChipMagicRegAddr() uint32 { return chipDetectMagicRegAddr }

// ESP8266ChipMagicRegAddr returns ESP8266's alternate detection register
// address, tried when the primary address doesn't match any known target.
func ESP8266ChipMagicRegAddr() uint32 { return esp8266ChipMagicRegAddr }
