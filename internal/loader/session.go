// Package loader implements the multi-phase flashing state machine that
// drives a target's ROM bootloader over a Port: connect, flash/flash-defl/
// mem-load, verify, register access, and baud-rate switching.
package loader

import (
	"fmt"
	"hash"
	"time"

	"github.com/espflash/espflash/internal/port"
	"github.com/espflash/espflash/internal/protocol"
)

// Timing constants, carried over from the reference loader unchanged.
const (
	defaultTimeout          = 1000 * time.Millisecond
	defaultFlashTimeout     = 3000 * time.Millisecond
	eraseRegionTimeoutPerMB = 10000 // ms per MB
	loadRAMTimeoutPerMB     = 2000000
	md5TimeoutPerMB         = 8000
	paddingPattern          = 0xFF
)

// timeoutPerMB scales a per-megabyte timeout budget by size, floored at
// defaultFlashTimeout. It computes (msPerMB*sizeBytes + 999_999) / 1_000_000
// in 64-bit integer arithmetic, so partial megabytes round up instead of
// being truncated away.
func timeoutPerMB(sizeBytes uint32, msPerMB uint32) time.Duration {
	ms := (uint64(msPerMB)*uint64(sizeBytes) + 999_999) / 1_000_000
	if floor := uint64(defaultFlashTimeout / time.Millisecond); ms < floor {
		ms = floor
	}
	return time.Duration(ms) * time.Millisecond
}

// Phase names the session's current activity, mirroring the state diagram
// the wire protocol's BEGIN/DATA/END sequencing implies.
type Phase int

const (
	Disconnected Phase = iota
	Idle
	Flashing
	FlashingDeflate
	LoadingRAM
	Running
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Idle:
		return "idle"
	case Flashing:
		return "flashing"
	case FlashingDeflate:
		return "flashing-deflate"
	case LoadingRAM:
		return "loading-ram"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// ConnectArgs configures Connect.
type ConnectArgs struct {
	// SyncTimeout bounds each individual SYNC attempt. Defaults to 100ms.
	SyncTimeout time.Duration
	// Trials is how many SYNC attempts to make before giving up. Defaults
	// to 10.
	Trials int
}

// Session drives one target over its Port for the lifetime of a connection.
type Session struct {
	port      port.Port
	transport *protocol.Transport

	phase  Phase
	target protocol.Target
	regs   *protocol.RegisterMap

	flashWriteSize uint32
	sequence       uint32

	md5           hash.Hash
	startAddress  uint32
	imageSize     uint32
}

// New creates a Session bound to p. The session starts Disconnected; call
// Connect before any other operation.
func New(p port.Port) *Session {
	return &Session{port: p, transport: protocol.NewTransport(p), phase: Disconnected}
}

// Target reports the chip family identified during Connect.
func (s *Session) Target() protocol.Target { return s.target }

// Phase reports the session's current state.
func (s *Session) Phase() Phase { return s.phase }

// Connect resets the target into its ROM bootloader, performs the SYNC
// handshake, identifies the chip, and attaches SPI flash (skipped on
// ESP8266, which has no SPI_ATTACH command).
func (s *Session) Connect(args ConnectArgs) error {
	syncTimeout := args.SyncTimeout
	if syncTimeout <= 0 {
		syncTimeout = 100 * time.Millisecond
	}
	trials := args.Trials
	if trials <= 0 {
		trials = 10
	}

	if err := s.port.EnterBootloader(); err != nil {
		return fmt.Errorf("loader: enter bootloader: %w", err)
	}

	var err error
	for {
		err = s.transport.Sync(syncTimeout)
		if err == nil {
			break
		}
		trials--
		if trials == 0 {
			return err
		}
		s.port.DelayMs(100)
	}

	target, regs, err := s.detectChip()
	if err != nil {
		return err
	}
	s.target = target
	s.regs = regs

	if regs.SupportsSPIAttach {
		spiConfig, err := s.readSPIConfig()
		if err != nil {
			return err
		}
		if _, err := s.transport.Command(protocol.SpiAttach, protocol.SpiAttachPayload(spiConfig), defaultTimeout); err != nil {
			return err
		}
	} else {
		if _, err := s.transport.Command(protocol.FlashBegin, protocol.FlashBeginPayload(0, 0, 0, 0, false), defaultTimeout); err != nil {
			return err
		}
	}

	s.phase = Idle
	return nil
}

// detectChip reads the chip-identity magic register and matches it against
// the known targets. ESP8266 has no readable magic word at the ESP32
// family's address, so a read failure or unknown value there falls back to
// probing ESP8266's own register.
func (s *Session) detectChip() (protocol.Target, *protocol.RegisterMap, error) {
	value, err := s.readRegisterRaw(protocol.ChipMagicRegAddr())
	if err == nil {
		if t := protocol.DetectByMagic(value); t != protocol.Unknown {
			return t, protocol.Registers(t), nil
		}
	}

	value, err = s.readRegisterRaw(protocol.ESP8266ChipMagicRegAddr())
	if err != nil {
		return protocol.Unknown, nil, fmt.Errorf("loader: chip detection failed: %w", err)
	}
	if t := protocol.DetectByMagic(value); t != protocol.Unknown {
		return t, protocol.Registers(t), nil
	}
	return protocol.Unknown, nil, &protocol.Error{Kind: protocol.UnsupportedChip, Message: fmt.Sprintf("unrecognized chip magic 0x%08X", value)}
}

func (s *Session) readRegisterRaw(address uint32) (uint32, error) {
	resp, err := s.transport.Command(protocol.ReadReg, protocol.ReadRegPayload(address), defaultTimeout)
	if err != nil {
		return 0, err
	}
	return resp.Value, nil
}

// ReadRegister reads a target MMIO register.
func (s *Session) ReadRegister(address uint32) (uint32, error) {
	return s.readRegisterRaw(address)
}

// WriteRegister writes value to a target MMIO register, unconditionally
// (mask 0xFFFFFFFF, no settle delay), matching the reference loader's
// public entry point.
func (s *Session) WriteRegister(address, value uint32) error {
	_, err := s.transport.Command(protocol.WriteReg, protocol.WriteRegPayload(address, value, 0xFFFFFFFF, 0), defaultTimeout)
	return err
}

// ChangeBaudRate switches the target's UART to newBaud. Unsupported on
// ESP8266. The caller is responsible for reconfiguring the local Port's
// line speed to match after this returns successfully.
func (s *Session) ChangeBaudRate(newBaud uint32) error {
	if s.regs != nil && !s.regs.SupportsChangeBaudrate {
		return &protocol.Error{Kind: protocol.UnsupportedFunc, Message: "CHANGE_BAUDRATE unsupported on " + s.target.String()}
	}
	_, err := s.transport.Command(protocol.ChangeBaudrate, protocol.ChangeBaudratePayload(newBaud), defaultTimeout)
	return err
}

// ResetTarget releases the target to boot its normal application image.
// The session itself is no longer connected to anything afterward: the
// state diagram's reset_target() transition returns to Disconnected from
// any state, not to Running (Running describes the target's own boot
// state, which this session stops tracking once it lets go of the link).
func (s *Session) ResetTarget() error {
	s.phase = Disconnected
	return s.port.ResetTarget()
}

// readSPIConfig picks the SPI pin configuration word for SPI_ATTACH. 0
// tells the ROM loader to use the default pin mapping for this chip
// package, which is all the reference loader supports for generic boards.
func (s *Session) readSPIConfig() (uint32, error) {
	return 0, nil
}
