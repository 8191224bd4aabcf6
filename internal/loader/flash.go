package loader

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/espflash/espflash/internal/protocol"
)

// detectFlashSize issues SPI_FLASH_READ_ID through the raw SPI0 register
// sequence and decodes the result. A failure here is non-fatal to callers:
// the reference loader falls back to skipping the SPI_SET_PARAMS step when
// detection fails, logging a debug line instead of aborting.
func (s *Session) detectFlashSize() (uint32, error) {
	regs := s.regs
	if regs == nil {
		return 0, &protocol.Error{Kind: protocol.UnsupportedChip, Message: "no target connected"}
	}

	oldUSR, err := s.readRegisterRaw(regs.USR)
	if err != nil {
		return 0, err
	}
	oldUSR2, err := s.readRegisterRaw(regs.USR2)
	if err != nil {
		return 0, err
	}

	const readBits = 24
	if regs.HasDlenRegisters {
		if err := s.WriteRegister(regs.MisoDlen, protocol.BuildMisoDlen(readBits)); err != nil {
			return 0, err
		}
	} else {
		if err := s.WriteRegister(regs.USR1, protocol.BuildUSR1Dlen(readBits, 0)); err != nil {
			return 0, err
		}
	}

	if err := s.WriteRegister(regs.USR, protocol.BuildUSR(readBits)); err != nil {
		return 0, err
	}
	if err := s.WriteRegister(regs.USR2, protocol.BuildCommandUSR2(protocol.SpiFlashReadID)); err != nil {
		return 0, err
	}
	if err := s.WriteRegister(regs.W0, 0); err != nil {
		return 0, err
	}
	if err := s.WriteRegister(regs.CMD, 1<<18); err != nil {
		return 0, err
	}

	const trials = 10
	done := false
	for i := 0; i < trials; i++ {
		cmdReg, err := s.readRegisterRaw(regs.CMD)
		if err != nil {
			return 0, err
		}
		if cmdReg&(1<<18) == 0 {
			done = true
			break
		}
	}
	if !done {
		return 0, &protocol.Error{Kind: protocol.Timeout, Message: "SPI flash command did not complete"}
	}

	rawID, err := s.readRegisterRaw(regs.W0)
	if err != nil {
		return 0, err
	}

	if err := s.WriteRegister(regs.USR, oldUSR); err != nil {
		return 0, err
	}
	if err := s.WriteRegister(regs.USR2, oldUSR2); err != nil {
		return 0, err
	}

	size, ok := protocol.DecodeFlashSize(rawID)
	if !ok {
		return 0, &protocol.Error{Kind: protocol.UnsupportedChip, Message: "flash size detection returned an implausible ID"}
	}
	return size, nil
}

// FlashStart begins a raw (uncompressed) flash write of imageSize bytes at
// offset, using blockSize-sized FLASH_DATA blocks.
func (s *Session) FlashStart(offset, imageSize, blockSize uint32) error {
	blocks := protocol.CalculateBlocks(int(imageSize), int(blockSize))
	eraseSize := blockSize * blocks
	s.flashWriteSize = blockSize
	s.sequence = 0

	if flashSize, err := s.detectFlashSize(); err == nil {
		if imageSize+offset > flashSize {
			return &protocol.Error{Kind: protocol.ImageSize, Message: "image does not fit in detected flash size"}
		}
		if _, err := s.transport.Command(protocol.SpiSetParams, protocol.SpiSetParamsPayload(flashSize), defaultTimeout); err != nil {
			return err
		}
	} else {
		s.port.DebugPrint("flash size detection failed, falling back to default: %v", err)
	}

	s.md5 = md5.New()
	s.startAddress = offset
	s.imageSize = imageSize

	encrypted := s.regs != nil && s.regs.EncryptionField
	timeout := timeoutPerMB(eraseSize, eraseRegionTimeoutPerMB)
	_, err := s.transport.Command(protocol.FlashBegin, protocol.FlashBeginPayload(eraseSize, blocks, blockSize, offset, encrypted), timeout)
	s.phase = Flashing
	return err
}

// FlashWrite writes one block of raw flash data, padding short final
// blocks to blockSize with 0xFF and rolling the running MD5 over the
// 4-byte-aligned padded length.
func (s *Session) FlashWrite(data []byte) error {
	if uint32(len(data)) > s.flashWriteSize {
		return &protocol.Error{Kind: protocol.InvalidParam, Message: "block larger than negotiated flash write size"}
	}
	padded := padTo(data, int(s.flashWriteSize))
	s.md5.Write(padded[:round4(len(data))])

	_, err := s.transport.Command(protocol.FlashData, protocol.DataPayload(padded, s.sequence), defaultTimeout)
	if err != nil {
		return err
	}
	s.sequence++
	return nil
}

// FlashFinish completes a raw flash write. When reboot is false the target
// stays in the ROM loader (session goes Idle); when true it resets into
// the flashed image, severing this session's link to it (Disconnected).
func (s *Session) FlashFinish(reboot bool) error {
	_, err := s.transport.Command(protocol.FlashEnd, protocol.FlashEndPayload(!reboot), defaultTimeout)
	if err != nil {
		return err
	}
	if reboot {
		s.phase = Disconnected
	} else {
		s.phase = Idle
	}
	return nil
}

// FlashDeflStart begins a compressed flash write: compressedSize bytes of
// deflate-compressed payload will be written in blockSize chunks, expanding
// to imageSize bytes on the target. The delay sequence between flash-size
// detection steps matches the reference loader's stability pauses, which
// some ROM loader revisions need between back-to-back SPI register pokes
// right after SYNC.
func (s *Session) FlashDeflStart(offset, imageSize, compressedSize, blockSize uint32) error {
	blocks := protocol.CalculateBlocks(int(compressedSize), int(blockSize))
	eraseBlocks := protocol.CalculateBlocks(int(imageSize), int(blockSize))
	eraseSize := blockSize * eraseBlocks
	s.flashWriteSize = blockSize
	s.sequence = 0

	s.port.DelayMs(20)
	flashSize, sizeErr := s.detectFlashSize()
	if sizeErr == nil {
		s.port.DelayMs(20)
		if imageSize+offset > flashSize {
			return &protocol.Error{Kind: protocol.ImageSize, Message: "image does not fit in detected flash size"}
		}
		if _, err := s.transport.Command(protocol.SpiSetParams, protocol.SpiSetParamsPayload(flashSize), defaultTimeout); err != nil {
			return err
		}
		s.port.DelayMs(20)
	} else {
		s.port.DebugPrint("flash size detection failed, falling back to default: %v", sizeErr)
	}

	s.port.DelayMs(10)
	s.md5 = md5.New()
	s.startAddress = offset
	s.imageSize = imageSize

	s.port.DelayMs(10)
	encrypted := s.regs != nil && s.regs.EncryptionField

	s.port.DelayMs(10)
	timeout := timeoutPerMB(eraseSize, eraseRegionTimeoutPerMB)
	_, err := s.transport.Command(protocol.FlashDeflBegin, protocol.FlashBeginPayload(eraseSize, blocks, blockSize, offset, encrypted), timeout)
	s.phase = FlashingDeflate
	return err
}

// FlashDeflWrite writes one block of compressed data. The write timeout is
// 50x the default because a single compressed block can expand into a
// much larger flash write on the target side; decompressing here to size
// the timeout precisely isn't done, matching the reference loader's own
// tradeoff.
func (s *Session) FlashDeflWrite(data []byte) error {
	if uint32(len(data)) > s.flashWriteSize {
		return &protocol.Error{Kind: protocol.InvalidParam, Message: "block larger than negotiated flash write size"}
	}
	s.md5.Write(data[:round4(len(data))])

	_, err := s.transport.Command(protocol.FlashDeflData, protocol.DataPayload(data, s.sequence), 50*defaultTimeout)
	if err != nil {
		return err
	}
	s.sequence++
	return nil
}

// FlashDeflFinish completes a compressed flash write. Mirrors FlashFinish's
// reboot transition: reboot severs this session's link to the target
// (Disconnected), it doesn't leave it Running.
func (s *Session) FlashDeflFinish(reboot bool) error {
	_, err := s.transport.Command(protocol.FlashDeflEnd, protocol.FlashEndPayload(!reboot), defaultTimeout)
	if err != nil {
		return err
	}
	if reboot {
		s.phase = Disconnected
	} else {
		s.phase = Idle
	}
	return nil
}

// MemStart begins a RAM-load write of size bytes at offset.
func (s *Session) MemStart(offset, size, blockSize uint32) error {
	blocks := protocol.CalculateBlocks(int(size), int(blockSize))
	s.flashWriteSize = blockSize
	s.sequence = 0
	_, err := s.transport.Command(protocol.MemBegin, protocol.MemBeginPayload(size, blocks, blockSize, offset), timeoutPerMB(size, loadRAMTimeoutPerMB))
	s.phase = LoadingRAM
	return err
}

// MemWrite writes one block of a RAM-load payload. Unlike flash writes,
// RAM blocks are not padded: the target already knows the exact total
// size from MemStart.
func (s *Session) MemWrite(data []byte) error {
	_, err := s.transport.Command(protocol.MemData, protocol.DataPayload(data, s.sequence), timeoutPerMB(uint32(len(data)), loadRAMTimeoutPerMB))
	if err != nil {
		return err
	}
	s.sequence++
	return nil
}

// MemFinish completes a RAM load. An entryPoint of 0 tells the target to
// stay in the loader instead of jumping to the loaded image.
func (s *Session) MemFinish(entryPoint uint32) error {
	_, err := s.transport.Command(protocol.MemEnd, protocol.MemEndPayload(entryPoint), defaultTimeout)
	if err != nil {
		return err
	}
	if entryPoint != 0 {
		s.phase = Running
	} else {
		s.phase = Idle
	}
	return nil
}

// Verify compares the running MD5 accumulated during the last flash write
// against the target's own SPI_FLASH_MD5 computation over the same region.
// Unsupported on ESP8266.
func (s *Session) Verify() error {
	if s.regs != nil && !s.regs.SupportsVerify {
		return &protocol.Error{Kind: protocol.UnsupportedFunc, Message: "flash verify unsupported on " + s.target.String()}
	}

	expected := hex.EncodeToString(s.md5.Sum(nil))

	resp, err := s.transport.Command(protocol.SpiFlashMD5, protocol.SpiFlashMD5Payload(s.startAddress, s.imageSize), timeoutPerMB(s.imageSize, md5TimeoutPerMB))
	if err != nil {
		return err
	}

	got := string(resp.Data)
	if got != expected {
		return &protocol.Error{Kind: protocol.InvalidMD5, Message: "checksum mismatch: target=" + got + " local=" + expected}
	}
	return nil
}

// GetMD5Hex asks the target to compute the MD5 of length bytes starting at
// startAddress directly, without reference to any local write session.
// Used for standalone post-flash verification against an arbitrary region.
func (s *Session) GetMD5Hex(startAddress, length uint32) (string, error) {
	if flashSize, err := s.detectFlashSize(); err == nil {
		if _, err := s.transport.Command(protocol.SpiSetParams, protocol.SpiSetParamsPayload(flashSize), defaultTimeout); err != nil {
			return "", err
		}
	}

	resp, err := s.transport.Command(protocol.SpiFlashMD5, protocol.SpiFlashMD5Payload(startAddress, length), timeoutPerMB(length, md5TimeoutPerMB))
	if err != nil {
		return "", err
	}
	return string(resp.Data), nil
}

func round4(n int) int {
	return (n + 3) &^ 3
}

func padTo(data []byte, size int) []byte {
	if len(data) >= size {
		return data
	}
	out := make([]byte, size)
	copy(out, data)
	for i := len(data); i < size; i++ {
		out[i] = paddingPattern
	}
	return out
}
