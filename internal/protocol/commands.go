package protocol

import "encoding/binary"

// ROM bootloader opcodes.
const (
	FlashBegin     = 0x02
	FlashData      = 0x03
	FlashEnd       = 0x04
	MemBegin       = 0x05
	MemEnd         = 0x06
	MemData        = 0x07
	Sync           = 0x08
	WriteReg       = 0x09
	ReadReg        = 0x0A
	SpiSetParams   = 0x0B
	SpiAttach      = 0x0D
	FlashDeflBegin = 0x10
	FlashDeflData  = 0x11
	FlashDeflEnd   = 0x12
	SpiFlashMD5    = 0x13
	ChangeBaudrate = 0x15
)

// Flash geometry constants.
const (
	FlashSectorSize = 0x1000 // 4KiB erase granularity
	FlashPageSize   = 0x100  // 256 bytes
	SpiBlockSize    = 0x10000
)

// DefaultBaudRate is the bootloader's initial line speed.
const DefaultBaudRate = 115200

// SyncPayload builds the SYNC command payload: the fixed four-byte pattern
// followed by 32 bytes of 0x55.
func SyncPayload() []byte {
	data := make([]byte, 36)
	data[0], data[1], data[2], data[3] = 0x07, 0x07, 0x12, 0x20
	for i := 4; i < len(data); i++ {
		data[i] = 0x55
	}
	return data
}

// FlashBeginPayload builds the FLASH_BEGIN/FLASH_DEFL_BEGIN tail.
// sizeField is the erase size (raw flash) or uncompressed size (deflate).
// encrypted is appended only when the target's register map says the ROM
// accepts it.
func FlashBeginPayload(sizeField, blockCount, blockSize, offset uint32, encrypted bool) []byte {
	n := 16
	if encrypted {
		n += 4
	}
	data := make([]byte, n)
	binary.LittleEndian.PutUint32(data[0:4], sizeField)
	binary.LittleEndian.PutUint32(data[4:8], blockCount)
	binary.LittleEndian.PutUint32(data[8:12], blockSize)
	binary.LittleEndian.PutUint32(data[12:16], offset)
	if encrypted {
		binary.LittleEndian.PutUint32(data[16:20], 0)
	}
	return data
}

// DataPayload builds the FLASH_DATA/FLASH_DEFL_DATA/MEM_DATA tail: a 16-byte
// header (size, sequence number, two reserved words) followed by data.
func DataPayload(data []byte, seq uint32) []byte {
	payload := make([]byte, 16+len(data))
	binary.LittleEndian.PutUint32(payload[0:4], uint32(len(data)))
	binary.LittleEndian.PutUint32(payload[4:8], seq)
	copy(payload[16:], data)
	return payload
}

// FlashEndPayload builds the FLASH_END/FLASH_DEFL_END tail.
func FlashEndPayload(stayInLoader bool) []byte {
	data := make([]byte, 4)
	if stayInLoader {
		binary.LittleEndian.PutUint32(data, 1)
	}
	return data
}

// MemBeginPayload builds the MEM_BEGIN tail.
func MemBeginPayload(totalSize, blockCount, blockSize, offset uint32) []byte {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data[0:4], totalSize)
	binary.LittleEndian.PutUint32(data[4:8], blockCount)
	binary.LittleEndian.PutUint32(data[8:12], blockSize)
	binary.LittleEndian.PutUint32(data[12:16], offset)
	return data
}

// MemEndPayload builds the MEM_END tail. stay_in_loader is derived here
// from entryPoint == 0, per the protocol's own rule.
func MemEndPayload(entryPoint uint32) []byte {
	data := make([]byte, 8)
	if entryPoint == 0 {
		binary.LittleEndian.PutUint32(data[0:4], 1)
	}
	binary.LittleEndian.PutUint32(data[4:8], entryPoint)
	return data
}

// ReadRegPayload builds the READ_REG tail.
func ReadRegPayload(address uint32) []byte {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, address)
	return data
}

// WriteRegPayload builds the WRITE_REG tail.
func WriteRegPayload(address, value, mask, delayUs uint32) []byte {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data[0:4], address)
	binary.LittleEndian.PutUint32(data[4:8], value)
	binary.LittleEndian.PutUint32(data[8:12], mask)
	binary.LittleEndian.PutUint32(data[12:16], delayUs)
	return data
}

// SpiAttachPayload builds the SPI_ATTACH tail.
func SpiAttachPayload(configuration uint32) []byte {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:4], configuration)
	return data
}

// SpiSetParamsPayload builds the SPI_SET_PARAMS tail.
func SpiSetParamsPayload(totalSize uint32) []byte {
	data := make([]byte, 24)
	binary.LittleEndian.PutUint32(data[0:4], 0) // id
	binary.LittleEndian.PutUint32(data[4:8], totalSize)
	binary.LittleEndian.PutUint32(data[8:12], SpiBlockSize)
	binary.LittleEndian.PutUint32(data[12:16], FlashSectorSize)
	binary.LittleEndian.PutUint32(data[16:20], FlashPageSize)
	binary.LittleEndian.PutUint32(data[20:24], 0xFFFF)
	return data
}

// ChangeBaudratePayload builds the CHANGE_BAUDRATE tail. old_baud is always
// zero: the ROM loader only uses the new value.
func ChangeBaudratePayload(newBaud uint32) []byte {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:4], newBaud)
	return data
}

// SpiFlashMD5Payload builds the SPI_FLASH_MD5 tail.
func SpiFlashMD5Payload(address, size uint32) []byte {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data[0:4], address)
	binary.LittleEndian.PutUint32(data[4:8], size)
	return data
}

// CalculateBlocks returns the number of fixed-size blocks needed to cover n
// bytes, rounding up.
func CalculateBlocks(n, blockSize int) uint32 {
	if n <= 0 {
		return 0
	}
	return uint32((n + blockSize - 1) / blockSize)
}
