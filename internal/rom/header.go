package rom

import (
	"encoding/binary"
	"errors"
	"strings"
)

const headerEnd = 0x014F

var ErrShortHeader = errors.New("ROM too small to contain header")

// Header is the decoded cartridge header at 0x0100-0x014F.
type Header struct {
	Title          string
	CGBFlag        byte // 0x0143
	CartType       byte // 0x0147
	ROMSizeCode    byte // 0x0148
	RAMSizeCode    byte // 0x0149
	HeaderChecksum byte // 0x014D
	GlobalChecksum uint16

	ROMSizeBytes int
	RAMSizeBytes int
	CartTypeStr  string
	Battery      bool
}

// CGB reports whether the cartridge supports Game Boy Color features.
func (h *Header) CGB() bool { return h.CGBFlag&0x80 != 0 }

func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < headerEnd+1 {
		return nil, ErrShortHeader
	}
	// The last title byte doubles as the CGB flag on colour carts.
	titleEnd := 0x0144
	if rom[0x0143]&0x80 != 0 {
		titleEnd = 0x0143
	}
	title := strings.TrimRight(string(rom[0x0134:titleEnd]), "\x00")

	h := &Header{
		Title:          title,
		CGBFlag:        rom[0x0143],
		CartType:       rom[0x0147],
		ROMSizeCode:    rom[0x0148],
		RAMSizeCode:    rom[0x0149],
		HeaderChecksum: rom[0x014D],
		GlobalChecksum: binary.BigEndian.Uint16(rom[0x014E:0x0150]),
	}
	h.ROMSizeBytes = decodeROMSize(h.ROMSizeCode)
	h.RAMSizeBytes = decodeRAMSize(h.CartType, h.RAMSizeCode)
	h.CartTypeStr = cartTypeString(h.CartType)
	h.Battery = hasBattery(h.CartType)
	return h, nil
}

func HeaderChecksumOK(rom []byte) bool {
	if len(rom) < 0x014E {
		return false
	}
	var sum byte
	for addr := 0x0134; addr <= 0x014C; addr++ {
		sum = sum - rom[addr] - 1
	}
	return sum == rom[0x014D]
}

func decodeROMSize(code byte) int {
	switch {
	case code <= 0x08:
		return (32 * 1024) << code
	case code == 0x52:
		return 1152 * 1024
	case code == 0x53:
		return 1280 * 1024
	case code == 0x54:
		return 1536 * 1024
	}
	return 0
}

func decodeRAMSize(cartType, code byte) int {
	// MBC2 has 512 half-bytes built in and reports no external RAM.
	if cartType == 0x05 || cartType == 0x06 {
		return 512
	}
	switch code {
	case 0x02:
		return 8 * 1024
	case 0x03:
		return 32 * 1024
	case 0x04:
		return 128 * 1024
	case 0x05:
		return 64 * 1024
	}
	return 0
}

func hasBattery(cartType byte) bool {
	switch cartType {
	case 0x03, 0x06, 0x09, 0x0D, 0x0F, 0x10, 0x13, 0x1B, 0x1E, 0x22, 0xFF:
		return true
	}
	return false
}

func cartTypeString(code byte) string {
	switch code {
	case 0x00:
		return "ROM ONLY"
	case 0x01, 0x02, 0x03:
		return "MBC1"
	case 0x05, 0x06:
		return "MBC2"
	case 0x08, 0x09:
		return "ROM+RAM"
	case 0x0B, 0x0C, 0x0D:
		return "MMM01"
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		return "MBC3"
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return "MBC5"
	case 0x20:
		return "MBC6"
	case 0x22:
		return "MBC7"
	case 0xFC:
		return "POCKET CAMERA"
	case 0xFE:
		return "HuC3"
	case 0xFF:
		return "HuC1"
	default:
		return "Other/unknown"
	}
}
