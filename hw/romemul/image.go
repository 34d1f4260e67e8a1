// Package romemul is the firmware side of the bus-emulation engine: it owns
// the RAM window served to the host, the DMA channel that answers captured
// addresses, and the staging of ROM images from flash into that window.
package romemul

import (
	"encoding/binary"
	"fmt"
)

const (
	// WindowBytes is the size of the cartridge address window decoded by
	// the host, and therefore of the RAM region the bus engine serves.
	WindowBytes = 128 * 1024

	// AddrHighWord is the firmware-supplied high-order word concatenated
	// with the 16 bus-visible address bits: the host maps the cartridge
	// window at AddrHighWord<<16. The window base is aligned to the window
	// size so lookups reduce to a mask.
	AddrHighWord = 0x00FA

	// StagingOffset is the flash offset (from the XIP base) at which the
	// menu stages the selected ROM image before an emulation-mode reboot.
	StagingOffset = 0x00100000
)

// Image is the RAM copy of the image currently served to the host. Bytes
// are stored pre-swapped by the Stager, so a native little-endian halfword
// read yields the word the big-endian host expects. Exactly one Image is
// active at a time and it is replaced only while the bus engine is held
// disabled.
type Image struct {
	ram [WindowBytes]byte
}

// Load copies data into the window, zero-filling the remainder. Shorter
// images are legal: the host simply reads zeros past the end.
func (img *Image) Load(data []byte) error {
	if len(data) > WindowBytes {
		return fmt.Errorf("romemul: image is %d bytes, window is %d", len(data), WindowBytes)
	}
	n := copy(img.ram[:], data)
	clear(img.ram[n:])
	return nil
}

// Word returns the 16-bit word at the given full bus address. The window
// base alignment lets the lookup mask the address instead of subtracting.
func (img *Image) Word(addr uint32) uint16 {
	off := addr & (WindowBytes - 1) &^ 1
	return binary.LittleEndian.Uint16(img.ram[off:])
}
