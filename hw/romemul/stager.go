package romemul

import (
	"fmt"
	"io"
	"os"

	"romcart/emu/log"
	"romcart/hw/flash"
)

// fillByte pads the tail of a short chunk up to the page boundary.
const fillByte = 0x00

// Stager streams a ROM file into flash, one sector-sized chunk at a time.
// It must only run before the bus engine is armed: flash programming blocks
// every other flash access, including the staged region the engine serves.
type Stager struct {
	Flash *flash.Flash

	// Armed reports the bus engine state. Programming flash while armed is
	// an unrecoverable logic error.
	Armed func() bool
}

// ProgramFile copies the file at path into flash at destOffset (an offset
// from the XIP base, sector-aligned). On a read error the sectors already
// programmed are left in place: there is no rollback, recovery is to stage
// the image again.
func (s *Stager) ProgramFile(path string, destOffset uint32) error {
	if s.Armed != nil && s.Armed() {
		panic("romemul: flash staging attempted while the bus engine is armed")
	}
	if destOffset%flash.SectorSize != 0 {
		return fmt.Errorf("%w: staging destination %#x", flash.ErrAlignment, destOffset)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("stager: open image: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stager: stat image: %w", err)
	}
	size := st.Size()
	log.ModFlash.InfoZ("staging image to flash").
		String("path", path).
		Hex32("dest", destOffset).
		Int("bytes", int(size)).
		End()

	// Images exported by certain legacy cartridge tools carry a 4-byte
	// all-zero header otherwise absent. Sniff and skip it so the payload
	// lands sector-aligned. Keep this predicate exactly as is: it is a
	// heuristic with a known (accepted) false-positive rate.
	if size > 4 && (size-4)%flash.SectorSize == 0 {
		var hdr [4]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			return fmt.Errorf("stager: read image header: %w", err)
		}
		if HasLegacyHeader(size, hdr[:]) {
			log.ModFlash.InfoZ("skipping 4-byte legacy cartridge header").End()
		} else {
			if _, err := f.Seek(-4, io.SeekCurrent); err != nil {
				return fmt.Errorf("stager: rewind image header: %w", err)
			}
		}
	}

	buf := make([]byte, flash.SectorSize)
	offset := destOffset
	for {
		n, err := io.ReadFull(f, buf)
		if n == 0 {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("stager: read image: %w", err)
		}
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return fmt.Errorf("stager: read image: %w", err)
		}

		chunk := buf[:PadToPage(buf, n)]
		SwapBytes16(chunk)
		if perr := s.Flash.EraseAndProgram(offset, chunk); perr != nil {
			return perr
		}

		// Advance by the bytes actually read, not the padded length, so
		// successive sectors stay contiguous with the source file.
		offset += uint32(n)

		if err != nil { // EOF or short read: that was the last chunk
			break
		}
	}
	return nil
}

// HasLegacyHeader reports whether a file of the given size starting with
// first4 is a legacy cartridge image whose 4-byte header must be skipped.
func HasLegacyHeader(size int64, first4 []byte) bool {
	if size <= 4 || (size-4)%flash.SectorSize != 0 {
		return false
	}
	return first4[0] == 0 && first4[1] == 0 && first4[2] == 0 && first4[3] == 0
}

// PadToPage pads buf[n:] with the fill byte up to the next page boundary
// and returns the padded length. buf must have room for it.
func PadToPage(buf []byte, n int) int {
	padded := (n + flash.PageSize - 1) / flash.PageSize * flash.PageSize
	for i := n; i < padded; i++ {
		buf[i] = fillByte
	}
	return padded
}

// SwapBytes16 swaps the two bytes of every 16-bit word in p, converting
// between the little-endian file layout and the big-endian bus layout.
// Applying it twice restores the input.
func SwapBytes16(p []byte) {
	for i := 0; i+1 < len(p); i += 2 {
		p[i], p[i+1] = p[i+1], p[i]
	}
}
