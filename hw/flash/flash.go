// Package flash models the on-board NOR flash: erasable in sectors, further
// divided into programmable pages, memory-mapped at an execute-in-place base
// address. Destinations are expressed as offsets from that base.
package flash

import (
	"errors"
	"fmt"
	"sync"

	"romcart/emu/log"
)

const (
	SectorSize = 4096 // erase granularity
	PageSize   = 256  // program granularity

	// XIPBase is the address at which the flash is mapped into the
	// microcontroller address space.
	XIPBase = 0x10000000
)

var (
	ErrAlignment  = errors.New("flash: destination not aligned")
	ErrOutOfRange = errors.New("flash: access beyond flash size")
)

// ProgramError reports an erase/program verification failure. The flash
// content up to the failing page is not rolled back.
type ProgramError struct {
	Offset uint32
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("flash: program verification failed at offset %#x", e.Offset)
}

// Flash is the flash chip. Erase and Program serialize on an internal lock;
// EraseAndProgram holds it across the pair, the software analogue of running
// the pair with interrupts disabled (the controller shares its address space
// with executing code, so nothing else may touch it in between).
type Flash struct {
	mu   sync.Mutex
	data []byte

	// Guard, when set, is consulted before any erase or program and must
	// panic or return an error if the operation is illegal in the current
	// device state (e.g. the bus engine is armed).
	Guard func() error
}

func New(size int) *Flash {
	if size%SectorSize != 0 {
		panic("flash: size not a multiple of the sector size")
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = 0xFF
	}
	return &Flash{data: data}
}

func (f *Flash) Size() int { return len(f.data) }

// Read copies flash content at offset into p.
func (f *Flash) Read(offset uint32, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(offset)+len(p) > len(f.data) {
		return ErrOutOfRange
	}
	copy(p, f.data[offset:])
	return nil
}

// Window returns a copy of the flash region [offset, offset+size). It is
// how firmware reads a staged image back for copying into RAM.
func (f *Flash) Window(offset uint32, size int) ([]byte, error) {
	p := make([]byte, size)
	if err := f.Read(offset, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Erase resets [offset, offset+length) to 0xFF. Both bounds must be
// sector-aligned.
func (f *Flash) Erase(offset, length uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.erase(offset, length)
}

// Program writes data at offset and verifies it. Offset must be
// page-aligned and data a multiple of the page size.
func (f *Flash) Program(offset uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.program(offset, data)
}

// EraseAndProgram erases the sectors covering len(data) bytes at offset and
// programs data, atomically with respect to any other flash access.
func (f *Flash) EraseAndProgram(offset uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	erlen := (uint32(len(data)) + SectorSize - 1) / SectorSize * SectorSize
	if err := f.erase(offset&^(SectorSize-1), erlen); err != nil {
		return err
	}
	return f.program(offset, data)
}

func (f *Flash) erase(offset, length uint32) error {
	if err := f.checkGuard(); err != nil {
		return err
	}
	if offset%SectorSize != 0 || length%SectorSize != 0 {
		return fmt.Errorf("%w: erase offset %#x length %#x", ErrAlignment, offset, length)
	}
	if int(offset+length) > len(f.data) {
		return ErrOutOfRange
	}
	for i := offset; i < offset+length; i++ {
		f.data[i] = 0xFF
	}
	log.ModFlash.DebugZ("sector erase").
		Hex32("offset", offset).
		Uint32("length", length).
		End()
	return nil
}

func (f *Flash) program(offset uint32, data []byte) error {
	if err := f.checkGuard(); err != nil {
		return err
	}
	if offset%PageSize != 0 || len(data)%PageSize != 0 {
		return fmt.Errorf("%w: program offset %#x length %#x", ErrAlignment, offset, len(data))
	}
	if int(offset)+len(data) > len(f.data) {
		return ErrOutOfRange
	}

	// NOR programming can only clear bits. Erased cells accept anything,
	// so this only bites when programming over non-erased content.
	for i, b := range data {
		f.data[int(offset)+i] &= b
	}
	for i, b := range data {
		if f.data[int(offset)+i] != b {
			return &ProgramError{Offset: offset + uint32(i)}
		}
	}
	log.ModFlash.DebugZ("page program").
		Hex32("offset", offset).
		Int("length", len(data)).
		End()
	return nil
}

func (f *Flash) checkGuard() error {
	if f.Guard != nil {
		return f.Guard()
	}
	return nil
}
