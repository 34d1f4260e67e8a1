package romemul

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"romcart/hw/flash"
)

func writeTempROM(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.rom")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// patternROM returns n bytes that never look like a legacy header and make
// byte-level mismatches easy to locate.
func patternROM(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i%251) + 1
	}
	return data
}

// swapped returns data padded with zeros to the next page boundary, with
// every 16-bit word byte-swapped: the exact layout the stager commits.
func swapped(data []byte) []byte {
	padded := (len(data) + flash.PageSize - 1) / flash.PageSize * flash.PageSize
	out := make([]byte, padded)
	copy(out, data)
	SwapBytes16(out)
	return out
}

func TestHasLegacyHeader(t *testing.T) {
	zeros := []byte{0, 0, 0, 0}

	tests := []struct {
		name   string
		size   int64
		first4 []byte
		want   bool
	}{
		{"header present", 4 + 2*flash.SectorSize, zeros, true},
		{"nonzero start", 4 + 2*flash.SectorSize, []byte{1, 0, 0, 0}, false},
		{"size not 4+sectors", 100, zeros, false},
		{"exact sectors", 2 * flash.SectorSize, zeros, false},
		{"only the header", 4, zeros, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasLegacyHeader(tt.size, tt.first4); got != tt.want {
				t.Errorf("HasLegacyHeader(%d, %v) = %v, want %v", tt.size, tt.first4, got, tt.want)
			}
		})
	}
}

func TestPadToPage(t *testing.T) {
	buf := bytes.Repeat([]byte{0xAA}, flash.SectorSize)

	if got := PadToPage(buf, flash.PageSize); got != flash.PageSize {
		t.Errorf("exact page padded to %d", got)
	}

	n := flash.PageSize + 10
	padded := PadToPage(buf, n)
	if padded != 2*flash.PageSize {
		t.Fatalf("padded length = %d, want %d", padded, 2*flash.PageSize)
	}
	for i := n; i < padded; i++ {
		if buf[i] != 0x00 {
			t.Fatalf("pad byte %d = %#x, want 0x00", i, buf[i])
		}
	}
	if buf[n-1] != 0xAA {
		t.Error("payload byte overwritten by padding")
	}
}

func TestSwapBytes16(t *testing.T) {
	p := []byte{1, 2, 3, 4, 5}
	SwapBytes16(p)
	if want := []byte{2, 1, 4, 3, 5}; !bytes.Equal(p, want) {
		t.Fatalf("swapped to %v, want %v", p, want)
	}
	// Involution: a second swap restores the input.
	SwapBytes16(p)
	if want := []byte{1, 2, 3, 4, 5}; !bytes.Equal(p, want) {
		t.Fatalf("double swap gave %v, want %v", p, want)
	}
}

func TestProgramFile(t *testing.T) {
	// Three chunks: two full sectors plus a partial one, so both the
	// page padding and the contiguity across chunks are exercised.
	rom := patternROM(2*flash.SectorSize + 300)
	path := writeTempROM(t, rom)

	f := flash.New(2 * 1024 * 1024)
	s := &Stager{Flash: f}
	if err := s.ProgramFile(path, StagingOffset); err != nil {
		t.Fatal(err)
	}

	want := swapped(rom)
	got, err := f.Window(StagingOffset, len(want))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("flash differs at offset %d: got %#x, want %#x", i, got[i], want[i])
			}
		}
	}
}

func TestProgramFileContiguousSectors(t *testing.T) {
	// 3 exact sectors land in exactly 3 contiguous sectors; the next one
	// stays erased.
	rom := patternROM(3 * flash.SectorSize)
	path := writeTempROM(t, rom)

	f := flash.New(2 * 1024 * 1024)
	s := &Stager{Flash: f}
	if err := s.ProgramFile(path, StagingOffset); err != nil {
		t.Fatal(err)
	}

	got, err := f.Window(StagingOffset, 4*flash.SectorSize)
	if err != nil {
		t.Fatal(err)
	}
	want := swapped(rom)
	if !bytes.Equal(got[:3*flash.SectorSize], want) {
		t.Error("three sectors not programmed contiguously")
	}
	for i, b := range got[3*flash.SectorSize:] {
		if b != 0xFF {
			t.Fatalf("byte %d past the image was programmed", 3*flash.SectorSize+i)
		}
	}
}

func TestProgramFileSkipsLegacyHeader(t *testing.T) {
	payload := patternROM(2 * flash.SectorSize)
	rom := append([]byte{0, 0, 0, 0}, payload...)
	path := writeTempROM(t, rom)

	f := flash.New(2 * 1024 * 1024)
	s := &Stager{Flash: f}
	if err := s.ProgramFile(path, StagingOffset); err != nil {
		t.Fatal(err)
	}

	want := swapped(payload)
	got, err := f.Window(StagingOffset, len(want))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Error("staged payload should not include the 4-byte header")
	}
}

func TestProgramFileKeepsNonZeroHeader(t *testing.T) {
	// Same suspicious size, but the first bytes are not zero: nothing is
	// skipped.
	rom := patternROM(4 + 2*flash.SectorSize)
	path := writeTempROM(t, rom)

	f := flash.New(2 * 1024 * 1024)
	s := &Stager{Flash: f}
	if err := s.ProgramFile(path, StagingOffset); err != nil {
		t.Fatal(err)
	}

	want := swapped(rom)
	got, err := f.Window(StagingOffset, len(want))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Error("non-zero leading bytes must be staged, not skipped")
	}
}

func TestProgramFileUnalignedDest(t *testing.T) {
	path := writeTempROM(t, patternROM(flash.SectorSize))

	f := flash.New(2 * 1024 * 1024)
	s := &Stager{Flash: f}
	err := s.ProgramFile(path, StagingOffset+100)
	if !errors.Is(err, flash.ErrAlignment) {
		t.Fatalf("got %v, want %v", err, flash.ErrAlignment)
	}
}

func TestProgramFileWhileArmedPanics(t *testing.T) {
	path := writeTempROM(t, patternROM(flash.SectorSize))

	f := flash.New(2 * 1024 * 1024)
	s := &Stager{Flash: f, Armed: func() bool { return true }}

	defer func() {
		if recover() == nil {
			t.Fatal("staging with an armed bus engine must panic")
		}
	}()
	_ = s.ProgramFile(path, StagingOffset)
}

func TestProgramFileMissing(t *testing.T) {
	f := flash.New(2 * 1024 * 1024)
	s := &Stager{Flash: f}
	if err := s.ProgramFile(filepath.Join(t.TempDir(), "nope.rom"), StagingOffset); err == nil {
		t.Fatal("missing file must fail")
	}
}
