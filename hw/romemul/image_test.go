package romemul

import (
	"testing"
)

func TestImageLoadTooLarge(t *testing.T) {
	var img Image
	if err := img.Load(make([]byte, WindowBytes+1)); err == nil {
		t.Fatal("oversized image accepted")
	}
}

func TestImageLoadZeroFillsTail(t *testing.T) {
	var img Image

	// Dirty the window, then load a shorter image over it.
	if err := img.Load(make([]byte, WindowBytes)); err != nil {
		t.Fatal(err)
	}
	for i := range img.ram {
		img.ram[i] = 0xEE
	}
	if err := img.Load([]byte{1, 2}); err != nil {
		t.Fatal(err)
	}
	if got := img.Word(2); got != 0 {
		t.Errorf("word past image end = %#x, want 0", got)
	}
}

func TestImageWord(t *testing.T) {
	var img Image
	if err := img.Load([]byte{0x34, 0x12, 0x78, 0x56}); err != nil {
		t.Fatal(err)
	}

	base := uint32(AddrHighWord) << 16

	tests := []struct {
		name string
		addr uint32
		want uint16
	}{
		{"first word", base, 0x1234},
		{"second word", base + 2, 0x5678},
		{"low bit ignored", base + 3, 0x5678},
		{"window wrap", base + WindowBytes, 0x1234},
		{"high bits masked", 0, 0x1234},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := img.Word(tt.addr); got != tt.want {
				t.Errorf("Word(%#x) = %#x, want %#x", tt.addr, got, tt.want)
			}
		})
	}
}
