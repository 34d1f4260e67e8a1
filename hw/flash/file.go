package flash

import (
	"fmt"
	"os"
)

// LoadFile fills the flash from a raw image file, as if the chip had been
// programmed in a previous session. A missing file leaves the flash erased.
func (f *Flash) LoadFile(path string) error {
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("flash: load image: %w", err)
	}
	if len(buf) > len(f.data) {
		return fmt.Errorf("flash: image file %s (%d bytes) larger than flash (%d bytes)",
			path, len(buf), len(f.data))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	copy(f.data, buf)
	return nil
}

// SaveFile persists the whole flash content to a raw image file.
func (f *Flash) SaveFile(path string) error {
	f.mu.Lock()
	buf := make([]byte, len(f.data))
	copy(buf, f.data)
	f.mu.Unlock()

	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("flash: save image: %w", err)
	}
	return nil
}
