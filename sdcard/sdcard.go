// Package sdcard gives the firmware its view of the microSD card, backed by
// a directory on the local filesystem. The card holds the ROM images the
// menu can stage for emulation.
package sdcard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"romcart/emu/log"
)

// ErrMissing reports that no card is inserted. The device cannot proceed
// past setup initialization without one.
var ErrMissing = errors.New("sdcard: no card detected")

// MaxROMs bounds the scan, matching the firmware's fixed ROM table.
const MaxROMs = 100

// Only files carrying one of these extensions are eligible ROM images.
var romExts = []string{".img", ".rom", ".stc", ".bin"}

// Eligible reports whether filename has one of the allowed ROM image
// extensions, compared case-insensitively.
func Eligible(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || ext == filename {
		return false
	}
	for _, e := range romExts {
		if ext == e {
			return true
		}
	}
	return false
}

type ROM struct {
	Filename string
	Path     string
	Size     int64
}

type Card struct {
	root string
}

// Mount checks for card presence and returns the mounted card. root is the
// directory standing in for the card's filesystem.
func Mount(root string) (*Card, error) {
	fi, err := os.Stat(root)
	if err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w (looked for %s)", ErrMissing, root)
	}
	log.ModSDCard.InfoZ("card mounted").String("root", root).End()
	return &Card{root: root}, nil
}

// Probe reports whether a card is currently present at root, without
// mounting it. The setup error loop uses it to detect a late insertion.
func Probe(root string) bool {
	fi, err := os.Stat(root)
	return err == nil && fi.IsDir()
}

func (c *Card) Root() string { return c.root }

// ScanROMs lists the eligible ROM images inside folder, sorted
// lexicographically without regard to case.
func (c *Card) ScanROMs(folder string) ([]ROM, error) {
	dir := filepath.Join(c.root, folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sdcard: scan %s: %w", dir, err)
	}

	var roms []ROM
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !Eligible(name) {
			continue
		}
		if len(roms) == MaxROMs {
			log.ModSDCard.WarnZ("maximum ROM count reached").Int("max", MaxROMs).End()
			break
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		roms = append(roms, ROM{
			Filename: name,
			Path:     filepath.Join(dir, name),
			Size:     fi.Size(),
		})
	}

	sort.Slice(roms, func(i, j int) bool {
		return strings.ToLower(roms[i].Filename) < strings.ToLower(roms[j].Filename)
	})
	log.ModSDCard.InfoZ("ROM scan complete").Int("count", len(roms)).End()
	return roms, nil
}

// Pages returns the number of listing pages needed for n entries.
func Pages(n, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (n + perPage - 1) / perPage
}
