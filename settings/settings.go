// Package settings is the persisted key/value configuration store. Values
// are kept as strings, the way the device firmware settings block stores
// them, with typed accessors on top. The backing file is a flat JSON object.
package settings

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/go-faster/jx"

	"romcart/emu/log"
)

// Well-known keys.
const (
	KeyMode       = "ROM_MODE"     // operating mode code (0, 1 or 255)
	KeySelected   = "ROM_SELECTED" // filename of the currently selected ROM
	KeyFolder     = "ROMS_FOLDER"  // folder scanned for ROM images
	KeyWiFiMode   = "WIFI_MODE"
	KeyCatalogURL = "CATALOG_URL"
)

type Store struct {
	path string

	mu      sync.Mutex
	entries map[string]string
}

// Open loads the store from path. A missing file yields an empty store:
// every key falls back to its caller-side default.
func Open(path string) (*Store, error) {
	s := &Store{path: path, entries: make(map[string]string)}

	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}

	d := jx.DecodeBytes(buf)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		v, err := d.Str()
		if err != nil {
			return err
		}
		s.entries[key] = v
		return nil
	}); err != nil {
		return nil, fmt.Errorf("settings: decode %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) String(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *Store) Int(key string) (int, bool) {
	v, ok := s.String(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.ModStore.WarnZ("non-integer value").String("key", key).String("value", v).End()
		return 0, false
	}
	return n, true
}

func (s *Store) Bool(key string) (bool, bool) {
	v, ok := s.String(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func (s *Store) PutString(key, value string) {
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
}

func (s *Store) PutInt(key string, value int) {
	s.PutString(key, strconv.Itoa(value))
}

func (s *Store) PutBool(key string, value bool) {
	s.PutString(key, strconv.FormatBool(value))
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Save writes the store back to its file.
func (s *Store) Save() error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var e jx.Encoder
	e.ObjStart()
	for _, k := range keys {
		e.FieldStart(k)
		e.Str(s.entries[k])
	}
	e.ObjEnd()
	s.mu.Unlock()

	if err := os.WriteFile(s.path, e.Bytes(), 0644); err != nil {
		return fmt.Errorf("settings: write %s: %w", s.path, err)
	}
	return nil
}

// Erase clears every entry and removes the backing file (factory reset).
func (s *Store) Erase() error {
	s.mu.Lock()
	clear(s.entries)
	s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("settings: erase %s: %w", s.path, err)
	}
	log.ModStore.InfoZ("settings erased").String("path", s.path).End()
	return nil
}
