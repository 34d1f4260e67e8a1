package log

import (
	"sync"
	"time"

	"gopkg.in/Sirupsen/logrus.v0"
)

type Level uint8

// Levels mirror logrus severity ordering (lower is more severe).
const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

// LogContext allows a subsystem to attach fields to every log entry (for
// instance the current scheduler tick). Contexts are consulted at emit time.
type LogContext interface {
	AddLogContext(entry *EntryZ)
}

var contexts []LogContext

func AddContext(ctx LogContext) {
	contexts = append(contexts, ctx)
}

func init() {
	// Severity filtering is performed by the per-module masks, not by
	// logrus, which must therefore let everything through.
	logrus.SetLevel(logrus.DebugLevel)
}

// EntryZ is a log entry builder designed for the hardware timelines: fields
// are accumulated in a fixed buffer and nothing is allocated nor formatted
// until End() decides the entry is actually emitted. A nil *EntryZ (module
// disabled) makes the whole chain a no-op.
type EntryZ struct {
	mod   Module
	lvl   Level
	msg   string
	zfbuf [16]ZField
	zfidx int
}

var entryZPool = sync.Pool{
	New: func() any { return new(EntryZ) },
}

func NewEntryZ() *EntryZ {
	e := entryZPool.Get().(*EntryZ)
	e.zfidx = 0
	return e
}

func (e *EntryZ) add(f ZField) *EntryZ {
	if e == nil {
		return nil
	}
	if e.zfidx < len(e.zfbuf) {
		e.zfbuf[e.zfidx] = f
		e.zfidx++
	}
	return e
}

func (e *EntryZ) String(key, val string) *EntryZ {
	return e.add(ZField{Type: FieldTypeString, Key: key, String: val})
}

func (e *EntryZ) Bool(key string, val bool) *EntryZ {
	return e.add(ZField{Type: FieldTypeBool, Key: key, Boolean: val})
}

func (e *EntryZ) Int(key string, val int) *EntryZ {
	return e.add(ZField{Type: FieldTypeInt, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Uint8(key string, val uint8) *EntryZ {
	return e.add(ZField{Type: FieldTypeUint, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Uint16(key string, val uint16) *EntryZ {
	return e.add(ZField{Type: FieldTypeUint, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Uint32(key string, val uint32) *EntryZ {
	return e.add(ZField{Type: FieldTypeUint, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Hex8(key string, val uint8) *EntryZ {
	return e.add(ZField{Type: FieldTypeHex8, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Hex16(key string, val uint16) *EntryZ {
	return e.add(ZField{Type: FieldTypeHex16, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Hex32(key string, val uint32) *EntryZ {
	return e.add(ZField{Type: FieldTypeHex32, Key: key, Integer: uint64(val)})
}

func (e *EntryZ) Error(key string, err error) *EntryZ {
	return e.add(ZField{Type: FieldTypeError, Key: key, Error: err})
}

func (e *EntryZ) Duration(key string, d time.Duration) *EntryZ {
	return e.add(ZField{Type: FieldTypeDuration, Key: key, Duration: d})
}

func (e *EntryZ) Stringer(key string, val any) *EntryZ {
	return e.add(ZField{Type: FieldTypeStringer, Key: key, Interface: val})
}

func (e *EntryZ) Blob(key string, val []byte) *EntryZ {
	return e.add(ZField{Type: FieldTypeBlob, Key: key, Blob: val})
}

// End emits the entry and recycles it. The entry must not be used afterwards.
func (e *EntryZ) End() {
	if e == nil {
		return
	}

	for _, c := range contexts {
		c.AddLogContext(e)
	}

	fields := make(logrus.Fields, e.zfidx+1)
	fields["_mod"] = modNames[e.mod]
	for i := range e.zfbuf[:e.zfidx] {
		fields[e.zfbuf[i].Key] = e.zfbuf[i].Value()
	}

	entry := logrus.StandardLogger().WithFields(fields)
	switch e.lvl {
	case PanicLevel:
		entry.Panic(e.msg)
	case FatalLevel:
		entry.Fatal(e.msg)
	case ErrorLevel:
		entry.Error(e.msg)
	case WarnLevel:
		entry.Warn(e.msg)
	case InfoLevel:
		entry.Info(e.msg)
	case DebugLevel:
		entry.Debug(e.msg)
	}

	entryZPool.Put(e)
}
