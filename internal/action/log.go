package action

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	LogVersion = 1

	maxShortLen   = 1<<16 - 1
	maxContentLen = 1 << 20
	maxDataLen    = 64 << 20
	maxKeyCount   = 1 << 20
	maxEntries    = 1 << 24
)

var logMagic = [4]byte{'H', 'A', 'C', 'T'}

// Entry is one persisted action plus the id of the task it belongs to. Err is
// set on loaded entries whose format could not be decoded; the raw envelope
// is still kept in Action so that rewriting the log preserves it.
type Entry struct {
	TaskID string
	Action Action
	Err    error
}

// File is the on-disk action log. Every Store replaces the whole file through
// a synced temporary file and a rename.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

// Load reads the log. A missing file is an empty queue.
func (f *File) Load(reg Deserializers) ([]Entry, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Path: f.path, Err: err}
	}
	entries, err := Decode(bytes.NewReader(data), reg)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", f.path, err)
	}
	return entries, nil
}

func (f *File) Store(entries []Entry) error {
	if err := f.store(entries); err != nil {
		return &PersistenceError{Op: "write", Path: f.path, Err: err}
	}
	return nil
}

func (f *File) store(entries []Entry) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp-")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	keepTemp := false
	defer func() {
		if !keepTemp {
			_ = os.Remove(tmpPath)
		}
	}()
	w := bufio.NewWriter(tmp)
	if err := Encode(w, entries); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return err
	}
	keepTemp = true
	syncDir(dir)
	return nil
}

// syncDir makes the rename durable where the platform allows fsync on
// directories; elsewhere it is a no-op.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Encode writes the log envelope: header, entry count, entries.
func Encode(w io.Writer, entries []Entry) error {
	enc := &encoder{w: w}
	enc.raw(logMagic[:])
	enc.u32(LogVersion)
	enc.u32(uint32(len(entries)))
	for _, e := range entries {
		enc.entry(e)
	}
	return enc.err
}

// Decode reads a log envelope. Entries of unknown formats or future versions
// are returned with Err set; structural damage fails the whole read.
func Decode(r io.Reader, reg Deserializers) ([]Entry, error) {
	dec := &decoder{r: r}
	var magic [4]byte
	dec.raw(magic[:])
	if dec.err != nil {
		return nil, fmt.Errorf("%w: short header", ErrCorruptLog)
	}
	if magic != logMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptLog, magic[:])
	}
	version := dec.u32()
	if dec.err != nil {
		return nil, fmt.Errorf("%w: short header", ErrCorruptLog)
	}
	if version != LogVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	count := dec.u32()
	if dec.err == nil && count > maxEntries {
		return nil, fmt.Errorf("%w: %d entries", ErrCorruptLog, count)
	}
	entries := make([]Entry, 0, min(count, 1024))
	for i := uint32(0); i < count && dec.err == nil; i++ {
		e := dec.entry()
		if dec.err != nil {
			break
		}
		if reg != nil {
			decoded, err := Check(reg, e.Action)
			if err != nil {
				e.Err = err
			} else {
				e.Action = decoded
			}
		}
		entries = append(entries, e)
	}
	if dec.err != nil {
		if errors.Is(dec.err, ErrCorruptLog) {
			return nil, dec.err
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptLog, dec.err)
	}
	var trailing [1]byte
	if n, _ := io.ReadFull(r, trailing[:]); n > 0 {
		return nil, fmt.Errorf("%w: trailing data after %d entries", ErrCorruptLog, count)
	}
	return entries, nil
}

type encoder struct {
	w   io.Writer
	err error
	buf [4]byte
}

func (e *encoder) raw(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}

func (e *encoder) u8(v uint8) {
	e.buf[0] = v
	e.raw(e.buf[:1])
}

func (e *encoder) u16(v uint16) {
	binary.BigEndian.PutUint16(e.buf[:2], v)
	e.raw(e.buf[:2])
}

func (e *encoder) u32(v uint32) {
	binary.BigEndian.PutUint32(e.buf[:4], v)
	e.raw(e.buf[:4])
}

func (e *encoder) shortString(s string) {
	if len(s) > maxShortLen {
		e.fail(fmt.Errorf("string of %d bytes exceeds %d", len(s), maxShortLen))
		return
	}
	e.u16(uint16(len(s)))
	e.raw([]byte(s))
}

func (e *encoder) bytes(p []byte, limit int) {
	if len(p) > limit {
		e.fail(fmt.Errorf("field of %d bytes exceeds %d", len(p), limit))
		return
	}
	e.u32(uint32(len(p)))
	e.raw(p)
}

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) entry(en Entry) {
	a := en.Action
	e.shortString(en.TaskID)
	e.shortString(a.Format)
	e.u32(uint32(int32(a.Version)))
	e.u8(uint8(a.Type))
	e.bytes([]byte(a.ContentID), maxContentLen)
	if len(a.SubKeys) > maxKeyCount {
		e.fail(fmt.Errorf("%d sub keys exceed %d", len(a.SubKeys), maxKeyCount))
		return
	}
	e.u32(uint32(len(a.SubKeys)))
	for _, k := range a.SubKeys {
		e.u32(uint32(k.Period))
		e.u32(uint32(k.Group))
		e.u32(uint32(k.Track))
	}
	e.bytes(a.CustomData, maxDataLen)
}

type decoder struct {
	r   io.Reader
	err error
	buf [4]byte
}

func (d *decoder) raw(p []byte) {
	if d.err != nil {
		return
	}
	_, d.err = io.ReadFull(d.r, p)
}

func (d *decoder) u8() uint8 {
	d.raw(d.buf[:1])
	return d.buf[0]
}

func (d *decoder) u16() uint16 {
	d.raw(d.buf[:2])
	return binary.BigEndian.Uint16(d.buf[:2])
}

func (d *decoder) u32() uint32 {
	d.raw(d.buf[:4])
	return binary.BigEndian.Uint32(d.buf[:4])
}

func (d *decoder) shortString() string {
	n := d.u16()
	if d.err != nil {
		return ""
	}
	p := make([]byte, n)
	d.raw(p)
	return string(p)
}

func (d *decoder) bytes(limit uint32) []byte {
	n := d.u32()
	if d.err != nil {
		return nil
	}
	if n > limit {
		d.err = fmt.Errorf("%w: field length %d exceeds %d", ErrCorruptLog, n, limit)
		return nil
	}
	if n == 0 {
		return nil
	}
	p := make([]byte, n)
	d.raw(p)
	return p
}

func (d *decoder) entry() Entry {
	var e Entry
	e.TaskID = d.shortString()
	e.Action.Format = d.shortString()
	e.Action.Version = int(int32(d.u32()))
	typ := Type(d.u8())
	if d.err == nil && typ != TypeAdd && typ != TypeRemove {
		d.err = fmt.Errorf("%w: unknown action type %d", ErrCorruptLog, typ)
	}
	e.Action.Type = typ
	e.Action.ContentID = string(d.bytes(maxContentLen))
	n := d.u32()
	if d.err == nil && n > maxKeyCount {
		d.err = fmt.Errorf("%w: %d sub keys", ErrCorruptLog, n)
	}
	if d.err == nil && n > 0 {
		keys := make([]SubKey, n)
		for i := range keys {
			keys[i] = SubKey{
				Period: int32(d.u32()),
				Group:  int32(d.u32()),
				Track:  int32(d.u32()),
			}
		}
		e.Action.SubKeys = keys
	}
	e.Action.CustomData = d.bytes(maxDataLen)
	return e
}
