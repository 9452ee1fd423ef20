package action

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type testFormat struct {
	name    string
	version int
}

func (f testFormat) Format() string { return f.name }
func (f testFormat) Version() int   { return f.version }
func (f testFormat) Decode(a Action) (Action, error) {
	return a, nil
}

type testRegistry map[string]Deserializer

func (r testRegistry) Deserializer(format string) (Deserializer, bool) {
	d, ok := r[format]
	return d, ok
}

func newTestRegistry() testRegistry {
	return testRegistry{
		"hls": testFormat{name: "hls", version: 1},
		"s3":  testFormat{name: "s3", version: 2},
	}
}

func sampleEntries() []Entry {
	return []Entry{
		{TaskID: "t1", Action: NewAdd("hls", 1, "https://example.com/a.m3u8", keys(SubKey{0, 0, 1}, SubKey{0, 1, 0}), nil)},
		{TaskID: "t2", Action: NewRemove("s3", 2, "s3://bucket/b", []byte{0x00, 0xff, 0x10})},
		{TaskID: "t3", Action: NewAdd("hls", 1, "https://example.com/c.m3u8", nil, []byte("payload"))},
		{TaskID: "t4", Action: NewAdd("s3", 1, "s3://bucket/d", keys(SubKey{2, 3, 4}), []byte{})},
	}
}

func TestLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.bin")
	f := NewFile(path)
	want := sampleEntries()
	if err := f.Store(want); err != nil {
		t.Fatalf("Store error: %v", err)
	}
	got, err := f.Load(newTestRegistry())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("loaded %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].TaskID != want[i].TaskID {
			t.Fatalf("entry %d task id = %q, want %q", i, got[i].TaskID, want[i].TaskID)
		}
		if got[i].Err != nil {
			t.Fatalf("entry %d unexpected error: %v", i, got[i].Err)
		}
		if !got[i].Action.Equal(want[i].Action) {
			t.Fatalf("entry %d = %v, want %v", i, got[i].Action, want[i].Action)
		}
		if !bytes.Equal(got[i].Action.CustomData, want[i].Action.CustomData) {
			t.Fatalf("entry %d custom data = %x, want %x", i, got[i].Action.CustomData, want[i].Action.CustomData)
		}
	}
}

func TestLogReencodeIsByteIdentical(t *testing.T) {
	var first bytes.Buffer
	if err := Encode(&first, sampleEntries()); err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	entries, err := Decode(bytes.NewReader(first.Bytes()), newTestRegistry())
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	var second bytes.Buffer
	if err := Encode(&second, entries); err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatalf("re-encoded log differs from original")
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	entries, err := NewFile(filepath.Join(t.TempDir(), "none.bin")).Load(newTestRegistry())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestDecodeUnsupportedLogVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(logMagic[:])
	_ = binary.Write(&buf, binary.BigEndian, uint32(LogVersion+1))
	_ = binary.Write(&buf, binary.BigEndian, uint32(0))
	_, err := Decode(&buf, newTestRegistry())
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("Decode error = %v, want ErrUnsupportedVersion", err)
	}
}

func TestDecodeBadMagic(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("NOPE\x00\x00\x00\x01\x00\x00\x00\x00")), nil)
	if !errors.Is(err, ErrCorruptLog) {
		t.Fatalf("Decode error = %v, want ErrCorruptLog", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleEntries()); err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	data := buf.Bytes()
	_, err := Decode(bytes.NewReader(data[:len(data)-3]), newTestRegistry())
	if !errors.Is(err, ErrCorruptLog) {
		t.Fatalf("Decode error = %v, want ErrCorruptLog", err)
	}
}

func TestDecodeKeepsUnknownFormatEntries(t *testing.T) {
	entries := []Entry{
		{TaskID: "a", Action: NewAdd("dash", 1, "https://example.com/a.mpd", nil, []byte("x"))},
		{TaskID: "b", Action: NewAdd("hls", 5, "https://example.com/b.m3u8", nil, nil)},
		{TaskID: "c", Action: NewAdd("hls", 1, "https://example.com/c.m3u8", nil, nil)},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, entries); err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	got, err := Decode(&buf, newTestRegistry())
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("decoded %d entries, want 3", len(got))
	}
	var ufe *UnsupportedFormatError
	if !errors.As(got[0].Err, &ufe) || ufe.Format != "dash" {
		t.Fatalf("entry 0 error = %v, want unsupported dash format", got[0].Err)
	}
	if !errors.Is(got[1].Err, ErrUnsupportedFormat) {
		t.Fatalf("entry 1 error = %v, want unsupported version", got[1].Err)
	}
	if got[2].Err != nil {
		t.Fatalf("entry 2 unexpected error: %v", got[2].Err)
	}
	if !got[0].Action.Equal(entries[0].Action) {
		t.Fatalf("unsupported entry lost its raw action: %v", got[0].Action)
	}
}

func TestStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "actions.bin"))
	for range 3 {
		if err := f.Store(sampleEntries()); err != nil {
			t.Fatalf("Store error: %v", err)
		}
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(files) != 1 || files[0].Name() != "actions.bin" {
		names := []string{}
		for _, f := range files {
			names = append(names, f.Name())
		}
		t.Fatalf("unexpected files after store: %v", names)
	}
}

func TestStoreFailureIsPersistenceError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	err := NewFile(filepath.Join(blocker, "actions.bin")).Store(sampleEntries())
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("Store error = %v, want *PersistenceError", err)
	}
}
