package cache

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/tanq16/hoard/internal/action"
)

func newTestCache(t *testing.T) *FileCache {
	t.Helper()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache error: %v", err)
	}
	return c
}

func TestFileCacheWriteCommitRead(t *testing.T) {
	c := newTestCache(t)
	key := Key{ContentID: "https://example.com/a.m3u8", SubKey: action.SubKey{Track: 1}, Segment: 3}

	if n, committed, err := c.Length(key); err != nil || n != 0 || committed {
		t.Fatalf("Length on empty cache = %d, %v, %v", n, committed, err)
	}
	if _, err := c.WriteAt(key, []byte("hello "), 0); err != nil {
		t.Fatalf("WriteAt error: %v", err)
	}
	if _, err := c.ReadAt(key, make([]byte, 1), 0); !errors.Is(err, ErrNotCached) {
		t.Fatalf("ReadAt before commit error = %v, want ErrNotCached", err)
	}
	// resume after the bytes already held
	n, _, _ := c.Length(key)
	if _, err := WriterAt(c, key).WriteAt([]byte("world"), n); err != nil {
		t.Fatalf("WriteAt error: %v", err)
	}
	if err := c.Commit(key); err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if err := c.Commit(key); err != nil {
		t.Fatalf("second Commit error: %v", err)
	}
	n, committed, err := c.Length(key)
	if err != nil || n != 11 || !committed {
		t.Fatalf("Length after commit = %d, %v, %v", n, committed, err)
	}
	buf := make([]byte, 11)
	if _, err := c.ReadAt(key, buf, 0); err != nil && err != io.EOF {
		t.Fatalf("ReadAt error: %v", err)
	}
	if !bytes.Equal(buf, []byte("hello world")) {
		t.Errorf("ReadAt = %q", buf)
	}
}

func TestFileCacheReset(t *testing.T) {
	c := newTestCache(t)
	key := Key{ContentID: "c", Segment: 0}
	c.WriteAt(key, []byte("partial"), 0)
	if err := c.Reset(key); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if n, _, _ := c.Length(key); n != 0 {
		t.Errorf("Length after Reset = %d, want 0", n)
	}
	if err := c.Reset(key); err != nil {
		t.Errorf("Reset of missing segment error: %v", err)
	}
}

func TestFileCacheEmptySegmentCommit(t *testing.T) {
	c := newTestCache(t)
	key := Key{ContentID: "c", Segment: 7}
	if err := c.Commit(key); err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if n, committed, _ := c.Length(key); n != 0 || !committed {
		t.Errorf("Length = %d, %v, want committed empty segment", n, committed)
	}
}

func TestFileCacheRemoveAndUsage(t *testing.T) {
	c := newTestCache(t)
	for i := range 3 {
		key := Key{ContentID: "a", SubKey: action.SubKey{Track: int32(i)}, Segment: i}
		c.WriteAt(key, bytes.Repeat([]byte{1}, 10), 0)
		c.Commit(key)
	}
	c.WriteAt(Key{ContentID: "b"}, []byte("keep"), 0)

	if n, err := c.Usage("a"); err != nil || n != 30 {
		t.Fatalf("Usage(a) = %d, %v, want 30", n, err)
	}
	if err := c.Remove("a"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if err := c.Remove("a"); err != nil {
		t.Fatalf("second Remove error: %v", err)
	}
	if n, err := c.Usage("a"); err != nil || n != 0 {
		t.Errorf("Usage(a) after remove = %d, %v", n, err)
	}
	if n, _ := c.Usage("b"); n != 4 {
		t.Errorf("Usage(b) = %d, want 4", n)
	}
}
