package cache

import (
	"errors"
	"fmt"
	"io"

	"github.com/tanq16/hoard/internal/action"
)

var ErrNotCached = errors.New("segment not cached")

// Key addresses one segment of one representation of a content item.
type Key struct {
	ContentID string
	SubKey    action.SubKey
	Segment   int
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%s/%d", k.ContentID, k.SubKey, k.Segment)
}

// Cache stores downloaded segments. A segment is written in place until it
// is committed; only committed segments can be read back.
type Cache interface {
	// Length returns the bytes held for key and whether the segment is committed.
	Length(key Key) (int64, bool, error)
	WriteAt(key Key, p []byte, off int64) (int, error)
	// Reset discards uncommitted data for key.
	Reset(key Key) error
	Commit(key Key) error
	ReadAt(key Key, p []byte, off int64) (int, error)
	// Remove deletes everything stored for contentID. Removing absent content is not an error.
	Remove(contentID string) error
	Usage(contentID string) (int64, error)
}

// WriterAt adapts one cache segment to io.WriterAt.
func WriterAt(c Cache, key Key) io.WriterAt {
	return segmentWriter{cache: c, key: key}
}

type segmentWriter struct {
	cache Cache
	key   Key
}

func (w segmentWriter) WriteAt(p []byte, off int64) (int, error) {
	return w.cache.WriteAt(w.key, p, off)
}
