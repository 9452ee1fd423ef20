package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const (
	segmentExt = ".seg"
	partExt    = ".part"
)

// FileCache keeps segments as files below root:
// <root>/<sha1(contentID)[:16]>/<period.group.track>/<segment>.seg
type FileCache struct {
	root string
}

func NewFileCache(root string) (*FileCache, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("error creating cache directory: %w", err)
	}
	return &FileCache{root: root}, nil
}

func (c *FileCache) Root() string {
	return c.root
}

func (c *FileCache) contentDir(contentID string) string {
	sum := sha1.Sum([]byte(contentID))
	return filepath.Join(c.root, hex.EncodeToString(sum[:])[:16])
}

func (c *FileCache) segmentPath(key Key) string {
	return filepath.Join(c.contentDir(key.ContentID), key.SubKey.String(), fmt.Sprintf("%06d%s", key.Segment, segmentExt))
}

func (c *FileCache) Length(key Key) (int64, bool, error) {
	path := c.segmentPath(key)
	if info, err := os.Stat(path); err == nil {
		return info.Size(), true, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return 0, false, err
	}
	info, err := os.Stat(path + partExt)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return info.Size(), false, nil
}

func (c *FileCache) WriteAt(key Key, p []byte, off int64) (int, error) {
	path := c.segmentPath(key) + partExt
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("error creating segment directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, err
	}
	n, err := f.WriteAt(p, off)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func (c *FileCache) Reset(key Key) error {
	err := os.Remove(c.segmentPath(key) + partExt)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *FileCache) Commit(key Key) error {
	path := c.segmentPath(key)
	err := os.Rename(path+partExt, path)
	if errors.Is(err, fs.ErrNotExist) {
		if _, serr := os.Stat(path); serr == nil {
			return nil
		}
		// an empty segment never got a write
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		return os.WriteFile(path, nil, 0644)
	}
	return err
}

func (c *FileCache) ReadAt(key Key, p []byte, off int64) (int, error) {
	f, err := os.Open(c.segmentPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", ErrNotCached, key)
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.ReadAt(p, off)
}

func (c *FileCache) Remove(contentID string) error {
	dir := c.contentDir(contentID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("error removing cached content: %w", err)
	}
	log.Debug().Str("op", "cache/remove").Msgf("removed %s (%s)", contentID, filepath.Base(dir))
	return nil
}

func (c *FileCache) Usage(contentID string) (int64, error) {
	var total int64
	err := filepath.WalkDir(c.contentDir(contentID), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
