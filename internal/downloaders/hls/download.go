package hls

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/hoard/internal/action"
	"github.com/tanq16/hoard/internal/cache"
	"github.com/tanq16/hoard/internal/scheduler"
	"github.com/tanq16/hoard/internal/utils"
)

type downloader struct {
	client    *utils.HTTPClient
	cache     cache.Cache
	contentID string
}

type segment struct {
	key cache.Key
	url string
}

func (d *downloader) Download(ctx context.Context, keys []action.SubKey, progress scheduler.ProgressFunc) error {
	segments, err := d.plan(ctx, keys)
	if err != nil {
		return err
	}
	log.Info().Str("op", "hls/download").Msgf("Found %d segments for %s", len(segments), d.contentID)
	var downloaded int64
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, committed, err := d.cache.Length(seg.key)
		if err != nil {
			return scheduler.Transient(fmt.Errorf("error reading cache: %w", err))
		}
		if committed {
			downloaded += n
			progress(downloaded, -1)
			continue
		}
		written, err := d.fetchSegment(ctx, seg, n, func(delta int64) {
			downloaded += delta
			progress(downloaded, -1)
		})
		if err != nil {
			return fmt.Errorf("error downloading segment %d: %w", i, err)
		}
		if err := d.cache.Commit(seg.key); err != nil {
			return scheduler.Transient(fmt.Errorf("error committing segment %d: %w", i, err))
		}
		log.Debug().Str("op", "hls/download").Msgf("segment %d of %d done (%s)", i+1, len(segments), utils.FormatBytes(uint64(written)))
	}
	progress(downloaded, downloaded)
	return nil
}

// plan resolves the requested variants to their segment lists.
func (d *downloader) plan(ctx context.Context, keys []action.SubKey) ([]segment, error) {
	content, err := fetchPlaylist(ctx, d.client, d.contentID)
	if err != nil {
		return nil, err
	}
	top, err := parsePlaylist(content, d.contentID)
	if err != nil {
		return nil, &action.UnsupportedFormatError{Format: FormatName, Version: FormatVersion, Reason: err.Error()}
	}
	variants := top.variants
	if !top.master {
		variants = []string{d.contentID}
	}
	if len(keys) == 0 {
		for i := range variants {
			keys = append(keys, action.SubKey{Track: int32(i)})
		}
	}
	var out []segment
	for _, k := range keys {
		if int(k.Track) >= len(variants) {
			return nil, &action.UnsupportedFormatError{
				Format:  FormatName,
				Version: FormatVersion,
				Reason:  fmt.Sprintf("variant %d not in playlist (%d variants)", k.Track, len(variants)),
			}
		}
		media := top
		if top.master {
			content, err := fetchPlaylist(ctx, d.client, variants[k.Track])
			if err != nil {
				return nil, fmt.Errorf("error fetching variant %d: %w", k.Track, err)
			}
			if media, err = parsePlaylist(content, variants[k.Track]); err != nil {
				return nil, &action.UnsupportedFormatError{Format: FormatName, Version: FormatVersion, Reason: err.Error()}
			}
		}
		for i, u := range media.segments {
			out = append(out, segment{key: cache.Key{ContentID: d.contentID, SubKey: k, Segment: i}, url: u})
		}
	}
	return out, nil
}

// fetchSegment writes one segment into the cache starting at offset,
// asking the server for the remaining range when part of it is held.
func (d *downloader) fetchSegment(ctx context.Context, seg segment, offset int64, onWrite func(int64)) (int64, error) {
	var headers map[string]string
	if offset > 0 {
		headers = map[string]string{"Range": fmt.Sprintf("bytes=%d-", offset)}
		log.Debug().Str("op", "hls/download").Msgf("Resuming %s from offset %d", seg.key, offset)
	}
	resp, err := d.client.Get(ctx, seg.url, headers)
	if err != nil {
		return 0, scheduler.Transient(err)
	}
	defer resp.Body.Close()

	switch {
	case offset > 0 && resp.StatusCode == http.StatusPartialContent:
		onWrite(offset)
	case offset > 0 && resp.StatusCode == http.StatusOK:
		log.Warn().Str("op", "hls/download").Msgf("Server does not support resume for %s, restarting segment", seg.key)
		if err := d.cache.Reset(seg.key); err != nil {
			return 0, scheduler.Transient(err)
		}
		offset = 0
	case offset > 0 && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// the held bytes are the whole segment
		onWrite(offset)
		return offset, nil
	case resp.StatusCode != http.StatusOK:
		return 0, statusError(resp.StatusCode, seg.url)
	}

	written := offset
	buffer := make([]byte, utils.DefaultBufferSize)
	for {
		n, readErr := resp.Body.Read(buffer)
		if n > 0 {
			if _, err := d.cache.WriteAt(seg.key, buffer[:n], written); err != nil {
				return written, scheduler.Transient(fmt.Errorf("error writing to cache: %w", err))
			}
			written += int64(n)
			onWrite(int64(n))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			return written, scheduler.Transient(fmt.Errorf("error reading response body: %w", readErr))
		}
	}
	return written, nil
}

func (d *downloader) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.cache.Remove(d.contentID); err != nil {
		return scheduler.Transient(err)
	}
	log.Info().Str("op", "hls/remove").Msgf("Removed cached content for %s", d.contentID)
	return nil
}
