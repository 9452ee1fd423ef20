package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/hoard/internal/action"
	"github.com/tanq16/hoard/internal/cache"
	"github.com/tanq16/hoard/internal/scheduler"
	"github.com/tanq16/hoard/internal/utils"
)

type downloader struct {
	format    *Format
	contentID string
	bucket    string
	prefix    string
}

type segment struct {
	key    cache.Key
	object s3Object
}

func (d *downloader) Download(ctx context.Context, keys []action.SubKey, progress scheduler.ProgressFunc) error {
	client, err := d.format.getClient(ctx)
	if err != nil {
		return scheduler.Transient(fmt.Errorf("error creating S3 client: %w", err))
	}
	if len(keys) == 0 {
		if keys, err = listRepresentations(ctx, client, d.bucket, d.prefix); err != nil {
			return scheduler.Transient(err)
		}
		if len(keys) == 0 {
			return &action.UnsupportedFormatError{Format: FormatName, Version: FormatVersion, Reason: fmt.Sprintf("no representations under %s", d.contentID)}
		}
	}
	var segments []segment
	var totalSize int64
	for _, k := range keys {
		objects, err := listS3Objects(ctx, client, d.bucket, d.folder(k))
		if err != nil {
			return scheduler.Transient(err)
		}
		if len(objects) == 0 {
			return &action.UnsupportedFormatError{Format: FormatName, Version: FormatVersion, Reason: fmt.Sprintf("no objects found in s3://%s/%s", d.bucket, d.folder(k))}
		}
		for i, obj := range objects {
			segments = append(segments, segment{key: cache.Key{ContentID: d.contentID, SubKey: k, Segment: i}, object: obj})
			totalSize += obj.Size
		}
	}
	log.Info().Str("op", "s3/download").Msgf("Found %d objects (%s) for %s", len(segments), utils.FormatBytes(uint64(totalSize)), d.contentID)

	var downloaded int64
	progress(0, totalSize)
	transfer := manager.NewDownloader(client, func(md *manager.Downloader) {
		md.Concurrency = 1
	})
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		held, committed, err := d.format.cache.Length(seg.key)
		if err != nil {
			return scheduler.Transient(fmt.Errorf("error reading cache: %w", err))
		}
		if committed {
			downloaded += held
			progress(downloaded, totalSize)
			continue
		}
		switch {
		case seg.object.Size == 0:
		case held > 0 && held < seg.object.Size:
			if err := d.resumeObject(ctx, client, seg, held); err != nil {
				return err
			}
		default:
			if held > 0 {
				if err := d.format.cache.Reset(seg.key); err != nil {
					return scheduler.Transient(err)
				}
			}
			_, err := transfer.Download(ctx, cache.WriterAt(d.format.cache, seg.key), &s3.GetObjectInput{
				Bucket: aws.String(d.bucket),
				Key:    aws.String(seg.object.Key),
			})
			if err != nil {
				return classify(ctx, fmt.Errorf("error downloading %s: %w", seg.object.Key, err))
			}
		}
		if err := d.format.cache.Commit(seg.key); err != nil {
			return scheduler.Transient(fmt.Errorf("error committing %s: %w", seg.key, err))
		}
		downloaded += seg.object.Size
		progress(downloaded, totalSize)
	}
	return nil
}

// resumeObject fetches the bytes of an object past what the cache holds.
func (d *downloader) resumeObject(ctx context.Context, client API, seg segment, offset int64) error {
	log.Debug().Str("op", "s3/download").Msgf("Resuming %s from offset %d", seg.object.Key, offset)
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(seg.object.Key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-", offset)),
	})
	if err != nil {
		return classify(ctx, fmt.Errorf("error getting object: %w", err))
	}
	defer result.Body.Close()
	w := io.NewOffsetWriter(cache.WriterAt(d.format.cache, seg.key), offset)
	buffer := make([]byte, utils.DefaultBufferSize)
	if _, err := io.CopyBuffer(w, result.Body, buffer); err != nil {
		return classify(ctx, fmt.Errorf("error reading object: %w", err))
	}
	return nil
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return errors.Join(ctx.Err(), err)
	}
	return scheduler.Transient(err)
}

func (d *downloader) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.format.cache.Remove(d.contentID); err != nil {
		return scheduler.Transient(err)
	}
	log.Info().Str("op", "s3/remove").Msgf("Removed cached content for s3://%s/%s", d.bucket, d.prefix)
	return nil
}
