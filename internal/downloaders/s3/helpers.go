package s3

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/hoard/internal/action"
)

type s3Object struct {
	Key  string
	Size int64
}

func (d *downloader) folder(k action.SubKey) string {
	if d.prefix == "" {
		return k.String() + "/"
	}
	return d.prefix + "/" + k.String() + "/"
}

// listRepresentations returns the sub keys found directly under the prefix.
func listRepresentations(ctx context.Context, client API, bucket, prefix string) ([]action.SubKey, error) {
	root := ""
	if prefix != "" {
		root = prefix + "/"
	}
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(root),
		Delimiter: aws.String("/"),
	})
	var keys []action.SubKey
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing representations: %w", err)
		}
		for _, cp := range page.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			name := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, root), "/")
			k, err := action.ParseSubKey(name)
			if err != nil {
				log.Debug().Str("op", "s3/helpers").Msgf("Skipping folder %s: %v", *cp.Prefix, err)
				continue
			}
			keys = append(keys, k)
		}
	}
	return action.NormalizeKeys(keys), nil
}

func listS3Objects(ctx context.Context, client API, bucket, prefix string) ([]s3Object, error) {
	var objects []s3Object
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil && obj.Size != nil {
				// Skip directories (0-byte objects ending with /)
				if *obj.Size == 0 && strings.HasSuffix(*obj.Key, "/") {
					continue
				}
				objects = append(objects, s3Object{
					Key:  *obj.Key,
					Size: *obj.Size,
				})
			}
		}
	}
	slices.SortFunc(objects, func(a, b s3Object) int { return strings.Compare(a.Key, b.Key) })
	return objects, nil
}
