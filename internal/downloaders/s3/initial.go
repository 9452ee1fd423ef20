package s3

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/hoard/internal/action"
	"github.com/tanq16/hoard/internal/cache"
	"github.com/tanq16/hoard/internal/scheduler"
)

const (
	FormatName    = "s3"
	FormatVersion = 1
)

// API is the part of the S3 client the downloader uses.
type API interface {
	s3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

// Format handles content stored as s3://bucket/prefix where every
// representation is a folder named after its sub key.
type Format struct {
	profile string
	cache   cache.Cache

	mu        sync.Mutex
	client    API
	newClient func(ctx context.Context) (API, error)
}

func New(profile string, c cache.Cache) *Format {
	f := &Format{profile: profile, cache: c}
	f.newClient = f.loadClient
	return f
}

// NewWithClient uses client instead of loading the shared AWS config.
func NewWithClient(client API, c cache.Cache) *Format {
	return &Format{cache: c, client: client}
}

func (f *Format) Format() string { return FormatName }
func (f *Format) Version() int   { return FormatVersion }

func (f *Format) Decode(a action.Action) (action.Action, error) {
	if _, _, err := parseS3URL(a.ContentID); err != nil {
		return action.Action{}, &action.UnsupportedFormatError{Format: a.Format, Version: a.Version, Reason: err.Error()}
	}
	return a, nil
}

func (f *Format) NewDownloader(a action.Action) (scheduler.Downloader, error) {
	bucket, prefix, err := parseS3URL(a.ContentID)
	if err != nil {
		return nil, &action.UnsupportedFormatError{Format: a.Format, Version: a.Version, Reason: err.Error()}
	}
	log.Debug().Str("op", "s3/initial").Msgf("downloader built for s3://%s/%s", bucket, prefix)
	return &downloader{format: f, contentID: a.ContentID, bucket: bucket, prefix: prefix}, nil
}

func (f *Format) getClient(ctx context.Context) (API, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		return f.client, nil
	}
	client, err := f.newClient(ctx)
	if err != nil {
		return nil, err
	}
	f.client = client
	return client, nil
}

func (f *Format) loadClient(ctx context.Context) (API, error) {
	opts := []func(*config.LoadOptions) error{config.WithRetryMode("adaptive")}
	if f.profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(f.profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func parseS3URL(url string) (string, string, error) {
	if !strings.HasPrefix(url, "s3://") {
		return "", "", fmt.Errorf("invalid S3 URL format, expected s3://bucket/prefix")
	}
	url = strings.TrimPrefix(url, "s3://")
	parts := strings.SplitN(url, "/", 2)
	if len(parts) < 1 || parts[0] == "" {
		return "", "", fmt.Errorf("invalid S3 URL format")
	}
	bucket := parts[0]
	prefix := ""
	if len(parts) > 1 {
		prefix = strings.Trim(parts[1], "/")
	}
	return bucket, prefix, nil
}
