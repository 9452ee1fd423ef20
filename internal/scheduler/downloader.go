package scheduler

import (
	"context"

	"github.com/tanq16/hoard/internal/action"
)

// ProgressFunc receives advisory byte counts. total is negative while unknown.
type ProgressFunc func(downloaded, total int64)

// Downloader moves the sub content of one action into the cache or purges it.
// Both calls must be safe to repeat after a partial failure and must return
// promptly once ctx is cancelled.
type Downloader interface {
	Download(ctx context.Context, keys []action.SubKey, progress ProgressFunc) error
	Remove(ctx context.Context) error
}

type DownloaderFactory interface {
	NewDownloader(a action.Action) (Downloader, error)
}

// Log persists the queue. *action.File is the production implementation.
type Log interface {
	Load(reg action.Deserializers) ([]action.Entry, error)
	Store(entries []action.Entry) error
}

var _ Log = (*action.File)(nil)
