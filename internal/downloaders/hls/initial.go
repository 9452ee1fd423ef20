package hls

import (
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/hoard/internal/action"
	"github.com/tanq16/hoard/internal/cache"
	"github.com/tanq16/hoard/internal/scheduler"
	"github.com/tanq16/hoard/internal/utils"
)

const (
	FormatName    = "hls"
	FormatVersion = 1
)

// Format handles HLS content. The content id is the playlist URL and the
// track of a sub key selects a variant of the master playlist.
type Format struct {
	client *utils.HTTPClient
	cache  cache.Cache
}

func New(client *utils.HTTPClient, c cache.Cache) *Format {
	return &Format{client: client, cache: c}
}

func (f *Format) Format() string { return FormatName }
func (f *Format) Version() int   { return FormatVersion }

func (f *Format) Decode(a action.Action) (action.Action, error) {
	if _, err := parsePlaylistURL(a.ContentID); err != nil {
		return action.Action{}, &action.UnsupportedFormatError{Format: a.Format, Version: a.Version, Reason: err.Error()}
	}
	for _, k := range a.SubKeys {
		if k.Period != 0 || k.Group != 0 || k.Track < 0 {
			return action.Action{}, &action.UnsupportedFormatError{
				Format:  a.Format,
				Version: a.Version,
				Reason:  fmt.Sprintf("sub key %s does not name a variant", k),
			}
		}
	}
	return a, nil
}

func (f *Format) NewDownloader(a action.Action) (scheduler.Downloader, error) {
	if _, err := f.Decode(a); err != nil {
		return nil, err
	}
	log.Debug().Str("op", "hls/initial").Msgf("downloader built for %s", a.ContentID)
	return &downloader{client: f.client, cache: f.cache, contentID: a.ContentID}, nil
}

func parsePlaylistURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid playlist URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("playlist URL must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("playlist URL has no host")
	}
	return u, nil
}
