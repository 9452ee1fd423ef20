package hls

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tanq16/hoard/internal/scheduler"
	"github.com/tanq16/hoard/internal/utils"
)

type playlist struct {
	master   bool
	variants []string
	segments []string
}

func fetchPlaylist(ctx context.Context, client *utils.HTTPClient, playlistURL string) (string, error) {
	resp, err := client.Get(ctx, playlistURL, nil)
	if err != nil {
		return "", scheduler.Transient(fmt.Errorf("error fetching playlist: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, playlistURL)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", scheduler.Transient(fmt.Errorf("error reading playlist: %w", err))
	}
	return string(content), nil
}

// parsePlaylist splits an m3u8 document into variant URIs (master playlist)
// or segment URIs (media playlist), resolved against base.
func parsePlaylist(content, base string) (playlist, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return playlist{}, fmt.Errorf("error parsing playlist URL: %v", err)
	}
	var p playlist
	scanner := bufio.NewScanner(strings.NewReader(content))
	sawHeader := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sawHeader {
			if line != "#EXTM3U" {
				return playlist{}, fmt.Errorf("not an m3u8 playlist")
			}
			sawHeader = true
			continue
		}
		if strings.HasPrefix(line, "#EXT-X-STREAM-INF") {
			p.master = true
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		resolved, err := resolveURL(baseURL, line)
		if err != nil {
			return playlist{}, fmt.Errorf("error resolving URL: %v", err)
		}
		if p.master {
			p.variants = append(p.variants, resolved)
		} else {
			p.segments = append(p.segments, resolved)
		}
	}
	if err := scanner.Err(); err != nil {
		return playlist{}, fmt.Errorf("error scanning m3u8 content: %v", err)
	}
	if !sawHeader {
		return playlist{}, fmt.Errorf("empty playlist")
	}
	return p, nil
}

func resolveURL(baseURL *url.URL, urlStr string) (string, error) {
	if strings.HasPrefix(urlStr, "http://") || strings.HasPrefix(urlStr, "https://") {
		return urlStr, nil
	}
	relURL, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(relURL).String(), nil
}

// statusError retries server-side and throttling failures only.
func statusError(code int, target string) error {
	err := fmt.Errorf("server returned status code %d for %s", code, target)
	if code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout {
		return scheduler.Transient(err)
	}
	return err
}
