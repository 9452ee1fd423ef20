package cmd

import (
	"errors"
	"fmt"
	u "net/url"

	"github.com/google/uuid"
	"github.com/tanq16/hoard/internal/action"
	"github.com/tanq16/hoard/internal/cache"
	"github.com/tanq16/hoard/internal/config"
	"github.com/tanq16/hoard/internal/downloaders/hls"
	"github.com/tanq16/hoard/internal/downloaders/s3"
	"github.com/tanq16/hoard/internal/formats"
	"github.com/tanq16/hoard/internal/journal"
	"github.com/tanq16/hoard/internal/scheduler"
	"github.com/tanq16/hoard/internal/utils"
)

// loadConfig reads the config file and lays the flags that were set on top.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if actionFile != "" {
		cfg.ActionFile = utils.ExpandHome(actionFile)
	}
	if cacheDir != "" {
		cfg.CacheDir = utils.ExpandHome(cacheDir)
	}
	if journalPath != "" {
		cfg.JournalPath = utils.ExpandHome(journalPath)
	}
	if workers > 0 {
		cfg.MaxParallelDownloads = workers
	}
	if removers > 0 {
		cfg.MaxParallelRemoves = removers
	}
	if maxRetries >= 0 {
		cfg.MaxRetries = maxRetries
	}
	if retryBackoff > 0 {
		cfg.RetryBackoff = retryBackoff
	}
	if timeout > 0 {
		cfg.HTTP.Timeout = timeout
	}
	if kaTimeout > 0 {
		cfg.HTTP.KATimeout = kaTimeout
	}
	if userAgent == "randomize" {
		cfg.HTTP.UserAgent = utils.GetRandomUserAgent()
	} else if userAgent != "" {
		cfg.HTTP.UserAgent = userAgent
	}
	if proxyURL != "" {
		cfg.HTTP.ProxyURL = proxyURL
	}
	if proxyUsername != "" {
		cfg.HTTP.ProxyUsername = proxyUsername
		cfg.HTTP.ProxyPassword = proxyPassword
	}
	// Check if proxy URL contains auth
	parsedProxy, err := u.Parse(cfg.HTTP.ProxyURL)
	if err == nil && parsedProxy.User != nil && cfg.HTTP.ProxyUsername == "" {
		cfg.HTTP.ProxyUsername = parsedProxy.User.Username()
		if password, set := parsedProxy.User.Password(); set {
			cfg.HTTP.ProxyPassword = password
		}
		parsedProxy.User = nil
		cfg.HTTP.ProxyURL = parsedProxy.String()
	}
	if bearerToken != "" {
		cfg.HTTP.BearerToken = bearerToken
	}
	if len(headers) > 0 {
		if cfg.HTTP.Headers == nil {
			cfg.HTTP.Headers = make(map[string]string)
		}
		for k, v := range utils.ParseHeaderArgs(headers) {
			cfg.HTTP.Headers[k] = v
		}
	}
	if s3Profile != "" {
		cfg.S3Profile = s3Profile
	}
	return cfg, cfg.Validate()
}

type session struct {
	cfg      config.Config
	cache    *cache.FileCache
	registry *formats.Registry
	journal  *journal.Store
	manager  *scheduler.Manager
}

// openSession wires the configured collaborators into a manager. The
// listeners also receive the tasks restored from the action log.
func openSession(listeners ...scheduler.Listener) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	s := &session{cfg: cfg}
	s.cache, err = cache.NewFileCache(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	client := utils.NewHTTPClient(cfg.HTTPClientConfig())
	s.registry, err = formats.NewRegistry(
		hls.New(client, s.cache),
		s3.New(cfg.S3Profile, s.cache),
	)
	if err != nil {
		return nil, err
	}
	if cfg.JournalPath != "" {
		s.journal, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		listeners = append(listeners, s.journal)
	}
	logger := utils.GetLogger("scheduler")
	s.manager, err = scheduler.New(scheduler.Options{
		Log:                  action.NewFile(cfg.ActionFile),
		Deserializers:        s.registry,
		Downloaders:          s.registry,
		MaxParallelDownloads: cfg.MaxParallelDownloads,
		MaxParallelRemoves:   cfg.MaxParallelRemoves,
		MaxRetries:           cfg.MaxRetries,
		RetryBackoff:         cfg.RetryBackoff,
		MaxRetryBackoff:      cfg.MaxRetryBackoff,
		Listeners:            listeners,
		Logger:               &logger,
		NewID:                uuid.NewString,
	})
	if err != nil {
		if s.journal != nil {
			s.journal.Close()
		}
		return nil, fmt.Errorf("error loading action log: %w", err)
	}
	return s, nil
}

// close releases the manager, which flushes the action log, and then the journal.
func (s *session) close() error {
	err := s.manager.Release()
	if s.journal != nil {
		err = errors.Join(err, s.journal.Close())
	}
	return err
}

// newAction builds an action for a registered format at its current version.
func (s *session) newAction(format, contentID string, keys []action.SubKey, data []byte, remove bool) (action.Action, error) {
	f, ok := s.registry.Lookup(format)
	if !ok {
		return action.Action{}, &action.UnsupportedFormatError{Format: format, Reason: "unknown format, known: " + fmt.Sprint(s.registry.Names())}
	}
	if remove {
		return action.NewRemove(f.Format(), f.Version(), contentID, data), nil
	}
	return action.NewAdd(f.Format(), f.Version(), contentID, keys, data), nil
}
