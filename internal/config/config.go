package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/tanq16/hoard/internal/utils"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "~/.config/hoard/config.yaml"

type HTTP struct {
	Timeout       time.Duration     `yaml:"timeout"`
	KATimeout     time.Duration     `yaml:"keep-alive-timeout"`
	UserAgent     string            `yaml:"user-agent"`
	ProxyURL      string            `yaml:"proxy"`
	ProxyUsername string            `yaml:"proxy-username"`
	ProxyPassword string            `yaml:"proxy-password"`
	Headers       map[string]string `yaml:"headers"`
	BearerToken   string            `yaml:"bearer-token"`
	HighThread    bool              `yaml:"high-thread-mode"`
}

type Config struct {
	ActionFile           string        `yaml:"action-file"`
	CacheDir             string        `yaml:"cache-dir"`
	JournalPath          string        `yaml:"journal"`
	MaxParallelDownloads int           `yaml:"max-parallel-downloads"`
	MaxParallelRemoves   int           `yaml:"max-parallel-removes"`
	MaxRetries           int           `yaml:"max-retries"`
	RetryBackoff         time.Duration `yaml:"retry-backoff"`
	MaxRetryBackoff      time.Duration `yaml:"max-retry-backoff"`
	S3Profile            string        `yaml:"s3-profile"`
	HTTP                 HTTP          `yaml:"http"`
}

func Default() Config {
	return Config{
		ActionFile:           "~/.local/share/hoard/actions.bin",
		CacheDir:             "~/.local/share/hoard/cache",
		JournalPath:          "~/.local/share/hoard/journal.db",
		MaxParallelDownloads: 2,
		MaxParallelRemoves:   2,
		MaxRetries:           3,
		RetryBackoff:         time.Second,
		MaxRetryBackoff:      time.Minute,
		S3Profile:            "default",
		HTTP: HTTP{
			Timeout:   3 * time.Minute,
			KATimeout: 90 * time.Second,
			UserAgent: utils.ToolUserAgent,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(utils.ExpandHome(path))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg.expand(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg.expand(), nil
}

func (c Config) Validate() error {
	if c.ActionFile == "" {
		return errors.New("config: action-file must be set")
	}
	if c.CacheDir == "" {
		return errors.New("config: cache-dir must be set")
	}
	if c.MaxRetries < 0 {
		return errors.New("config: max-retries must not be negative")
	}
	if c.RetryBackoff < 0 || c.MaxRetryBackoff < 0 {
		return errors.New("config: retry back-off must not be negative")
	}
	return nil
}

func (c Config) expand() Config {
	c.ActionFile = utils.ExpandHome(c.ActionFile)
	c.CacheDir = utils.ExpandHome(c.CacheDir)
	if c.JournalPath != "" {
		c.JournalPath = utils.ExpandHome(c.JournalPath)
	}
	return c
}

// EnsureDirs creates the parent directories of the configured files.
func (c Config) EnsureDirs() error {
	dirs := []string{filepath.Dir(c.ActionFile), c.CacheDir}
	if c.JournalPath != "" {
		dirs = append(dirs, filepath.Dir(c.JournalPath))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating %s: %w", dir, err)
		}
	}
	return nil
}

func (c Config) HTTPClientConfig() utils.HTTPClientConfig {
	return utils.HTTPClientConfig{
		Timeout:        c.HTTP.Timeout,
		KATimeout:      c.HTTP.KATimeout,
		ProxyURL:       c.HTTP.ProxyURL,
		ProxyUsername:  c.HTTP.ProxyUsername,
		ProxyPassword:  c.HTTP.ProxyPassword,
		UserAgent:      c.HTTP.UserAgent,
		Headers:        c.HTTP.Headers,
		BearerToken:    c.HTTP.BearerToken,
		HighThreadMode: c.HTTP.HighThread,
	}
}
