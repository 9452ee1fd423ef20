package formats

import (
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/hoard/internal/action"
	"github.com/tanq16/hoard/internal/scheduler"
)

// Format is one content format: it validates its actions and builds the
// downloader that executes them.
type Format interface {
	action.Deserializer
	NewDownloader(a action.Action) (scheduler.Downloader, error)
}

// Registry maps format names to their implementations. It serves the
// manager both as the log deserializer set and as the downloader factory.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]Format
}

var (
	_ action.Deserializers        = (*Registry)(nil)
	_ scheduler.DownloaderFactory = (*Registry)(nil)
)

func NewRegistry(formats ...Format) (*Registry, error) {
	r := &Registry{formats: make(map[string]Format)}
	for _, f := range formats {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(f Format) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.formats[f.Format()]; exists {
		return fmt.Errorf("format %q already registered", f.Format())
	}
	r.formats[f.Format()] = f
	log.Debug().Str("op", "formats/registry").Msgf("registered format %s v%d", f.Format(), f.Version())
	return nil
}

func (r *Registry) Lookup(name string) (Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formats[name]
	return f, ok
}

func (r *Registry) Deserializer(name string) (action.Deserializer, bool) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, false
	}
	return f, true
}

func (r *Registry) NewDownloader(a action.Action) (scheduler.Downloader, error) {
	f, ok := r.Lookup(a.Format)
	if !ok {
		return nil, &action.UnsupportedFormatError{Format: a.Format, Version: a.Version, Reason: "no downloader registered"}
	}
	return f.NewDownloader(a)
}

// Names returns the registered format names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
