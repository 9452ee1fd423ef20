package formats

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/tanq16/hoard/internal/action"
	"github.com/tanq16/hoard/internal/scheduler"
)

type stubFormat struct {
	name string
}

func (f stubFormat) Format() string { return f.name }
func (f stubFormat) Version() int   { return 1 }

func (f stubFormat) Decode(a action.Action) (action.Action, error) {
	return a, nil
}

func (f stubFormat) NewDownloader(a action.Action) (scheduler.Downloader, error) {
	return stubDownloader{}, nil
}

type stubDownloader struct{}

func (stubDownloader) Download(context.Context, []action.SubKey, scheduler.ProgressFunc) error {
	return nil
}

func (stubDownloader) Remove(context.Context) error { return nil }

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(stubFormat{"s3"}, stubFormat{"hls"})
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}
	if got := r.Names(); !slices.Equal(got, []string{"hls", "s3"}) {
		t.Errorf("Names() = %v", got)
	}
	if _, ok := r.Deserializer("hls"); !ok {
		t.Error("hls deserializer not found")
	}
	if _, ok := r.Deserializer("dash"); ok {
		t.Error("unexpected dash deserializer")
	}
	if _, err := r.NewDownloader(action.NewAdd("hls", 1, "c", nil, nil)); err != nil {
		t.Errorf("NewDownloader(hls) error: %v", err)
	}
	_, err = r.NewDownloader(action.NewAdd("dash", 1, "c", nil, nil))
	if !errors.Is(err, action.ErrUnsupportedFormat) {
		t.Errorf("NewDownloader(dash) error = %v, want ErrUnsupportedFormat", err)
	}
	if err := r.Register(stubFormat{"hls"}); err == nil {
		t.Error("duplicate Register succeeded")
	}
}

func TestRegistryCheck(t *testing.T) {
	r, _ := NewRegistry(stubFormat{"hls"})
	if _, err := action.Check(r, action.NewAdd("hls", 2, "c", nil, nil)); !errors.Is(err, action.ErrUnsupportedFormat) {
		t.Fatalf("Check future version error = %v", err)
	}
	if _, err := action.Check(r, action.NewAdd("hls", 1, "c", nil, nil)); err != nil {
		t.Fatalf("Check error: %v", err)
	}
}
