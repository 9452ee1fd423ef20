package journal

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/tanq16/hoard/internal/action"
	"github.com/tanq16/hoard/internal/scheduler"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openTestStore(t)
	a := action.NewAdd("hls", 1, "https://example.com/a.m3u8", []action.SubKey{{Track: 1}}, nil)
	b := action.NewRemove("s3", 1, "s3://bucket/b", nil)

	s.OnTaskStateChanged(scheduler.TaskSnapshot{ID: "t1", Action: a, PrevState: scheduler.StateQueued, State: scheduler.StateStarted})
	s.OnTaskStateChanged(scheduler.TaskSnapshot{ID: "t2", Action: b, PrevState: scheduler.StateRemoving, State: scheduler.StateFailed, RetryCount: 3, Err: errors.New("denied")})
	s.OnTaskStateChanged(scheduler.TaskSnapshot{ID: "t1", Action: a, PrevState: scheduler.StateStarted, State: scheduler.StateCompleted, Downloaded: 42})
	s.OnIdle()

	all, err := s.List(t.Context(), "", 0)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("List returned %d events, want 4", len(all))
	}
	if all[0].State != IdleState || all[0].ContentID != "" {
		t.Errorf("newest event = %+v, want idle marker", all[0])
	}
	if all[1].State != "completed" || all[1].BytesDone != 42 {
		t.Errorf("completed event = %+v", all[1])
	}

	events, err := s.List(t.Context(), "s3://bucket/b", 10)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("List(b) returned %d events, want 1", len(events))
	}
	e := events[0]
	if e.TaskID != "t2" || e.Action != "remove" || e.State != "failed" || e.Retries != 3 || e.Error.String != "denied" {
		t.Errorf("event = %+v", e)
	}

	limited, _ := s.List(t.Context(), "", 1)
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d events", len(limited))
	}
}

func TestReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	s.OnTaskStateChanged(scheduler.TaskSnapshot{ID: "t1", Action: action.NewAdd("hls", 1, "c", nil, nil)})
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s.Close()
	events, err := s.List(t.Context(), "c", 5)
	if err != nil || len(events) != 1 || events[0].SubKeys != "all" {
		t.Fatalf("events after reopen = %+v, %v", events, err)
	}
}
