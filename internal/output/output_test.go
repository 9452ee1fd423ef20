package output

import (
	"bytes"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/tanq16/hoard/internal/action"
	"github.com/tanq16/hoard/internal/journal"
	"github.com/tanq16/hoard/internal/scheduler"
)

func TestPrintTasks(t *testing.T) {
	var buf bytes.Buffer
	PrintTasks(&buf, []scheduler.TaskSnapshot{
		{ID: "0f9c2b4e-aaaa", Action: action.NewAdd("hls", 1, "https://example.com/a.m3u8", []action.SubKey{{Track: 1}}, nil), State: scheduler.StateStarted, Downloaded: 2048},
		{ID: "t2", Action: action.NewRemove("s3", 1, "s3://bucket/b", nil), State: scheduler.StateFailed, RetryCount: 2, Err: errors.New("access denied")},
	})
	out := buf.String()
	for _, want := range []string{"0f9c2b4e", "started", "https://example.com/a.m3u8", "0.0.1", "2.00 KB", "failed", "retries 2", "access denied"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0f9c2b4e-aaaa") {
		t.Error("task id not shortened")
	}

	buf.Reset()
	PrintTasks(&buf, nil)
	if !strings.Contains(buf.String(), "no tasks") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestDisplayTracksTasks(t *testing.T) {
	a := action.NewAdd("hls", 1, "https://example.com/a.m3u8", nil, nil)
	source := func() []scheduler.TaskSnapshot {
		return []scheduler.TaskSnapshot{{ID: "t1", Action: a, State: scheduler.StateStarted, Downloaded: 512, Total: 1024}}
	}
	var buf bytes.Buffer
	d := NewDisplay(&buf, source)
	d.interactive = false
	d.OnTaskStateChanged(scheduler.TaskSnapshot{ID: "t1", Action: a, PrevState: scheduler.StateQueued, State: scheduler.StateStarted})
	d.refresh()

	var view bytes.Buffer
	if n := d.render(&view, 10); n != 2 {
		t.Fatalf("render wrote %d lines, want 2:\n%s", n, view.String())
	}
	if !strings.Contains(view.String(), "50.0%") {
		t.Errorf("progress missing from view:\n%s", view.String())
	}

	d.OnTaskStateChanged(scheduler.TaskSnapshot{ID: "t1", Action: a, PrevState: scheduler.StateStarted, State: scheduler.StateFailed, Err: errors.New("gone")})
	buf.Reset()
	d.ShowSummary()
	if !strings.Contains(buf.String(), "Failed 1 of 1") || !strings.Contains(buf.String(), "gone") {
		t.Errorf("summary = %s", buf.String())
	}
}

func TestFormatSpeed(t *testing.T) {
	if got := FormatSpeed(2048, 2); got != "1.00 KB/s" {
		t.Errorf("FormatSpeed = %q", got)
	}
	if got := FormatSpeed(10, 0); got != "0 B/s" {
		t.Errorf("FormatSpeed zero elapsed = %q", got)
	}
}

func TestPrintEventsShowsIdle(t *testing.T) {
	var buf bytes.Buffer
	PrintEvents(&buf, []journal.Event{
		{ID: 2, State: journal.IdleState, Action: "idle", CreatedAt: "2026-01-02T10:00:01Z"},
		{ID: 1, TaskID: "t1", ContentID: "s3://bucket/a", PrevState: "started", State: "failed", SubKeys: "all",
			Error: sql.NullString{String: "denied", Valid: true}, CreatedAt: "2026-01-02T10:00:00Z"},
	})
	out := buf.String()
	failed, idle := strings.Index(out, "s3://bucket/a"), strings.Index(out, "queue idle")
	if failed < 0 || idle < 0 || failed > idle {
		t.Fatalf("events not printed oldest first:\n%s", out)
	}
	if !strings.Contains(out, "denied") {
		t.Errorf("error text missing:\n%s", out)
	}
}
