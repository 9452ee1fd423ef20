package cmd

import (
	"errors"
	"testing"

	"github.com/tanq16/hoard/internal/action"
	"github.com/tanq16/hoard/internal/scheduler"
)

func TestParseBatch(t *testing.T) {
	data := []byte(`
s3:
  - link: s3://bucket/show/ep2
  - link: s3://bucket/show/ep1
    remove: true
HLS:
  - link: https://example.com/a/master.m3u8
    keys: ["0.0.2", "0.0.1,0.0.2"]
    data: resume-token
  - link: ""
  - link: https://example.com/b/master.m3u8
    keys: ["nope"]
  - link: https://example.com/c/master.m3u8
    keys: ["0.0.1"]
    remove: true
`)
	batchFile, err := parseBatch(data)
	if err != nil {
		t.Fatalf("parseBatch: %v", err)
	}

	var formats []string
	build := func(format, contentID string, keys []action.SubKey, data []byte, remove bool) (action.Action, error) {
		formats = append(formats, format)
		if remove {
			return action.NewRemove(format, 1, contentID, data), nil
		}
		return action.NewAdd(format, 1, contentID, keys, data), nil
	}
	actions, errs := buildActions(batchFile, build)
	if len(errs) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(errs), errs)
	}
	if len(actions) != 3 {
		t.Fatalf("got %d actions, want 3", len(actions))
	}

	hls := actions[0]
	if hls.Format != "hls" || hls.ContentID != "https://example.com/a/master.m3u8" {
		t.Errorf("first action = %v", hls)
	}
	if got := action.FormatKeys(hls.SubKeys); got != "0.0.1,0.0.2" {
		t.Errorf("keys = %q, want 0.0.1,0.0.2", got)
	}
	if string(hls.CustomData) != "resume-token" {
		t.Errorf("custom data = %q", hls.CustomData)
	}
	if actions[1].IsRemove() || actions[1].ContentID != "s3://bucket/show/ep2" {
		t.Errorf("second action = %v", actions[1])
	}
	if !actions[2].IsRemove() || actions[2].ContentID != "s3://bucket/show/ep1" {
		t.Errorf("third action = %v", actions[2])
	}
	if formats[0] != "hls" {
		t.Errorf("format names are not normalised: %v", formats)
	}
}

func TestBuildActionsReportsBuilderErrors(t *testing.T) {
	unknown := errors.New("unknown format")
	build := func(string, string, []action.SubKey, []byte, bool) (action.Action, error) {
		return action.Action{}, unknown
	}
	actions, errs := buildActions(BatchFile{"dash": {{Link: "https://example.com/x.mpd"}}}, build)
	if len(actions) != 0 || len(errs) != 1 || !errors.Is(errs[0], unknown) {
		t.Fatalf("got %v, %v", actions, errs)
	}
}

func TestParseBatchInvalid(t *testing.T) {
	if _, err := parseBatch([]byte("hls: [link")); err == nil {
		t.Fatal("expected a parse error")
	}
}

type recordingQueue struct {
	actions []action.Action
	reject  string
}

func (q *recordingQueue) AddAction(a action.Action) (scheduler.TaskSnapshot, error) {
	if a.ContentID == q.reject {
		return scheduler.TaskSnapshot{}, errors.New("rejected")
	}
	q.actions = append(q.actions, a)
	return scheduler.TaskSnapshot{Action: a}, nil
}

func TestQueueActionsKeepsRemoveFormat(t *testing.T) {
	q := &recordingQueue{reject: "s3://bucket/bad"}
	actions := []action.Action{
		action.NewAdd("hls", 1, "https://example.com/a/master.m3u8", nil, nil),
		action.NewRemove("s3", 1, "s3://bucket/done-last-run", nil),
		action.NewAdd("s3", 1, "s3://bucket/bad", nil, nil),
	}
	queued, errs := queueActions(q, actions)
	if queued != 2 || len(errs) != 1 {
		t.Fatalf("queued %d with errors %v, want 2 and one error", queued, errs)
	}
	if len(q.actions) != 2 || !q.actions[1].Equal(actions[1]) {
		t.Fatalf("queued actions = %v", q.actions)
	}
	if !q.actions[1].IsRemove() || q.actions[1].Format != "s3" {
		t.Errorf("remove lost its format: %v", q.actions[1])
	}
}
