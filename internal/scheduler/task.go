package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tanq16/hoard/internal/action"
)

type State int

const (
	StateQueued State = iota
	StateStarted
	StateCompleted
	StateFailed
	StateRemoving
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateStarted:
		return "started"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateRemoving:
		return "removing"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further work is scheduled for a task in s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateRemoved
}

// TaskSnapshot is a copy of a task taken on the manager goroutine. PrevState
// equals State for a task that was just created.
type TaskSnapshot struct {
	ID         string
	Action     action.Action
	State      State
	PrevState  State
	Downloaded int64
	Total      int64
	RetryCount int
	Err        error
	// Pending is set while an add action waits for the running removal.
	Pending bool
}

// Percent returns download progress in [0,100], or -1 when the total is unknown.
func (s TaskSnapshot) Percent() float64 {
	if s.State == StateCompleted {
		return 100
	}
	if s.Total <= 0 {
		return -1
	}
	return min(100, float64(s.Downloaded)*100/float64(s.Total))
}

type cancelReason int

const (
	reasonNone cancelReason = iota
	reasonStop
	reasonSupersede
	reasonRekey
)

// run is one in-flight downloader call. Only the progress counters are
// touched by the worker; everything else belongs to the manager goroutine.
type run struct {
	remove     bool
	cancel     context.CancelFunc
	reason     cancelReason
	downloaded atomic.Int64
	total      atomic.Int64
}

func (r *run) stop(reason cancelReason) {
	if r.reason == reasonNone {
		r.reason = reason
	}
	r.cancel()
}

type pendingAdd struct {
	id     string
	action action.Action
}

type task struct {
	id         string
	action     action.Action
	state      State
	downloaded int64
	total      int64
	retries    int
	err        error
	notBefore  time.Time
	pending    *pendingAdd
	run        *run
}

func (t *task) snapshot(prev State) TaskSnapshot {
	s := TaskSnapshot{
		ID:         t.id,
		Action:     t.action.Clone(),
		State:      t.state,
		PrevState:  prev,
		Downloaded: t.downloaded,
		Total:      t.total,
		RetryCount: t.retries,
		Err:        t.err,
		Pending:    t.pending != nil,
	}
	if t.run != nil && !t.run.remove {
		s.Downloaded = t.run.downloaded.Load()
		s.Total = t.run.total.Load()
	}
	return s
}

func (t *task) resetFailure() {
	t.retries = 0
	t.err = nil
	t.notBefore = time.Time{}
}

func (t *task) entries() []action.Entry {
	var out []action.Entry
	if t.state != StateCompleted && t.state != StateRemoved {
		out = append(out, action.Entry{TaskID: t.id, Action: t.action})
	}
	if t.pending != nil {
		out = append(out, action.Entry{TaskID: t.pending.id, Action: t.pending.action})
	}
	return out
}
