package scheduler

import (
	"github.com/tanq16/hoard/internal/action"
)

// merge folds a into the queue and returns the task that now carries it.
// id is used for a newly created task or pending add; restore passes the
// logged id, callers pass "" for a fresh one.
func (m *Manager) merge(a action.Action, id string) *task {
	t := m.find(a.ContentID)
	if t == nil {
		if id == "" {
			id = m.opts.NewID()
		}
		t = &task{id: id, action: a.Clone(), state: StateQueued}
		if a.IsRemove() {
			t.state = StateRemoving
		}
		m.tasks = append(m.tasks, t)
		m.dirty = true
		m.outbox = append(m.outbox, notification{snap: t.snapshot(t.state)})
		m.log.Debug().Str("op", "manager/merge").Str("task", t.id).Str("action", a.String()).Msg("new task")
		return t
	}

	if a.IsRemove() {
		t.action = a.Clone()
		t.pending = nil
		t.resetFailure()
		m.dirty = true
		if t.run != nil && !t.run.remove {
			t.run.stop(reasonSupersede)
		}
		if t.state != StateRemoving {
			m.setState(t, StateRemoving)
		}
		return t
	}

	if t.state == StateRemoving {
		m.addPending(t, a, id)
		return t
	}

	if t.state == StateFailed && (t.action.IsRemove() || t.action.Format != a.Format) {
		if t.pending != nil {
			if merged, err := t.pending.action.Merge(a); err == nil {
				a = merged
			}
			t.pending = nil
		}
		t.action = a.Clone()
		t.resetFailure()
		m.dirty = true
		m.setState(t, StateQueued)
		return t
	}

	merged, err := t.action.Merge(a)
	if err != nil {
		m.log.Error().Str("op", "manager/merge").Str("task", t.id).Err(err).Msg("merge rejected")
		return t
	}
	grown := !t.action.Covers(a)
	if !merged.Equal(t.action) {
		m.dirty = true
	}
	t.action = merged
	switch t.state {
	case StateFailed:
		t.resetFailure()
		m.dirty = true
		m.setState(t, StateQueued)
	case StateCompleted:
		if grown {
			m.dirty = true
			m.setState(t, StateQueued)
		}
	case StateStarted:
		if grown && t.run != nil {
			t.run.stop(reasonRekey)
		}
	}
	return t
}

func (m *Manager) addPending(t *task, a action.Action, id string) {
	m.dirty = true
	if t.pending == nil {
		if id == "" {
			id = m.opts.NewID()
		}
		t.pending = &pendingAdd{id: id, action: a.Clone()}
	} else {
		merged, err := t.pending.action.Merge(a)
		if err != nil {
			m.log.Error().Str("op", "manager/merge").Str("task", t.id).Err(err).Msg("pending merge rejected")
			return
		}
		t.pending.action = merged
	}
	m.outbox = append(m.outbox, notification{snap: t.snapshot(t.state)})
	m.log.Debug().Str("op", "manager/merge").Str("task", t.id).Str("pending", t.pending.id).Msg("add waits for removal")
}
