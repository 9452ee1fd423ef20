package scheduler

import (
	"context"
	"fmt"
	"slices"
	"time"
)

func (m *Manager) startDownload(t *task) {
	d, err := m.opts.Downloaders.NewDownloader(t.action)
	if err != nil {
		m.retryOrFail(t, err, StateQueued)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{cancel: cancel}
	r.downloaded.Store(t.downloaded)
	r.total.Store(t.total)
	t.run = r
	m.adds++
	m.setState(t, StateStarted)

	keys := slices.Clone(t.action.SubKeys)
	progress := func(downloaded, total int64) {
		r.downloaded.Store(downloaded)
		r.total.Store(total)
	}
	m.pool.Go(func() error {
		err := execute(func() error { return d.Download(ctx, keys, progress) })
		m.results <- result{task: t, run: r, err: err}
		return nil
	})
}

func (m *Manager) startRemove(t *task) {
	d, err := m.opts.Downloaders.NewDownloader(t.action)
	if err != nil {
		m.retryOrFail(t, err, StateRemoving)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{remove: true, cancel: cancel}
	t.run = r
	m.removes++
	m.log.Debug().Str("op", "manager/remove").Str("task", t.id).Str("content", t.action.ContentID).Msg("removal started")
	m.pool.Go(func() error {
		err := execute(func() error { return d.Remove(ctx) })
		m.results <- result{task: t, run: r, err: err}
		return nil
	})
}

func execute(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("downloader panic: %v", p)
		}
	}()
	return fn()
}

func (m *Manager) handleResult(res result) {
	t, r := res.task, res.run
	r.cancel()
	if t.run == r {
		t.run = nil
	}
	if r.remove {
		m.removes--
		m.finishRemove(t, r, res.err)
	} else {
		m.adds--
		m.finishDownload(t, r, res.err)
	}
	m.evaluate()
	m.checkQuiesced()
}

func (m *Manager) finishDownload(t *task, r *run, err error) {
	t.downloaded, t.total = r.downloaded.Load(), r.total.Load()
	switch {
	case t.state == StateRemoving:
		// superseded by a remove, which starts on the next evaluation
	case err == nil && r.reason == reasonRekey:
		m.setState(t, StateQueued)
	case err == nil:
		t.err = nil
		if t.total > 0 {
			t.downloaded = t.total
		}
		m.dirty = true
		m.setState(t, StateCompleted)
	case r.reason != reasonNone || isCancelled(err):
		m.setState(t, StateQueued)
	default:
		m.retryOrFail(t, err, StateQueued)
	}
}

func (m *Manager) finishRemove(t *task, r *run, err error) {
	switch {
	case err == nil:
		m.setState(t, StateRemoved)
		m.dirty = true
		i := m.index(t)
		if i < 0 {
			return
		}
		if t.pending == nil {
			m.tasks = slices.Delete(m.tasks, i, i+1)
			return
		}
		next := &task{id: t.pending.id, action: t.pending.action, state: StateQueued}
		m.tasks[i] = next
		m.outbox = append(m.outbox, notification{snap: next.snapshot(StateQueued)})
		m.log.Debug().Str("op", "manager/remove").Str("task", next.id).Msg("pending add queued after removal")
	case r.reason != reasonNone || isCancelled(err):
		// stays REMOVING and runs again once downloads are started
	default:
		m.retryOrFail(t, err, StateRemoving)
	}
}

// retryOrFail applies the failure policy. Unsupported formats fail at once,
// everything else is retried with back-off until MaxRetries is spent.
func (m *Manager) retryOrFail(t *task, err error, requeue State) {
	if isFatal(err) || t.retries >= m.opts.MaxRetries {
		t.err = err
		m.log.Warn().Str("op", "manager/retry").Str("task", t.id).Str("content", t.action.ContentID).
			Int("retries", t.retries).Err(err).Msg("task failed")
		m.setState(t, StateFailed)
		return
	}
	t.retries++
	wait := m.backoff(t.retries)
	t.notBefore = time.Now().Add(wait)
	m.scheduleWake(t.notBefore)
	m.log.Debug().Str("op", "manager/retry").Str("task", t.id).Int("retry", t.retries).
		Dur("backoff", wait).Err(err).Msg("retrying task")
	m.setState(t, requeue)
}
