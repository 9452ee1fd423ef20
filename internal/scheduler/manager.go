package scheduler

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/hoard/internal/action"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxParallelDownloads = 2
	DefaultMaxParallelRemoves   = 2
	DefaultMaxRetryBackoff      = time.Minute
)

type Options struct {
	Log           Log
	Deserializers action.Deserializers
	Downloaders   DownloaderFactory

	MaxParallelDownloads int
	MaxParallelRemoves   int
	// MaxRetries is the number of automatic retries after the first failure.
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration

	// Listeners registered here also see the tasks restored from the log.
	Listeners []Listener
	Logger    *zerolog.Logger
	NewID     func() string
}

// Manager owns the task queue. All queue and task state lives on one
// goroutine; public methods hand closures to it and wait for the answer,
// workers report back over a channel.
type Manager struct {
	opts   Options
	log    zerolog.Logger
	notify *notifier
	pool   errgroup.Group

	requests chan func()
	results  chan result
	wake     chan struct{}
	done     chan struct{}

	// owned by the loop goroutine
	tasks        []*task
	started      bool
	releasing    bool
	adds         int
	removes      int
	dirty        bool
	idleNotified bool
	failure      error
	outbox       []notification
	quiesced     []chan struct{}
	timer        *time.Timer
	timerAt      time.Time
}

type result struct {
	task *task
	run  *run
	err  error
}

// New loads the action log and starts the manager goroutine. Downloads do
// not run until StartDownloads is called.
func New(opts Options) (*Manager, error) {
	if opts.Log == nil {
		return nil, errors.New("scheduler: Options.Log is required")
	}
	if opts.Deserializers == nil {
		return nil, errors.New("scheduler: Options.Deserializers is required")
	}
	if opts.Downloaders == nil {
		return nil, errors.New("scheduler: Options.Downloaders is required")
	}
	if opts.MaxParallelDownloads <= 0 {
		opts.MaxParallelDownloads = DefaultMaxParallelDownloads
	}
	if opts.MaxParallelRemoves <= 0 {
		opts.MaxParallelRemoves = DefaultMaxParallelRemoves
	}
	opts.MaxRetries = max(opts.MaxRetries, 0)
	opts.RetryBackoff = max(opts.RetryBackoff, 0)
	if opts.MaxRetryBackoff <= 0 {
		opts.MaxRetryBackoff = DefaultMaxRetryBackoff
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	logger := log.With().Str("component", "scheduler").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	m := &Manager{
		opts:     opts,
		log:      logger,
		requests: make(chan func()),
		results:  make(chan result, 16),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	entries, err := opts.Log.Load(opts.Deserializers)
	if err != nil {
		return nil, err
	}
	m.restore(entries)
	m.notify = newNotifier(opts.Listeners)
	m.notify.post(m.outbox...)
	m.outbox = nil
	go m.loop()
	return m, nil
}

func (m *Manager) restore(entries []action.Entry) {
	for _, e := range entries {
		if e.Err != nil {
			if m.find(e.Action.ContentID) != nil {
				m.log.Warn().Str("op", "manager/restore").Str("content", e.Action.ContentID).Err(e.Err).Msg("dropping undecodable duplicate entry")
				continue
			}
			t := &task{id: e.TaskID, action: e.Action, state: StateFailed, err: e.Err}
			m.tasks = append(m.tasks, t)
			m.outbox = append(m.outbox, notification{snap: t.snapshot(StateFailed)})
			m.log.Warn().Str("op", "manager/restore").Str("task", t.id).Err(e.Err).Msg("restored entry as failed")
			continue
		}
		m.merge(e.Action, e.TaskID)
	}
	m.dirty = false
	m.log.Debug().Str("op", "manager/restore").Msgf("restored %d tasks from %d log entries", len(m.tasks), len(entries))
}

func (m *Manager) loop() {
	defer close(m.done)
	for {
		select {
		case fn := <-m.requests:
			fn()
		case res := <-m.results:
			m.handleResult(res)
		case <-m.wake:
			m.evaluate()
		}
		if m.releasing && m.adds+m.removes == 0 {
			m.finishRelease()
			return
		}
	}
}

// call runs fn on the manager goroutine and waits for it.
func (m *Manager) call(fn func()) error {
	finished := make(chan struct{})
	select {
	case m.requests <- func() { defer close(finished); fn() }:
	case <-m.done:
		return ErrReleased
	}
	<-finished
	return nil
}

// AddAction merges a into the queue and persists the queue before returning.
func (m *Manager) AddAction(a action.Action) (TaskSnapshot, error) {
	var snap TaskSnapshot
	var err error
	if cerr := m.call(func() { snap, err = m.addAction(a) }); cerr != nil {
		return TaskSnapshot{}, cerr
	}
	return snap, err
}

// RemoveAction requests removal of everything cached for contentID. An empty
// format reuses the format of the queued task; content without a task, such
// as content completed in an earlier run, needs the format to be named.
func (m *Manager) RemoveAction(format, contentID string) (TaskSnapshot, error) {
	var snap TaskSnapshot
	var err error
	cerr := m.call(func() {
		version := 0
		if t := m.find(contentID); t != nil && (format == "" || format == t.action.Format) {
			format, version = t.action.Format, t.action.Version
		} else if d, ok := m.opts.Deserializers.Deserializer(format); ok {
			version = d.Version()
		}
		snap, err = m.addAction(action.NewRemove(format, version, contentID, nil))
	})
	if cerr != nil {
		return TaskSnapshot{}, cerr
	}
	return snap, err
}

func (m *Manager) addAction(a action.Action) (TaskSnapshot, error) {
	if err := m.usable(); err != nil {
		return TaskSnapshot{}, err
	}
	decoded, err := action.Check(m.opts.Deserializers, a)
	if err != nil {
		return TaskSnapshot{}, err
	}
	t := m.merge(decoded, "")
	if err := m.persist(); err != nil {
		m.fail(err)
		return TaskSnapshot{}, err
	}
	snap := t.snapshot(t.state)
	m.evaluate()
	return snap, nil
}

func (m *Manager) usable() error {
	if m.releasing {
		return ErrReleased
	}
	if m.failure != nil {
		return fmt.Errorf("%w: %v", ErrManagerFailed, m.failure)
	}
	return nil
}

// StartDownloads lets queued tasks run. Calling it again has no effect.
func (m *Manager) StartDownloads() error {
	var err error
	if cerr := m.call(func() {
		if err = m.usable(); err != nil {
			return
		}
		if !m.started {
			m.log.Info().Str("op", "manager/start").Msg("downloads started")
		}
		m.started = true
		m.evaluate()
	}); cerr != nil {
		return cerr
	}
	return err
}

// StopDownloads cancels running calls and returns once they all reported.
// Interrupted downloads go back to the queue.
func (m *Manager) StopDownloads() error {
	quiet := make(chan struct{})
	if err := m.call(func() {
		if m.started {
			m.log.Info().Str("op", "manager/stop").Msg("downloads stopped")
		}
		m.started = false
		m.cancelAll(reasonStop)
		m.quiesced = append(m.quiesced, quiet)
		m.checkQuiesced()
	}); err != nil {
		return err
	}
	select {
	case <-quiet:
	case <-m.done:
	}
	return nil
}

// Tasks returns snapshots of every task in queue order.
func (m *Manager) Tasks() []TaskSnapshot {
	var out []TaskSnapshot
	_ = m.call(func() {
		out = make([]TaskSnapshot, 0, len(m.tasks))
		for _, t := range m.tasks {
			out = append(out, t.snapshot(t.state))
		}
	})
	return out
}

func (m *Manager) Task(id string) (TaskSnapshot, bool) {
	var snap TaskSnapshot
	var ok bool
	_ = m.call(func() {
		for _, t := range m.tasks {
			if t.id == id {
				snap, ok = t.snapshot(t.state), true
				return
			}
		}
	})
	return snap, ok
}

// Prune drops completed and failed tasks from the queue and the log.
func (m *Manager) Prune() (int, error) {
	var n int
	var err error
	cerr := m.call(func() {
		if err = m.usable(); err != nil {
			return
		}
		before := len(m.tasks)
		m.tasks = slices.DeleteFunc(m.tasks, func(t *task) bool {
			return t.run == nil && (t.state == StateCompleted || t.state == StateFailed)
		})
		n = before - len(m.tasks)
		if n == 0 {
			return
		}
		m.dirty = true
		if err = m.persist(); err != nil {
			m.fail(err)
			return
		}
		m.evaluate()
	})
	if cerr != nil {
		return 0, cerr
	}
	return n, err
}

func (m *Manager) AddListener(l Listener) {
	m.notify.add(l)
}

func (m *Manager) RemoveListener(l Listener) {
	m.notify.remove(l)
}

// Release stops downloads, waits for workers, flushes the log and ends the
// manager goroutine. Later calls are no-ops.
func (m *Manager) Release() error {
	var err error
	cerr := m.call(func() {
		m.releasing = true
		m.started = false
		m.cancelAll(reasonStop)
	})
	if cerr == nil {
		<-m.done
		err = m.failure
	}
	_ = m.pool.Wait()
	if cerr == nil {
		m.notify.close()
	}
	if errors.Is(cerr, ErrReleased) {
		return nil
	}
	return err
}

func (m *Manager) finishRelease() {
	if m.timer != nil {
		m.timer.Stop()
	}
	if m.failure == nil {
		m.dirty = true
		if err := m.persist(); err != nil {
			m.fail(err)
		}
	}
	m.notify.post(m.outbox...)
	m.outbox = nil
	m.checkQuiesced()
	m.log.Debug().Str("op", "manager/release").Msg("manager released")
}

func (m *Manager) find(contentID string) *task {
	for _, t := range m.tasks {
		if t.action.ContentID == contentID {
			return t
		}
	}
	return nil
}

func (m *Manager) index(t *task) int {
	return slices.Index(m.tasks, t)
}

func (m *Manager) setState(t *task, s State) {
	prev := t.state
	t.state = s
	m.outbox = append(m.outbox, notification{snap: t.snapshot(prev)})
	m.log.Debug().Str("op", "manager/state").Str("task", t.id).Str("content", t.action.ContentID).
		Str("from", prev.String()).Str("to", s.String()).Msg("task state changed")
}

func (m *Manager) persist() error {
	if !m.dirty || m.failure != nil {
		return nil
	}
	var entries []action.Entry
	for _, t := range m.tasks {
		entries = append(entries, t.entries()...)
	}
	if err := m.opts.Log.Store(entries); err != nil {
		return err
	}
	m.dirty = false
	return nil
}

// fail puts the manager out of service after the log could not be written.
// The file on disk still holds the last acknowledged queue.
func (m *Manager) fail(err error) {
	if m.failure != nil {
		return
	}
	m.failure = err
	m.started = false
	// transitions already made in memory are still reported
	m.notify.post(m.outbox...)
	m.outbox = nil
	m.cancelAll(reasonStop)
	m.log.Error().Str("op", "manager/persist").Err(err).Msg("action log write failed, downloads stopped")
}

func (m *Manager) cancelAll(reason cancelReason) {
	for _, t := range m.tasks {
		if t.run != nil {
			t.run.stop(reason)
		}
	}
}

func (m *Manager) checkQuiesced() {
	if m.adds+m.removes > 0 {
		return
	}
	for _, ch := range m.quiesced {
		close(ch)
	}
	m.quiesced = nil
}

// evaluate is the level-triggered scheduling pass. It runs after every
// request, worker result and timer wake-up.
func (m *Manager) evaluate() {
	if m.started && m.failure == nil {
		now := time.Now()
		var next time.Time
		for _, t := range m.tasks {
			if t.run != nil {
				continue
			}
			switch t.state {
			case StateRemoving:
				if m.removes >= m.opts.MaxParallelRemoves {
					continue
				}
			case StateQueued:
				if m.adds >= m.opts.MaxParallelDownloads {
					continue
				}
			default:
				continue
			}
			if t.notBefore.After(now) {
				if next.IsZero() || t.notBefore.Before(next) {
					next = t.notBefore
				}
				continue
			}
			if t.state == StateRemoving {
				m.startRemove(t)
			} else {
				m.startDownload(t)
			}
		}
		m.scheduleWake(next)
	}
	if err := m.persist(); err != nil {
		m.fail(err)
	}
	m.notify.post(m.outbox...)
	m.outbox = nil
	m.checkIdle()
}

func (m *Manager) scheduleWake(at time.Time) {
	if at.IsZero() {
		return
	}
	if m.timer != nil && !m.timerAt.IsZero() && !m.timerAt.After(at) && m.timerAt.After(time.Now()) {
		return
	}
	d := time.Until(at)
	m.timerAt = at
	if m.timer == nil {
		m.timer = time.AfterFunc(d, m.poke)
		return
	}
	m.timer.Reset(d)
}

func (m *Manager) poke() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) checkIdle() {
	busy := m.adds+m.removes > 0
	for _, t := range m.tasks {
		if !t.state.Terminal() {
			busy = true
			break
		}
	}
	if busy {
		m.idleNotified = false
		return
	}
	if !m.idleNotified {
		m.idleNotified = true
		m.log.Debug().Str("op", "manager/idle").Msg("queue idle")
		m.notify.post(notification{idle: true})
	}
}

func (m *Manager) backoff(retry int) time.Duration {
	if m.opts.RetryBackoff <= 0 || retry <= 0 {
		return 0
	}
	d := m.opts.RetryBackoff
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= m.opts.MaxRetryBackoff || d <= 0 {
			return m.opts.MaxRetryBackoff
		}
	}
	return min(d, m.opts.MaxRetryBackoff)
}
