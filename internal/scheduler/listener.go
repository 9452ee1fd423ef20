package scheduler

import (
	"slices"
	"sync"
)

// Listener observes the manager. Callbacks run in order on a single
// dispatcher goroutine, so they may call back into the manager, except
// Release which waits for the dispatcher.
type Listener interface {
	OnTaskStateChanged(s TaskSnapshot)
	OnIdle()
}

// ListenerFuncs adapts plain functions; pass it by pointer so that
// RemoveListener can find it again.
type ListenerFuncs struct {
	StateChanged func(s TaskSnapshot)
	Idle         func()
}

func (l *ListenerFuncs) OnTaskStateChanged(s TaskSnapshot) {
	if l.StateChanged != nil {
		l.StateChanged(s)
	}
}

func (l *ListenerFuncs) OnIdle() {
	if l.Idle != nil {
		l.Idle()
	}
}

type notification struct {
	snap TaskSnapshot
	idle bool
}

type notifier struct {
	mu        sync.Mutex
	listeners []Listener
	queue     []notification
	closed    bool
	signal    chan struct{}
	done      chan struct{}
}

func newNotifier(listeners []Listener) *notifier {
	n := &notifier{
		listeners: slices.Clone(listeners),
		signal:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *notifier) add(l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

func (n *notifier) remove(l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = slices.DeleteFunc(n.listeners, func(x Listener) bool { return x == l })
}

func (n *notifier) post(events ...notification) {
	if len(events) == 0 {
		return
	}
	n.mu.Lock()
	n.queue = append(n.queue, events...)
	n.mu.Unlock()
	n.wake()
}

func (n *notifier) wake() {
	select {
	case n.signal <- struct{}{}:
	default:
	}
}

// close delivers everything already posted and stops the dispatcher.
func (n *notifier) close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.wake()
	<-n.done
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		n.mu.Lock()
		for len(n.queue) == 0 && !n.closed {
			n.mu.Unlock()
			<-n.signal
			n.mu.Lock()
		}
		events := n.queue
		n.queue = nil
		listeners := slices.Clone(n.listeners)
		closed := n.closed
		n.mu.Unlock()

		for _, ev := range events {
			for _, l := range listeners {
				if ev.idle {
					l.OnIdle()
				} else {
					l.OnTaskStateChanged(ev.snap)
				}
			}
		}
		if closed && len(events) == 0 {
			return
		}
	}
}
