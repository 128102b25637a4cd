package game

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Scheduler runs callbacks on the goroutine that owns a Game.
type Scheduler interface {
	Post(fn func())
	AfterFunc(d time.Duration, fn func())
}

var ErrLoopStopped = errors.New("game: loop stopped")

// Loop is a Scheduler backed by one goroutine draining a queue.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
}

func NewLoop(size int) *Loop {
	if size <= 0 {
		size = 64
	}
	return &Loop{
		queue:  make(chan func(), size),
		done:   make(chan struct{}),
		timers: make(map[*time.Timer]struct{}),
	}
}

// Run executes queued callbacks until ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

func (l *Loop) stop() {
	l.once.Do(func() {
		close(l.done)
		l.mu.Lock()
		for t := range l.timers {
			t.Stop()
		}
		l.timers = nil
		l.mu.Unlock()
	})
}

// Post enqueues fn. It is dropped once the loop has stopped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
	case l.queue <- fn:
	}
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timers == nil {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		l.mu.Lock()
		if l.timers != nil {
			delete(l.timers, t)
		}
		l.mu.Unlock()
		l.Post(fn)
	})
	l.timers[t] = struct{}{}
}

// Do runs fn on the loop and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	case l.queue <- wrapped:
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
