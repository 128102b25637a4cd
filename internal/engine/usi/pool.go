package usi

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
)

// SpawnFunc starts a ready session for opt.
type SpawnFunc func(ctx context.Context, opt Options) (*Session, error)

type PoolConfig struct {
	BinaryPath        string
	PerPresetCapacity int
	// Spawn overrides process startup. BinaryPath is ignored when set.
	Spawn SpawnFunc
}

// Pool keeps warm engine sessions bucketed by option set.
type Pool struct {
	spawn             SpawnFunc
	perPresetCapacity int

	mu       sync.Mutex
	buckets  map[string]*sessionBucket
	sessions map[*Session]*sessionBucket
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	spawn := cfg.Spawn
	if spawn == nil {
		if cfg.BinaryPath == "" {
			return nil, fmt.Errorf("binary path required")
		}
		if _, err := os.Stat(cfg.BinaryPath); err != nil {
			return nil, fmt.Errorf("usi engine binary check: %w", err)
		}
		path := cfg.BinaryPath
		spawn = func(ctx context.Context, opt Options) (*Session, error) {
			return NewSession(ctx, path, opt)
		}
	}

	capacity := cfg.PerPresetCapacity
	if capacity <= 0 {
		capacity = defaultPerPresetCapacity()
	}

	return &Pool{
		spawn:             spawn,
		perPresetCapacity: capacity,
		buckets:           make(map[string]*sessionBucket),
		sessions:          make(map[*Session]*sessionBucket),
	}, nil
}

func (p *Pool) Acquire(ctx context.Context, opt Options) (*Session, error) {
	bucket := p.getBucket(opt)

	for {
		if session, ok := p.takeIdle(ctx, bucket, false); ok {
			return session, nil
		}

		session, err := bucket.create(ctx)
		if err == nil {
			p.track(session, bucket)
			return session, nil
		}
		if !errors.Is(err, errBucketAtCapacity) {
			return nil, err
		}

		if session, ok := p.takeIdle(ctx, bucket, true); ok {
			return session, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// takeIdle pops a healthy idle session. With wait set it blocks until one
// is released or ctx ends.
func (p *Pool) takeIdle(ctx context.Context, bucket *sessionBucket, wait bool) (*Session, bool) {
	var session *Session
	if wait {
		select {
		case session = <-bucket.idle:
		case <-ctx.Done():
			return nil, false
		}
	} else {
		select {
		case session = <-bucket.idle:
		default:
			return nil, false
		}
	}
	if session == nil {
		return nil, false
	}
	if err := session.EnsureReady(ctx); err != nil {
		bucket.discard(session)
		return nil, false
	}
	p.track(session, bucket)
	return session, true
}

// Release returns session to its bucket. A non-nil err discards it.
func (p *Pool) Release(session *Session, err error) {
	if session == nil {
		return
	}

	p.mu.Lock()
	bucket, ok := p.sessions[session]
	if !ok {
		p.mu.Unlock()
		_ = session.Close()
		return
	}
	delete(p.sessions, session)
	p.mu.Unlock()

	if err != nil || !bucket.put(session) {
		bucket.discard(session)
	}
}

func (p *Pool) Close() error {
	p.mu.Lock()
	buckets := make([]*sessionBucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.sessions = make(map[*Session]*sessionBucket)
	p.mu.Unlock()

	var errs []error
	for _, bucket := range buckets {
		errs = append(errs, bucket.drain()...)
	}
	return errors.Join(errs...)
}

func (p *Pool) track(session *Session, bucket *sessionBucket) {
	p.mu.Lock()
	p.sessions[session] = bucket
	p.mu.Unlock()
}

func (p *Pool) getBucket(opt Options) *sessionBucket {
	key := optionsKey(opt)
	p.mu.Lock()
	defer p.mu.Unlock()
	bucket, ok := p.buckets[key]
	if !ok {
		bucket = newSessionBucket(p.spawn, opt, p.perPresetCapacity)
		p.buckets[key] = bucket
	}
	return bucket
}

type sessionBucket struct {
	opt      Options
	capacity int
	spawn    SpawnFunc

	mu    sync.Mutex
	total int
	idle  chan *Session
}

var errBucketAtCapacity = errors.New("session bucket at capacity")

func newSessionBucket(spawn SpawnFunc, opt Options, capacity int) *sessionBucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &sessionBucket{
		opt:      opt,
		capacity: capacity,
		spawn:    spawn,
		idle:     make(chan *Session, capacity),
	}
}

func (b *sessionBucket) create(ctx context.Context) (*Session, error) {
	b.mu.Lock()
	if b.total >= b.capacity {
		b.mu.Unlock()
		return nil, errBucketAtCapacity
	}
	b.total++
	b.mu.Unlock()

	session, err := b.spawn(ctx, b.opt)
	if err != nil {
		b.decrement()
		return nil, err
	}
	return session, nil
}

func (b *sessionBucket) put(session *Session) bool {
	select {
	case b.idle <- session:
		return true
	default:
		return false
	}
}

func (b *sessionBucket) discard(session *Session) {
	if session != nil {
		_ = session.Close()
	}
	b.decrement()
}

func (b *sessionBucket) drain() []error {
	var errs []error
	for {
		select {
		case session := <-b.idle:
			if session == nil {
				continue
			}
			if err := session.Close(); err != nil {
				errs = append(errs, err)
			}
			b.decrement()
		default:
			return errs
		}
	}
}

func (b *sessionBucket) decrement() {
	b.mu.Lock()
	if b.total > 0 {
		b.total--
	}
	b.mu.Unlock()
}

func (b *sessionBucket) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

func optionsKey(opt Options) string {
	return fmt.Sprintf("thr=%d|hash=%d|multipv=%d", opt.Threads, opt.HashMB, opt.MultiPV)
}

func defaultPerPresetCapacity() int {
	return min(max(runtime.NumCPU(), 2), 4)
}
