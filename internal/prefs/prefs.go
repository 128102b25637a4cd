// Package prefs stores the opponent strategy chosen per session.
package prefs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * 24 * time.Hour

// Static always yields the same strategy.
type Static string

func (s Static) SelectedStrategy() string { return string(s) }

// Store persists strategy ids in redis, one key per session.
type Store struct {
	rdb        *redis.Client
	ttl        time.Duration
	defaultID  string
	validateFn func(string) bool
}

type Option func(*Store)

func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithValidator rejects ids for which ok returns false.
func WithValidator(ok func(string) bool) Option {
	return func(s *Store) { s.validateFn = ok }
}

var ErrInvalidStrategy = errors.New("prefs: invalid strategy")

func NewStore(rdb *redis.Client, defaultID string, opts ...Option) *Store {
	s := &Store{rdb: rdb, ttl: defaultTTL, defaultID: defaultID}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(sessionID string) string { return "shogi:prefs:" + strings.TrimSpace(sessionID) }

// Get returns the stored strategy, or the default when none is stored.
func (s *Store) Get(ctx context.Context, sessionID string) (string, error) {
	v, err := s.rdb.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return s.defaultID, nil
	}
	if err != nil {
		return s.defaultID, err
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, sessionID, strategy string) error {
	strategy = strings.TrimSpace(strategy)
	if strategy == "" || (s.validateFn != nil && !s.validateFn(strategy)) {
		return ErrInvalidStrategy
	}
	return s.rdb.Set(ctx, s.key(sessionID), strategy, s.ttl).Err()
}

// Session is a game.PreferenceSource bound to one session. Reads are
// served from memory; writes go through to redis.
type Session struct {
	store *Store
	id    string

	mu      sync.RWMutex
	current string
}

// Open loads the stored strategy for sessionID. A redis failure falls
// back to the default and is returned alongside the usable session.
func (s *Store) Open(ctx context.Context, sessionID string) (*Session, error) {
	v, err := s.Get(ctx, sessionID)
	return &Session{store: s, id: sessionID, current: v}, err
}

func (p *Session) SelectedStrategy() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

func (p *Session) Select(ctx context.Context, strategy string) error {
	if err := p.store.Set(ctx, p.id, strategy); err != nil {
		return err
	}
	p.mu.Lock()
	p.current = strings.TrimSpace(strategy)
	p.mu.Unlock()
	return nil
}
