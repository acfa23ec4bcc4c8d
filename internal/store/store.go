// Package store implements the session repository: the authoritative,
// mutable per-conversation state, keyed by session identifier.
//
// Access follows a read-copy/write-back discipline: Get hands out a deep
// copy of the session (creating a default one for unknown identifiers) and
// Commit atomically replaces the stored value. One mutex guards the shared
// cache for both operations; it is never held across I/O. If two turns for
// the same session truly overlap, last write wins, which matches the
// single-user-per-session access pattern.
//
// Idle sessions are evicted by TTL (go-cache), so sustained traffic does
// not leak memory. Store operations do not fail: a missing key always
// yields a fresh default session.
package store

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/QHanh/ChatbotHM/internal/domain"
)

// Store is a concurrency-safe session repository with TTL eviction.
type Store struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// New creates a Store whose sessions expire after ttl of inactivity and
// are purged every purge interval. ttl <= 0 disables expiry.
func New(ttl, purge time.Duration) *Store {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	if purge <= 0 {
		purge = 10 * time.Minute
	}
	return &Store{cache: gocache.New(ttl, purge)}
}

// Get returns a deep copy of the session for id, creating an idle default
// session if none exists yet. The default is not stored until Commit.
func (s *Store) Get(id string) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(id); ok {
		return v.(*domain.Session).Clone()
	}
	return domain.NewSession()
}

// Commit atomically replaces the stored session for id and refreshes its
// TTL.
func (s *Store) Commit(id string, sess domain.Session) {
	stored := sess.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(id, &stored, gocache.DefaultExpiration)
}

// Range calls fn for every live session with a deep copy of its state.
// fn returning false stops the iteration. The lock is held only while
// snapshotting, not while fn runs.
func (s *Store) Range(fn func(id string, sess domain.Session) bool) {
	s.mu.Lock()
	items := s.cache.Items()
	type entry struct {
		id   string
		sess domain.Session
	}
	snap := make([]entry, 0, len(items))
	for id, it := range items {
		snap = append(snap, entry{id: id, sess: it.Object.(*domain.Session).Clone()})
	}
	s.mu.Unlock()

	for _, e := range snap {
		if !fn(e.id, e.sess) {
			return
		}
	}
}

// SetBotEnabled flips the per-session admin switch, creating the session
// if it does not exist yet so the switch survives until first contact.
func (s *Store) SetBotEnabled(id string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sess domain.Session
	if v, ok := s.cache.Get(id); ok {
		sess = v.(*domain.Session).Clone()
	} else {
		sess = domain.NewSession()
	}
	sess.BotEnabled = enabled
	s.cache.Set(id, &sess, gocache.DefaultExpiration)
}

// SetMode force-sets the state-machine mode for a session (admin surface:
// "mark as human-handled"). Unknown sessions are created first.
func (s *Store) SetMode(id string, mode domain.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sess domain.Session
	if v, ok := s.cache.Get(id); ok {
		sess = v.(*domain.Session).Clone()
	} else {
		sess = domain.NewSession()
	}
	sess.Mode = mode
	s.cache.Set(id, &sess, gocache.DefaultExpiration)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.ItemCount()
}
