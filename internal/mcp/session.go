// ABOUTME: In-memory MCP sessions keyed by the Mcp-Session-Id header.
// ABOUTME: Sessions idle longer than the TTL are dropped on the next open.

package mcp

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type session struct {
	id      string
	version string
	caps    map[string]struct{}
	scope   string // face id of /mcp/faces/{faceID}, empty for /mcp

	mu       sync.Mutex
	lastUsed time.Time
}

// allows reports whether the session holds every required capability.
func (s *session) allows(required []string) bool {
	for _, c := range required {
		if _, ok := s.caps[c]; !ok {
			return false
		}
	}
	return true
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed)
}

type sessions struct {
	mu   sync.RWMutex
	byID map[string]*session
	ttl  time.Duration
	now  func() time.Time
}

func newSessions(ttl time.Duration, now func() time.Time) *sessions {
	return &sessions{byID: make(map[string]*session), ttl: ttl, now: now}
}

func (ss *sessions) open(version, scope string, caps []string) *session {
	now := ss.now()
	sess := &session{
		id:       uuid.NewString(),
		version:  version,
		caps:     make(map[string]struct{}, len(caps)),
		scope:    scope,
		lastUsed: now,
	}
	for _, c := range caps {
		sess.caps[c] = struct{}{}
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.ttl > 0 {
		for id, old := range ss.byID {
			if old.idleSince(now) > ss.ttl {
				delete(ss.byID, id)
			}
		}
	}
	ss.byID[sess.id] = sess
	return sess
}

func (ss *sessions) lookup(id string) (*session, bool) {
	ss.mu.RLock()
	sess, ok := ss.byID[id]
	ss.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := ss.now()
	if ss.ttl > 0 && sess.idleSince(now) > ss.ttl {
		ss.close(id)
		return nil, false
	}
	sess.touch(now)
	return sess, true
}

func (ss *sessions) close(id string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	_, ok := ss.byID[id]
	delete(ss.byID, id)
	return ok
}

func (ss *sessions) len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.byID)
}
