// Package session implements the server-side ActiveSession registry
// and the ReadFile priority-admission queues of spec.md §3 and §4.4,
// grounded on the teacher's mutex-guarded in-memory registries (e.g.
// backend/hasher's hash-record cache) adapted to this domain's
// reference-counted session lifecycle.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// ActiveSession is the per-client-session state kept alive across all
// of a session's connections (spec.md §3): the set of destination
// directories this session has already created (read by WriteFile's
// decision tree, written by CreateDir), and a reference count of live
// connections. The session is destroyed when the count returns to 0.
type ActiveSession struct {
	mu          sync.Mutex
	connections int
	createdDirs map[string]struct{}
}

func newActiveSession() *ActiveSession {
	return &ActiveSession{createdDirs: make(map[string]struct{})}
}

// MarkDirCreated records that dir was created by this session
// (§4.2 CreateDir: "inserts newly created directories into the active
// session's created_dirs").
func (s *ActiveSession) MarkDirCreated(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createdDirs[dir] = struct{}{}
}

// CreatedDir reports whether dir was created by this session, the
// check WriteFile's decision tree makes at step 3 ("if the destination
// directory was NOT created by this session, stat destination").
func (s *ActiveSession) CreatedDir(dir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.createdDirs[dir]
	return ok
}

// Registry is the server's secret-GUID-keyed map of ActiveSessions
// (spec.md §3 "ActiveSession (per client session, keyed by secret
// GUID)"), guarded by a single mutex per §5's "ActiveSessions: single
// mutex; secret GUID handshake runs inside the critical section for
// uniqueness."
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*ActiveSession
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*ActiveSession)}
}

// Acquire increments the connection count of the session named by
// secret, creating it if this is the first connection to reference it,
// and returns it. Pair every Acquire with a Release.
func (r *Registry) Acquire(secret uuid.UUID) *ActiveSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[secret]
	if !ok {
		s = newActiveSession()
		r.sessions[secret] = s
	}
	s.connections++
	return s
}

// Lookup returns the session for secret without changing its
// connection count, or nil if it does not exist — used to "look up in
// ActiveSessions and reject unknown" for a nonzero secret the client
// presents (§4.2 Environment).
func (r *Registry) Lookup(secret uuid.UUID) *ActiveSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[secret]
}

// Release decrements the session's connection count and tears it down
// once the last connection exits (§4.4 "Active sessions are
// reference-counted by GUID; the last connection to exit tears the
// session down").
func (r *Registry) Release(secret uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[secret]
	if !ok {
		return
	}
	s.connections--
	if s.connections <= 0 {
		delete(r.sessions, secret)
	}
}

// Count reports how many sessions are currently live, for tests and
// diagnostics.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
