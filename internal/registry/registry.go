// Package registry holds the process-wide index of live websocket sessions:
// user_id → ws_id → session handle. It lives in process memory only.
package registry

import "sync"

// Handle is the delivery side of a session. Deliver must not block; the
// registry never invokes it while holding the lock.
type Handle interface {
	Deliver(payload []byte)
}

type Registry struct {
	mu       sync.Mutex
	sessions map[string]map[string]Handle
}

func New() *Registry {
	return &Registry{sessions: make(map[string]map[string]Handle)}
}

// Attach inserts a session handle under (userID, wsID), creating the inner
// map when the user has no other live sessions.
func (r *Registry) Attach(userID, wsID string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inner, ok := r.sessions[userID]
	if !ok {
		inner = make(map[string]Handle)
		r.sessions[userID] = inner
	}
	inner[wsID] = h
}

// Detach removes (userID, wsID). The outer entry is dropped once its last
// session goes away, so idle users cost nothing.
func (r *Registry) Detach(userID, wsID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inner, ok := r.sessions[userID]
	if !ok {
		return
	}
	delete(inner, wsID)
	if len(inner) == 0 {
		delete(r.sessions, userID)
	}
}

// HandlesFor returns a snapshot of the user's live handles. Callers deliver
// against the copy; the lock is released before any delivery happens.
func (r *Registry) HandlesFor(userID string) []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	inner := r.sessions[userID]
	if len(inner) == 0 {
		return nil
	}
	handles := make([]Handle, 0, len(inner))
	for _, h := range inner {
		handles = append(handles, h)
	}
	return handles
}
