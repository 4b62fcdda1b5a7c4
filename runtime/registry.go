// Package runtime owns the realtime core: the connection registry that
// tracks presence, and the delivery pipeline that moves messages from a
// verified sender to durable storage and then to the recipient's live
// connection. It orchestrates without containing business rules.
package runtime

import (
	"sort"
	"sync"

	"linkup/contract"
)

// session binds a user's single live connection to its event sink.
type session struct {
	connID string
	sink   contract.EventSink
}

// ConnectionRegistry is the only source of presence truth. It keeps a
// forward map (userID -> session) and a reverse index
// (connID -> userID) that always mutate together under one lock, so a
// disconnect resolves its owner in constant time and a stale
// connection can never evict a newer one.
type ConnectionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]session // userID -> live connection
	owners   map[string]string  // connID -> userID
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		sessions: make(map[string]session),
		owners:   make(map[string]string),
	}
}

// Register binds userID to connID, replacing any previous connection of
// that user (last write wins). The replaced connection's reverse entry
// is dropped so its own later Unregister becomes a no-op. Returns true
// when the presence snapshot changed, i.e. the user was absent before.
func (r *ConnectionRegistry) Register(userID, connID string, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, wasPresent := r.sessions[userID]
	if wasPresent {
		delete(r.owners, previous.connID)
	}
	r.sessions[userID] = session{connID: connID, sink: sink}
	r.owners[connID] = userID

	return !wasPresent
}

// Unregister removes the connection and its owner's presence. Unknown
// connection IDs are ignored: disconnect races must not crash anything,
// and a connection orphaned by a newer Register must not touch the
// current mapping. Returns the owning userID and whether the presence
// snapshot changed.
func (r *ConnectionRegistry) Unregister(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[connID]
	if !ok {
		return "", false
	}
	delete(r.owners, connID)
	delete(r.sessions, userID)
	return userID, true
}

// Lookup returns the live sink of a user, if any. No side effects.
func (r *ConnectionRegistry) Lookup(userID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	if !ok {
		return nil, false
	}
	return s.sink, true
}

// Snapshot returns the set of currently online users, sorted for
// deterministic payloads.
func (r *ConnectionRegistry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	online := make([]string, 0, len(r.sessions))
	for userID := range r.sessions {
		online = append(online, userID)
	}
	sort.Strings(online)
	return online
}

// Sinks returns every live connection sink, for presence fan-out.
func (r *ConnectionRegistry) Sinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.sessions))
	for _, s := range r.sessions {
		sinks = append(sinks, s.sink)
	}
	return sinks
}
