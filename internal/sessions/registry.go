package sessions

import (
	"sync"

	"payment-terminal/internal/interfaces"
)

// Entry is one active subscription keyed by transaction id.
type Entry struct {
	Topic   string
	Session interfaces.SubscribeSession
}

// Registry is the process-wide table of active subscription sessions. The
// subscriber inserts, the unsubscriber removes; at most one active session
// per transaction id at a time.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register inserts a session for the transaction id. Returns false when a
// session is already active for that id.
func (r *Registry) Register(transactionID string, entry Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[transactionID]; exists {
		return false
	}
	r.entries[transactionID] = entry
	return true
}

// Take removes and returns the session for the transaction id. The
// lookup-and-remove runs under one lock so two cancellers cannot both claim
// the same session.
func (r *Registry) Take(transactionID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[transactionID]
	if exists {
		delete(r.entries, transactionID)
	}
	return entry, exists
}

// Remove drops the entry if still present. Used by the subscribe path's own
// cleanup, which may race with a cancellation that already took the entry.
func (r *Registry) Remove(transactionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, transactionID)
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
