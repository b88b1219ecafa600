package session

// Session is one live client connection attached to an actor. Deliver pushes
// one already-encoded event frame; a non-nil error marks the session dead
// and the owning actor evicts it immediately (no retry).
type Session interface {
	ID() string
	Deliver(payload []byte) error
	Close()
}

// Registry is the in-memory set of live sessions owned by a single actor.
// It is deliberately not safe for concurrent use: every actor mutates its
// registry only from inside its own single-flight tasks, so the per-key
// serialization is the lock. Registries are never persisted; after an actor
// is torn down clients simply re-attach.
type Registry struct {
	sessions map[string]Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

// Add attaches s, replacing any previous session with the same ID.
func (r *Registry) Add(s Session) {
	if old, ok := r.sessions[s.ID()]; ok && old != s {
		old.Close()
	}
	r.sessions[s.ID()] = s
}

// Remove detaches the session with the given ID, if present.
func (r *Registry) Remove(id string) {
	delete(r.sessions, id)
}

// Len reports the number of attached sessions.
func (r *Registry) Len() int { return len(r.sessions) }

// Broadcast delivers payload to every attached session. Sessions whose
// delivery fails are closed and evicted; the number of successful deliveries
// and the IDs of evicted sessions are returned. Delivery order per session
// follows broadcast order, which follows the actor's append order.
func (r *Registry) Broadcast(payload []byte) (delivered int, evicted []string) {
	for id, s := range r.sessions {
		if err := s.Deliver(payload); err != nil {
			s.Close()
			delete(r.sessions, id)
			evicted = append(evicted, id)
			continue
		}
		delivered++
	}
	return delivered, evicted
}

// Each calls fn for every attached session until fn returns false. Used by
// the hub to apply per-session filters before delivery.
func (r *Registry) Each(fn func(s Session) bool) {
	for _, s := range r.sessions {
		if !fn(s) {
			return
		}
	}
}

// Evict closes and removes the session with the given ID.
func (r *Registry) Evict(id string) {
	if s, ok := r.sessions[id]; ok {
		s.Close()
		delete(r.sessions, id)
	}
}
