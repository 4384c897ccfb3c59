package dispatch

import "sync"

// SessionRegistry indexes live driver sessions by driver id so the
// broadcaster can target connected drivers. A reconnect replaces the old
// session; the stale one only removes itself if it is still current.
type SessionRegistry struct {
	mu      sync.RWMutex
	drivers map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{drivers: make(map[string]*Session)}
}

func (r *SessionRegistry) Add(s *Session) {
	if s.DriverID == "" {
		return
	}
	r.mu.Lock()
	r.drivers[s.DriverID] = s
	r.mu.Unlock()
}

func (r *SessionRegistry) Remove(s *Session) {
	if s.DriverID == "" {
		return
	}
	r.mu.Lock()
	if cur, ok := r.drivers[s.DriverID]; ok && cur == s {
		delete(r.drivers, s.DriverID)
	}
	r.mu.Unlock()
}

func (r *SessionRegistry) Driver(driverID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.drivers[driverID]
	return s, ok
}

// Drivers returns a snapshot of connected driver sessions.
func (r *SessionRegistry) Drivers() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.drivers))
	for _, s := range r.drivers {
		out = append(out, s)
	}
	return out
}
