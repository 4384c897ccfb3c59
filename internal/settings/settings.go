// Package settings holds process-wide mutable dispatch settings. The
// commission amount is read fresh at every accept and completion check;
// callers must not cache it beyond a single operation.
package settings

import "sync"

type Settings struct {
	mu         sync.RWMutex
	commission int64
}

func New(commission int64) *Settings {
	return &Settings{commission: commission}
}

// CommissionAmount is the fee debited from a driver's wallet per completed
// job, and the minimum balance required to accept one.
func (s *Settings) CommissionAmount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commission
}

func (s *Settings) SetCommissionAmount(v int64) {
	s.mu.Lock()
	s.commission = v
	s.mu.Unlock()
}
