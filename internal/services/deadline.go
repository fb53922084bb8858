package services

import (
	"sync"
	"time"
)

// DeadlineScheduler arms at most one timer per room. Engines re-arm it on
// every natural progression and cancel it when a round resolves or the room
// finishes; the expiry action is whatever policy the engine passed in.
// A zero duration disables scheduling entirely.
type DeadlineScheduler struct {
	mu     sync.Mutex
	timers map[int64]*time.Timer
}

// NewDeadlineScheduler creates an empty scheduler
func NewDeadlineScheduler() *DeadlineScheduler {
	return &DeadlineScheduler{timers: make(map[int64]*time.Timer)}
}

// Arm schedules fn to run after d, replacing any timer already armed for the
// room. No-op when d is zero.
func (s *DeadlineScheduler) Arm(roomID int64, d time.Duration, fn func()) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[roomID]; ok {
		timer.Stop()
	}
	s.timers[roomID] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, roomID)
		s.mu.Unlock()
		fn()
	})
}

// Stop cancels every armed timer. Called on server shutdown.
func (s *DeadlineScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for roomID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, roomID)
	}
}

// Cancel stops and drops the room's timer, if any
func (s *DeadlineScheduler) Cancel(roomID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[roomID]; ok {
		timer.Stop()
		delete(s.timers, roomID)
	}
}
