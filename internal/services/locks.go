package services

import "sync"

// RoomLocker serializes check-then-act sequences per room. Both engines take
// the room's lock around any read-modify-write, so answers arriving
// near-simultaneously on separate connections cannot double-resolve a round.
type RoomLocker struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewRoomLocker() *RoomLocker {
	return &RoomLocker{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the mutex for the given room, creating it on first use.
// Returns the unlock function.
func (l *RoomLocker) Lock(roomID int64) func() {
	l.mu.Lock()
	lock, ok := l.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[roomID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// PairLocker serializes invitation check-then-act sequences. Lock takes one
// mutex per user, acquired in ascending id order, so two operations touching
// either of the same users are mutually exclusive and cannot deadlock.
type PairLocker struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewPairLocker() *PairLocker {
	return &PairLocker{locks: make(map[int64]*sync.Mutex)}
}

func (l *PairLocker) userLock(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}

// Lock acquires the mutexes for both users and returns the unlock function
func (l *PairLocker) Lock(userA, userB int64) func() {
	if userA > userB {
		userA, userB = userB, userA
	}
	first := l.userLock(userA)
	second := l.userLock(userB)

	first.Lock()
	if second != first {
		second.Lock()
	}
	return func() {
		if second != first {
			second.Unlock()
		}
		first.Unlock()
	}
}
