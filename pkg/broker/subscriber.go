package broker

import (
	"sync"

	"github.com/go2school/go2school/pkg/store"
	"github.com/rs/zerolog"
)

// subscriber is the mailbox of a single subscription
type subscriber struct {
	id         uint64
	collection string
	callback   Callback
	logger     zerolog.Logger

	mu          sync.Mutex
	pending     []store.Snapshot
	running     bool
	cancelled   bool
	lastOffered uint64
	lastInvoked uint64
}

// deliverInitial runs the callback on the caller's goroutine. Snapshots published
// meanwhile are queued and handed to a new goroutine afterwards, except those older
// than the initial snapshot.
func (s *subscriber) deliverInitial(snapshot store.Snapshot) {
	s.mu.Lock()
	s.lastOffered = max(s.lastOffered, snapshot.Version)
	s.lastInvoked = snapshot.Version
	s.mu.Unlock()

	s.invoke(snapshot)

	if next, ok := s.next(); ok {
		go s.drain(next)
	}
}

// offer hands a published snapshot to the subscriber, delivering it on the caller's
// goroutine unless an earlier delivery is still running.
func (s *subscriber) offer(snapshot store.Snapshot) {
	s.mu.Lock()
	if s.cancelled || snapshot.Version < s.lastOffered {
		s.mu.Unlock()
		return
	}
	s.lastOffered = snapshot.Version

	if s.running {
		s.pending = append(s.pending, snapshot)
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.drain(snapshot)
}

func (s *subscriber) drain(snapshot store.Snapshot) {
	for s.claim(snapshot) {
		s.invoke(snapshot)

		next, ok := s.next()
		if !ok {
			return
		}
		snapshot = next
	}
}

// claim records the snapshot as the one being delivered, or marks the mailbox idle
// when the subscription was cancelled since it was queued.
func (s *subscriber) claim(snapshot store.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		s.running = false
		s.pending = nil
		return false
	}

	s.lastInvoked = snapshot.Version
	return true
}

// next pops the following queued snapshot, skipping any older than the last one
// delivered, or marks the mailbox idle.
func (s *subscriber) next() (store.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.cancelled && len(s.pending) > 0 {
		snapshot := s.pending[0]
		s.pending = s.pending[1:]

		if snapshot.Version >= s.lastInvoked {
			return snapshot, true
		}
	}

	s.running = false
	s.pending = nil
	return store.Snapshot{}, false
}

func (s *subscriber) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelled = true
	s.pending = nil
}

func (s *subscriber) invoke(snapshot store.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Str("collection", s.collection).
				Uint64("subscription", s.id).
				Msg("Subscriber callback panicked")
		}
	}()

	s.callback(snapshot)
}
