package usecase

import (
	"sync"
	"time"

	"github.com/devricklin/channel-curator/internal/biz/domain"
)

// ConfirmationStore keeps pending confirmations per user, in memory only.
// Expiry is checked when read; there is no background timer.
type ConfirmationStore struct {
	ttl time.Duration
	now func() time.Time

	slots   map[string]*userSlot
	slotsMu sync.Mutex
}

// userSlot serializes the handling of one user's messages
type userSlot struct {
	mu      sync.Mutex
	pending *domain.PendingConfirmation
}

// NewConfirmationStore creates a store; ttl <= 0 uses domain.DefaultConfirmationTTL
func NewConfirmationStore(ttl time.Duration) *ConfirmationStore {
	if ttl <= 0 {
		ttl = domain.DefaultConfirmationTTL
	}
	return &ConfirmationStore{
		ttl:   ttl,
		now:   time.Now,
		slots: make(map[string]*userSlot),
	}
}

// WithClock replaces the time source (tests)
func (s *ConfirmationStore) WithClock(now func() time.Time) *ConfirmationStore {
	s.now = now
	return s
}

func (s *ConfirmationStore) slot(user string) *userSlot {
	s.slotsMu.Lock()
	defer s.slotsMu.Unlock()
	sl, ok := s.slots[user]
	if !ok {
		sl = &userSlot{}
		s.slots[user] = sl
	}
	return sl
}

// Lock acquires the user's slot and returns its unlock func.
// Get/Set/Clear must only be called while holding it.
func (s *ConfirmationStore) Lock(user string) func() {
	sl := s.slot(user)
	sl.mu.Lock()
	return sl.mu.Unlock
}

// Get returns the live pending confirmation; an expired one is dropped and reported absent
func (s *ConfirmationStore) Get(user string) (*domain.PendingConfirmation, bool) {
	sl := s.slot(user)
	if sl.pending == nil {
		return nil, false
	}
	if sl.pending.IsExpired(s.now(), s.ttl) {
		sl.pending = nil
		return nil, false
	}
	return sl.pending, true
}

// Set stores a new pending confirmation stamped with the current time, replacing any previous one
func (s *ConfirmationStore) Set(user string, commands []domain.CommandDescriptor, question string) *domain.PendingConfirmation {
	p := &domain.PendingConfirmation{
		Commands:  commands,
		Question:  question,
		CreatedAt: s.now(),
	}
	s.slot(user).pending = p
	return p
}

// Clear removes the user's pending confirmation
func (s *ConfirmationStore) Clear(user string) {
	s.slot(user).pending = nil
}
