// Package ageverify enforces age verification for restricted products via
// a per-basket state machine driven by basket and payment events.
package ageverify

import (
	"sync"
	"time"

	"github.com/openretail-labs/magpie/internal/domain"
)

// entry wraps one basket's verification state with its creation time for
// TTL eviction.
type entry struct {
	createdAt time.Time
	state     domain.VerificationState
}

// Store holds per-basket verification state behind one exclusive lock.
// Invariant maintained after every mutation:
// RequiresVerification == (len(RestrictedItems) > 0).
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	basketTTL     time.Duration
	sweepInterval time.Duration
	lastSweep     time.Time

	now func() time.Time
}

// NewStore creates a verification state store.
func NewStore(cfg domain.DispatchConfig) *Store {
	ttl := cfg.BasketTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = 5 * time.Minute
	}
	return &Store{
		entries:       make(map[string]*entry),
		basketTTL:     ttl,
		sweepInterval: sweep,
		lastSweep:     time.Now(),
		now:           time.Now,
	}
}

// Create initializes state for a basket if absent.
func (s *Store) Create(basketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeSweep()
	s.getOrCreate(basketID)
}

// Get returns a copy of the basket's verification state.
func (s *Store) Get(basketID string) (domain.VerificationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	en, ok := s.entries[basketID]
	if !ok {
		return domain.VerificationState{}, false
	}
	return copyState(&en.state), true
}

// AddRestrictedItem appends a restricted item, deduplicated by product ID,
// and marks verification required. Returns the updated item list.
func (s *Store) AddRestrictedItem(basketID string, item domain.RestrictedItem) []domain.RestrictedItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	en := s.getOrCreate(basketID)
	exists := false
	for _, it := range en.state.RestrictedItems {
		if it.ProductID == item.ProductID {
			exists = true
			break
		}
	}
	if !exists {
		en.state.RestrictedItems = append(en.state.RestrictedItems, item)
	}
	en.state.RequiresVerification = len(en.state.RestrictedItems) > 0

	out := make([]domain.RestrictedItem, len(en.state.RestrictedItems))
	copy(out, en.state.RestrictedItems)
	return out
}

// RemoveRestrictedItem drops the matching entry and recomputes the
// verification requirement from the remaining list.
func (s *Store) RemoveRestrictedItem(basketID, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	en, ok := s.entries[basketID]
	if !ok {
		return
	}
	kept := en.state.RestrictedItems[:0]
	for _, it := range en.state.RestrictedItems {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	en.state.RestrictedItems = kept
	en.state.RequiresVerification = len(kept) > 0
}

// CompleteVerification records the verifier, age and method, and marks the
// basket verified. Reports whether state existed.
func (s *Store) CompleteVerification(basketID, verifierEmployeeID string, customerAge int, method string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	en, ok := s.entries[basketID]
	if !ok {
		return false
	}
	en.state.VerificationCompleted = true
	en.state.VerifiedAt = s.now()
	en.state.VerifierEmployeeID = verifierEmployeeID
	en.state.CustomerAge = customerAge
	en.state.VerificationMethod = method
	return true
}

// Clear removes the basket's state entirely.
func (s *Store) Clear(basketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, basketID)
}

// RequiresVerification reports whether verification is required and not
// yet completed for the basket.
func (s *Store) RequiresVerification(basketID string) (required, completed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	en, ok := s.entries[basketID]
	if !ok {
		return false, false
	}
	return en.state.RequiresVerification, en.state.VerificationCompleted
}

// Sweep forces a TTL eviction pass.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
}

func (s *Store) getOrCreate(basketID string) *entry {
	en, ok := s.entries[basketID]
	if !ok {
		en = &entry{
			createdAt: s.now(),
			state: domain.VerificationState{
				BasketID: basketID,
			},
		}
		s.entries[basketID] = en
	}
	return en
}

func (s *Store) maybeSweep() {
	if s.now().Sub(s.lastSweep) < s.sweepInterval {
		return
	}
	s.sweep()
}

func (s *Store) sweep() {
	now := s.now()
	for id, en := range s.entries {
		if now.Sub(en.createdAt) > s.basketTTL {
			delete(s.entries, id)
		}
	}
	s.lastSweep = now
}

func copyState(st *domain.VerificationState) domain.VerificationState {
	out := *st
	out.RestrictedItems = make([]domain.RestrictedItem, len(st.RestrictedItems))
	copy(out.RestrictedItems, st.RestrictedItems)
	return out
}
