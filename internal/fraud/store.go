// Package fraud derives per-employee, per-terminal and per-basket state
// from the event stream and evaluates fraud rules against it.
package fraud

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/openretail-labs/magpie/internal/domain"
)

// session is the per-employee state, exclusively owned by the store.
type session struct {
	employeeID    string
	terminalIDs   map[string]struct{}
	loginTime     time.Time
	activeBaskets map[string]struct{}
	totalPayments float64
}

// terminalState is the per-terminal state.
type terminalState struct {
	terminalID        string
	currentEmployeeID string
	sessionStart      time.Time
	basketCount       int
}

// basketState is the per-basket state. itemVelocity is an append-only
// timestamp log pruned to the active rule window on each check.
type basketState struct {
	basketID           string
	employeeID         string
	terminalID         string
	startTime          time.Time
	itemCount          int
	itemVelocity       []time.Time
	customerIdentified bool
	paymentAmount      float64
}

// SessionSnapshot is a copy of employee session state handed to callers.
// No caller may hold references into the store across dispatch boundaries.
type SessionSnapshot struct {
	EmployeeID    string
	TerminalIDs   []string
	LoginTime     time.Time
	ActiveBaskets []string
	TotalPayments float64
}

// TerminalSnapshot is a copy of terminal state.
type TerminalSnapshot struct {
	TerminalID        string
	CurrentEmployeeID string
	SessionStart      time.Time
	BasketCount       int
}

// BasketSnapshot is a copy of basket state.
type BasketSnapshot struct {
	BasketID           string
	EmployeeID         string
	TerminalID         string
	StartTime          time.Time
	ItemCount          int
	CustomerIdentified bool
	PaymentAmount      float64
}

// Store holds the three keyed state maps behind one exclusive lock.
// State transitions are applied unconditionally on every relevant event;
// the store does not reject stale or out-of-order updates. TTL eviction
// runs opportunistically, piggybacked on Apply.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]*session
	terminals map[string]*terminalState
	baskets   map[string]*basketState

	sessionTTL    time.Duration
	basketTTL     time.Duration
	sweepInterval time.Duration
	lastSweep     time.Time

	now func() time.Time
}

// NewStore creates a fraud state store with the given TTLs.
func NewStore(cfg domain.DispatchConfig) *Store {
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 8 * time.Hour
	}
	basketTTL := cfg.BasketTTL
	if basketTTL <= 0 {
		basketTTL = 2 * time.Hour
	}
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = 5 * time.Minute
	}
	return &Store{
		sessions:      make(map[string]*session),
		terminals:     make(map[string]*terminalState),
		baskets:       make(map[string]*basketState),
		sessionTTL:    sessionTTL,
		basketTTL:     basketTTL,
		sweepInterval: sweep,
		lastSweep:     time.Now(),
		now:           time.Now,
	}
}

// Apply updates derived state from one event.
func (s *Store) Apply(e *domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maybeSweep()

	employeeID := e.EmployeeID()
	terminalID := e.TerminalID()
	basketID := e.BasketID()

	if employeeID != "" {
		s.applyEmployee(e, employeeID, terminalID)
	}
	if terminalID != "" {
		s.applyTerminal(e, terminalID, employeeID)
	}
	if basketID != "" {
		s.applyBasket(e, basketID, employeeID, terminalID)
	}
}

func (s *Store) applyEmployee(e *domain.Event, employeeID, terminalID string) {
	switch e.Kind {
	case domain.KindEmployeeLogin:
		sess, ok := s.sessions[employeeID]
		if !ok {
			sess = &session{
				employeeID:    employeeID,
				terminalIDs:   make(map[string]struct{}),
				loginTime:     s.now(),
				activeBaskets: make(map[string]struct{}),
			}
			s.sessions[employeeID] = sess
		}
		if terminalID != "" {
			sess.terminalIDs[terminalID] = struct{}{}
		}

	case domain.KindEmployeeLogout, domain.KindSessionTerminated:
		if sess, ok := s.sessions[employeeID]; ok {
			delete(sess.terminalIDs, terminalID)
			if len(sess.terminalIDs) == 0 {
				delete(s.sessions, employeeID)
			}
		}

	case domain.KindPaymentCompleted:
		if sess, ok := s.sessions[employeeID]; ok {
			sess.totalPayments += e.Float(domain.AttrAmount)
		}
	}
}

func (s *Store) applyTerminal(e *domain.Event, terminalID, employeeID string) {
	switch e.Kind {
	case domain.KindEmployeeLogin:
		s.terminals[terminalID] = &terminalState{
			terminalID:        terminalID,
			currentEmployeeID: employeeID,
			sessionStart:      s.now(),
		}
	case domain.KindBasketStarted:
		if t, ok := s.terminals[terminalID]; ok {
			t.basketCount++
		}
	case domain.KindEmployeeLogout, domain.KindSessionTerminated:
		delete(s.terminals, terminalID)
	}
}

func (s *Store) applyBasket(e *domain.Event, basketID, employeeID, terminalID string) {
	if e.Kind == domain.KindBasketStarted {
		s.baskets[basketID] = &basketState{
			basketID:   basketID,
			employeeID: employeeID,
			terminalID: terminalID,
			startTime:  s.now(),
		}
		if sess, ok := s.sessions[employeeID]; ok {
			sess.activeBaskets[basketID] = struct{}{}
		}
		return
	}

	b, ok := s.baskets[basketID]
	if !ok {
		return
	}
	switch e.Kind {
	case domain.KindItemAdded:
		b.itemCount++
		b.itemVelocity = append(b.itemVelocity, s.now())
	case domain.KindCustomerIdentified:
		b.customerIdentified = true
	case domain.KindPaymentCompleted:
		b.paymentAmount = e.Float(domain.AttrAmount)
	}
}

// EmployeeSession returns a copy of the employee's session state.
func (s *Store) EmployeeSession(employeeID string) (SessionSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[employeeID]
	if !ok {
		return SessionSnapshot{}, false
	}
	snap := SessionSnapshot{
		EmployeeID:    sess.employeeID,
		LoginTime:     sess.loginTime,
		TotalPayments: sess.totalPayments,
	}
	for id := range sess.terminalIDs {
		snap.TerminalIDs = append(snap.TerminalIDs, id)
	}
	for id := range sess.activeBaskets {
		snap.ActiveBaskets = append(snap.ActiveBaskets, id)
	}
	sort.Strings(snap.TerminalIDs)
	sort.Strings(snap.ActiveBaskets)
	return snap, true
}

// TerminalState returns a copy of the terminal's state.
func (s *Store) TerminalState(terminalID string) (TerminalSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.terminals[terminalID]
	if !ok {
		return TerminalSnapshot{}, false
	}
	return TerminalSnapshot{
		TerminalID:        t.terminalID,
		CurrentEmployeeID: t.currentEmployeeID,
		SessionStart:      t.sessionStart,
		BasketCount:       t.basketCount,
	}, true
}

// BasketState returns a copy of the basket's state.
func (s *Store) BasketState(basketID string) (BasketSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.baskets[basketID]
	if !ok {
		return BasketSnapshot{}, false
	}
	return BasketSnapshot{
		BasketID:           b.basketID,
		EmployeeID:         b.employeeID,
		TerminalID:         b.terminalID,
		StartTime:          b.startTime,
		ItemCount:          b.itemCount,
		CustomerIdentified: b.customerIdentified,
		PaymentAmount:      b.paymentAmount,
	}, true
}

// RecentItemCount prunes the basket's item-velocity log to the window and
// returns how many additions fall inside it. Prune and count are atomic.
func (s *Store) RecentItemCount(basketID string, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.baskets[basketID]
	if !ok {
		return 0
	}

	cutoff := s.now().Add(-window)
	kept := b.itemVelocity[:0]
	for _, ts := range b.itemVelocity {
		if ts.After(cutoff) || ts.Equal(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.itemVelocity = kept
	return len(kept)
}

// Sweep forces a TTL eviction pass. Exposed for maintenance endpoints.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
}

// maybeSweep runs eviction at most once per sweep interval.
func (s *Store) maybeSweep() {
	if s.now().Sub(s.lastSweep) < s.sweepInterval {
		return
	}
	s.sweep()
}

func (s *Store) sweep() {
	now := s.now()
	var evictedSessions, evictedTerminals, evictedBaskets int

	for id, sess := range s.sessions {
		if now.Sub(sess.loginTime) > s.sessionTTL {
			delete(s.sessions, id)
			evictedSessions++
		}
	}
	for id, t := range s.terminals {
		if now.Sub(t.sessionStart) > s.sessionTTL {
			delete(s.terminals, id)
			evictedTerminals++
		}
	}
	for id, b := range s.baskets {
		if now.Sub(b.startTime) > s.basketTTL {
			delete(s.baskets, id)
			evictedBaskets++
		}
	}

	s.lastSweep = now
	if evictedSessions+evictedTerminals+evictedBaskets > 0 {
		slog.Info("fraud state sweep",
			"sessions_evicted", evictedSessions,
			"terminals_evicted", evictedTerminals,
			"baskets_evicted", evictedBaskets,
		)
	}
}
