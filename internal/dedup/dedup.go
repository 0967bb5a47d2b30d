// Package dedup rejects redelivered events within a bounded time window.
package dedup

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/openretail-labs/magpie/internal/domain"
)

// discriminators lists the kind-specific attribute keys folded into the
// fingerprint beyond the common join keys.
var discriminators = map[domain.Kind][]string{
	domain.KindItemAdded:        {"product_id", "quantity"},
	domain.KindItemRemoved:      {"product_id"},
	domain.KindAgeVerified:      {"customer_age", "verifier_employee_id"},
	domain.KindPaymentInitiated: {"amount"},
	domain.KindPaymentCompleted: {"amount"},
}

// Deduplicator tracks recently seen event fingerprints per kind. Sets are
// cleared wholesale every window rather than per-entry: duplicate delivery
// is bounded by the clear interval, and false negatives right after a clear
// are accepted. State is in-memory only; a restart re-opens the window.
type Deduplicator struct {
	mu        sync.Mutex
	window    time.Duration
	seen      map[domain.Kind]map[uint64]struct{}
	lastClear time.Time

	now func() time.Time
}

// New creates a deduplicator with the given clear window.
func New(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Deduplicator{
		window:    window,
		seen:      make(map[domain.Kind]map[uint64]struct{}),
		lastClear: time.Now(),
		now:       time.Now,
	}
}

// IsDuplicate reports whether an event with identical content was already
// delivered within the current window, recording the event otherwise.
func (d *Deduplicator) IsDuplicate(e *domain.Event) bool {
	fp := Fingerprint(e)

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.Sub(d.lastClear) >= d.window {
		d.seen = make(map[domain.Kind]map[uint64]struct{})
		d.lastClear = now
	}

	kindSet, ok := d.seen[e.Kind]
	if !ok {
		kindSet = make(map[uint64]struct{})
		d.seen[e.Kind] = kindSet
	}

	if _, dup := kindSet[fp]; dup {
		return true
	}
	kindSet[fp] = struct{}{}
	return false
}

// Len returns the number of tracked fingerprints across all kinds.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, s := range d.seen {
		n += len(s)
	}
	return n
}

// Fingerprint computes a stable hash over the canonical field subset:
// kind, emit timestamp, the three join keys, and the kind-specific
// discriminators, written in sorted key order.
func Fingerprint(e *domain.Event) uint64 {
	keys := []string{domain.AttrBasketID, domain.AttrEmployeeID, domain.AttrTerminalID}
	keys = append(keys, discriminators[e.Kind]...)
	sort.Strings(keys)

	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d", e.Kind, e.EmittedAt.UnixNano())
	for _, k := range keys {
		v, ok := e.Attributes[k]
		if !ok {
			continue
		}
		fmt.Fprintf(h, "|%s=%v", k, v)
	}
	return h.Sum64()
}
