package quota

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/phrazzld/quizforge/internal/domain"
)

// Common errors returned by the Tracker
var (
	ErrUnknownBucket = errors.New("unknown bucket")
	ErrBucketFull    = errors.New("bucket has no remaining capacity")
	ErrNotReserved   = errors.New("bucket has no reservation to commit")
)

// BucketState is a point-in-time copy of one bucket's counters.
type BucketState struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Index     int    `json:"index"`
	Target    int    `json:"target"`
	Succeeded int    `json:"succeeded"`
	InFlight  int    `json:"in_flight"`
}

// Remaining is the capacity left once in-flight reservations are counted.
func (s BucketState) Remaining() int {
	return s.Target - s.Succeeded - s.InFlight
}

type entry struct {
	bucket    domain.Bucket
	succeeded int
	inFlight  int
}

func (e *entry) available() bool {
	return e.succeeded+e.inFlight < e.bucket.Target
}

// Tracker maintains succeeded and in-flight counts per bucket. It is safe
// for concurrent use.
//
// Invariants, for every bucket b at all times:
//
//	succeeded(b) + inFlight(b) <= target(b)
//	inFlight(b) >= 0
type Tracker struct {
	mu      sync.Mutex
	order   []*entry
	byID    map[string]*entry
	target  int
	success int
}

// NewTracker creates a tracker over buckets. Buckets are visited in
// category order (categories ordered by first appearance in buckets), then
// by ascending index within a category.
func NewTracker(buckets []domain.Bucket) (*Tracker, error) {
	t := &Tracker{
		order: make([]*entry, 0, len(buckets)),
		byID:  make(map[string]*entry, len(buckets)),
	}

	categoryRank := make(map[string]int)
	for _, b := range buckets {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if _, dup := t.byID[b.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate bucket %q", domain.ErrInvalidBucket, b.ID)
		}
		if _, ok := categoryRank[b.Category]; !ok {
			categoryRank[b.Category] = len(categoryRank)
		}

		e := &entry{bucket: b}
		t.order = append(t.order, e)
		t.byID[b.ID] = e
		t.target += b.Target
	}

	sort.SliceStable(t.order, func(i, j int) bool {
		a, b := t.order[i].bucket, t.order[j].bucket
		if ra, rb := categoryRank[a.Category], categoryRank[b.Category]; ra != rb {
			return ra < rb
		}
		return a.Index < b.Index
	})

	return t, nil
}

// NextAvailable returns the first bucket, in deterministic order, whose
// succeeded plus in-flight count is below its target.
func (t *Tracker) NextAvailable() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.nextLocked()
	if e == nil {
		return "", false
	}
	return e.bucket.ID, true
}

// Reserve records a new in-flight attempt for a bucket.
func (t *Tracker) Reserve(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBucket, id)
	}
	if !e.available() {
		return fmt.Errorf("%w: %q", ErrBucketFull, id)
	}
	e.inFlight++
	return nil
}

// Acquire finds the next available bucket and reserves it in one critical
// section, so two callers can never reserve the same last slot.
func (t *Tracker) Acquire() (domain.Bucket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.nextLocked()
	if e == nil {
		return domain.Bucket{}, false
	}
	e.inFlight++
	return e.bucket, true
}

// Commit releases a reservation and, on success, counts the item.
// It must be called exactly once per reservation.
func (t *Tracker) Commit(id string, success bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBucket, id)
	}
	if e.inFlight == 0 {
		return fmt.Errorf("%w: %q", ErrNotReserved, id)
	}

	e.inFlight--
	if success {
		e.succeeded++
		t.success++
	}
	return nil
}

// Bucket returns the bucket definition for id.
func (t *Tracker) Bucket(id string) (domain.Bucket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byID[id]
	if !ok {
		return domain.Bucket{}, false
	}
	return e.bucket, true
}

// Remaining returns the capacity left for a bucket net of reservations.
func (t *Tracker) Remaining(id string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byID[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownBucket, id)
	}
	return e.bucket.Target - e.succeeded - e.inFlight, nil
}

// Complete reports whether every target has been met.
func (t *Tracker) Complete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.success >= t.target
}

// Saturated reports whether no bucket can accept another reservation.
func (t *Tracker) Saturated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextLocked() == nil
}

// InFlight returns the total number of open reservations.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, e := range t.order {
		n += e.inFlight
	}
	return n
}

// Totals returns the summed succeeded count and summed target.
func (t *Tracker) Totals() (succeeded, target int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.success, t.target
}

// Snapshot copies every bucket's counters in visiting order.
func (t *Tracker) Snapshot() []BucketState {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]BucketState, 0, len(t.order))
	for _, e := range t.order {
		out = append(out, BucketState{
			ID:        e.bucket.ID,
			Category:  e.bucket.Category,
			Index:     e.bucket.Index,
			Target:    e.bucket.Target,
			Succeeded: e.succeeded,
			InFlight:  e.inFlight,
		})
	}
	return out
}

func (t *Tracker) nextLocked() *entry {
	for _, e := range t.order {
		if e.available() {
			return e
		}
	}
	return nil
}
