package quota

import (
	"sync"
	"testing"

	"github.com/phrazzld/quizforge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bucket(category string, index, target int) domain.Bucket {
	return domain.Bucket{
		ID:       domain.BucketID(category, index),
		Category: category,
		Index:    index,
		Target:   target,
	}
}

func newTracker(t *testing.T, buckets ...domain.Bucket) *Tracker {
	t.Helper()
	tr, err := NewTracker(buckets)
	require.NoError(t, err)
	return tr
}

// assertInvariants checks the quota invariants on every bucket
func assertInvariants(t *testing.T, tr *Tracker) {
	t.Helper()
	for _, s := range tr.Snapshot() {
		assert.GreaterOrEqual(t, s.InFlight, 0, "bucket %s in-flight", s.ID)
		assert.LessOrEqual(t, s.Succeeded, s.Target, "bucket %s succeeded", s.ID)
		assert.LessOrEqual(t, s.Succeeded+s.InFlight, s.Target, "bucket %s reserved", s.ID)
	}
}

func TestNewTracker_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewTracker([]domain.Bucket{bucket("a", 1, 1), bucket("a", 1, 2)})
	assert.ErrorIs(t, err, domain.ErrInvalidBucket)

	_, err = NewTracker([]domain.Bucket{{ID: "", Category: "a", Index: 1}})
	assert.Error(t, err)
}

func TestTracker_DeterministicOrder(t *testing.T) {
	t.Parallel()

	tr := newTracker(t,
		bucket("geometry", 2, 1),
		bucket("algebra", 3, 1),
		bucket("geometry", 1, 1),
		bucket("algebra", 1, 1),
	)

	var ids []string
	for _, s := range tr.Snapshot() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"geometry-1", "geometry-2", "algebra-1", "algebra-3"}, ids)

	id, ok := tr.NextAvailable()
	require.True(t, ok)
	assert.Equal(t, "geometry-1", id)
}

func TestTracker_ReserveAndCommit(t *testing.T) {
	t.Parallel()

	tr := newTracker(t, bucket("a", 1, 2), bucket("b", 1, 1))

	require.NoError(t, tr.Reserve("a-1"))
	require.NoError(t, tr.Reserve("a-1"))
	assert.ErrorIs(t, tr.Reserve("a-1"), ErrBucketFull, "two reservations fill a target of two")

	id, ok := tr.NextAvailable()
	require.True(t, ok)
	assert.Equal(t, "b-1", id, "in-flight reservations count against capacity")

	require.NoError(t, tr.Commit("a-1", false))
	remaining, err := tr.Remaining("a-1")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining, "a failed attempt releases its slot")

	require.NoError(t, tr.Commit("a-1", true))
	assert.ErrorIs(t, tr.Commit("a-1", true), ErrNotReserved)
	assert.ErrorIs(t, tr.Reserve("zzz"), ErrUnknownBucket)
	assert.ErrorIs(t, tr.Commit("zzz", true), ErrUnknownBucket)

	succeeded, target := tr.Totals()
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 3, target)
	assertInvariants(t, tr)
}

func TestTracker_AcquireUntilSaturated(t *testing.T) {
	t.Parallel()

	tr := newTracker(t, bucket("a", 1, 2), bucket("b", 1, 1), bucket("c", 1, 0))

	var got []string
	for {
		b, ok := tr.Acquire()
		if !ok {
			break
		}
		got = append(got, b.ID)
	}

	assert.Equal(t, []string{"a-1", "a-1", "b-1"}, got)
	assert.True(t, tr.Saturated())
	assert.False(t, tr.Complete())
	assert.Equal(t, 3, tr.InFlight())

	for _, id := range got {
		require.NoError(t, tr.Commit(id, true))
	}
	assert.True(t, tr.Complete())
	assert.True(t, tr.Saturated())
	assert.Equal(t, 0, tr.InFlight())
	assertInvariants(t, tr)
}

func TestTracker_Bucket(t *testing.T) {
	t.Parallel()

	b := bucket("a", 1, 2)
	b.Topic = "fractions"
	tr := newTracker(t, b)

	got, ok := tr.Bucket("a-1")
	require.True(t, ok)
	assert.Equal(t, "fractions", got.Topic)

	_, ok = tr.Bucket("missing")
	assert.False(t, ok)
}

func TestTracker_ConcurrentAcquireNeverOverReserves(t *testing.T) {
	t.Parallel()

	tr := newTracker(t, bucket("a", 1, 5), bucket("b", 1, 3), bucket("b", 2, 7))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted = map[string]int{}
	)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for {
				b, ok := tr.Acquire()
				if !ok {
					return
				}
				success := w%3 != 0
				if err := tr.Commit(b.ID, success); err != nil {
					t.Errorf("commit %s: %v", b.ID, err)
					return
				}
				if success {
					mu.Lock()
					accepted[b.ID]++
					mu.Unlock()
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, map[string]int{"a-1": 5, "b-1": 3, "b-2": 7}, accepted)
	assert.True(t, tr.Complete())
	assertInvariants(t, tr)
}
