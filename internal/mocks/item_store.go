package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/quizforge/internal/domain"
	"github.com/phrazzld/quizforge/internal/store"
)

// MockItemStore implements store.ItemStore and store.RejectionStore,
// keeping everything it receives in memory
type MockItemStore struct {
	// CreateFn, when set, decides the outcome of Create. Items are only
	// kept when it returns a nil error.
	CreateFn func(ctx context.Context, item *domain.Item) (uuid.UUID, error)

	// RecordErr is returned from every Record call
	RecordErr error

	mu         sync.Mutex
	items      []*domain.Item
	rejections []*domain.Rejection
	creates    int
}

var (
	_ store.ItemStore      = (*MockItemStore)(nil)
	_ store.RejectionStore = (*MockItemStore)(nil)
)

// Create implements store.ItemStore
func (m *MockItemStore) Create(ctx context.Context, item *domain.Item) (uuid.UUID, error) {
	m.mu.Lock()
	m.creates++
	m.mu.Unlock()

	id := item.ID
	if m.CreateFn != nil {
		var err error
		if id, err = m.CreateFn(ctx, item); err != nil {
			return uuid.Nil, err
		}
	}

	m.mu.Lock()
	m.items = append(m.items, item)
	m.mu.Unlock()
	return id, nil
}

// GetByID implements store.ItemStore
func (m *MockItemStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, store.ErrItemNotFound
}

// Record implements store.RejectionStore
func (m *MockItemStore) Record(ctx context.Context, rejection *domain.Rejection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, rejection)
	return m.RecordErr
}

// Items returns the stored items in arrival order
func (m *MockItemStore) Items() []*domain.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Item, len(m.items))
	copy(out, m.items)
	return out
}

// Rejections returns the recorded rejections in arrival order
func (m *MockItemStore) Rejections() []*domain.Rejection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Rejection, len(m.rejections))
	copy(out, m.rejections)
	return out
}

// CreateCalls returns how many times Create was called, including failures
func (m *MockItemStore) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

// ItemsByBucket counts stored items per bucket
func (m *MockItemStore) ItemsByBucket() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, item := range m.items {
		out[item.BucketID]++
	}
	return out
}
