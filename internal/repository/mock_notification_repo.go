package repository

import (
	"context"
	"sync"

	"github.com/teamflow/notification-worker/internal/domain"
)

// MockNotificationRepository is a hand-written, in-memory implementation of
// NotificationRepository used in unit tests. No mock-generation library needed.
type MockNotificationRepository struct {
	mu            sync.RWMutex
	notifications map[string]*domain.Notification

	// Optional error overrides — set in tests to simulate failure paths.
	CreateErr      error
	CreateBatchErr error
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{
		notifications: make(map[string]*domain.Notification),
	}
}

func (m *MockNotificationRepository) Create(_ context.Context, n *domain.Notification) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *n
	m.notifications[n.ID] = &clone
	return nil
}

// CreateBatch mirrors the all-or-nothing contract of the pgx
// implementation: on error nothing is stored.
func (m *MockNotificationRepository) CreateBatch(_ context.Context, notifications []*domain.Notification) error {
	if m.CreateBatchErr != nil {
		return m.CreateBatchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range notifications {
		clone := *n
		m.notifications[n.ID] = &clone
	}
	return nil
}

// All returns a snapshot of every stored notification.
func (m *MockNotificationRepository) All() []*domain.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Notification, 0, len(m.notifications))
	for _, n := range m.notifications {
		clone := *n
		out = append(out, &clone)
	}
	return out
}

// ByUser returns the stored notifications addressed to userID.
func (m *MockNotificationRepository) ByUser(userID string) []*domain.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			clone := *n
			out = append(out, &clone)
		}
	}
	return out
}
