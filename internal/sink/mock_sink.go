package sink

import (
	"context"
	"sync"
)

// MockSink records pushes for unit tests and can simulate gateway failures.
type MockSink struct {
	mu       sync.Mutex
	UserPush []RecordedPush
	OrgPush  []RecordedPush
	UserErr  error
	OrgErr   error
}

// RecordedPush captures one push attempt.
type RecordedPush struct {
	Target string
	Event  Event
}

func (m *MockSink) PushToUser(_ context.Context, userID string, ev Event) error {
	if m.UserErr != nil {
		return m.UserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UserPush = append(m.UserPush, RecordedPush{Target: userID, Event: ev})
	return nil
}

func (m *MockSink) PushToOrganization(_ context.Context, organizationID string, ev Event) error {
	if m.OrgErr != nil {
		return m.OrgErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrgPush = append(m.OrgPush, RecordedPush{Target: organizationID, Event: ev})
	return nil
}

var _ DeliverySink = (*MockSink)(nil)
