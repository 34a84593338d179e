package repository

import (
	"context"

	"github.com/teamflow/notification-worker/internal/domain"
)

// NotificationRepository is the durable store behind the job handlers.
// Implementations must be safe for concurrent use: every in-flight job
// calls it independently.
// The pgx implementation is in pg_notification_repo.go.
// Tests use a hand-written mock (mock_notification_repo.go).
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error

	// CreateBatch persists all records or none: a failure means nothing
	// was written, so callers can retry the whole batch without creating
	// duplicates.
	CreateBatch(ctx context.Context, notifications []*domain.Notification) error
}
