package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teamflow/notification-worker/internal/domain"
)

const insertNotification = `
	INSERT INTO notifications
		(id, user_id, organization_id, type, title, message, data, is_read, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

type pgNotificationRepository struct {
	pool *pgxpool.Pool
}

// NewPgNotificationRepository returns a NotificationRepository backed by PostgreSQL.
func NewPgNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &pgNotificationRepository{pool: pool}
}

func (r *pgNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.pool.Exec(ctx, insertNotification,
		n.ID, n.UserID, n.OrganizationID, n.Type, n.Title, n.Message,
		n.Data, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// CreateBatch pipelines all inserts in a single round trip. PostgreSQL
// runs the pipeline in one implicit transaction, so the first failing row
// rolls back every row queued before it: the write is all-or-nothing and
// any error here means nothing persisted.
func (r *pgNotificationRepository) CreateBatch(ctx context.Context, notifications []*domain.Notification) error {
	b := &pgx.Batch{}
	for _, n := range notifications {
		b.Queue(insertNotification,
			n.ID, n.UserID, n.OrganizationID, n.Type, n.Title, n.Message,
			n.Data, n.IsRead, n.CreatedAt,
		)
	}

	br := r.pool.SendBatch(ctx, b)
	defer br.Close() //nolint:errcheck

	for range notifications {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert notification batch: %w", err)
		}
	}
	return br.Close()
}
