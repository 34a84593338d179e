package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamflow/notification-worker/internal/domain"
	"github.com/teamflow/notification-worker/internal/repository"
	"github.com/teamflow/notification-worker/internal/sink"
)

// CreateNotificationHandler persists a single-recipient notification, then
// attempts a real-time push to that user.
//
// The two phases are deliberately decoupled: persistence failures are
// retryable, while a push failure after a successful write is swallowed
// and logged — retrying the job at that point would insert a duplicate
// record for a delivery that is best-effort anyway.
type CreateNotificationHandler struct {
	repo   repository.NotificationRepository
	sink   sink.DeliverySink
	logger *zap.Logger

	// Hook for metrics — injected by main so the handler stays metrics-agnostic.
	onPushFailed func()
}

// NewCreateNotificationHandler constructs the handler. onPushFailed is
// optional (nil = no-op).
func NewCreateNotificationHandler(
	repo repository.NotificationRepository,
	s sink.DeliverySink,
	logger *zap.Logger,
	onPushFailed func(),
) *CreateNotificationHandler {
	if onPushFailed == nil {
		onPushFailed = func() {}
	}
	return &CreateNotificationHandler{
		repo: repo, sink: s, logger: logger, onPushFailed: onPushFailed,
	}
}

func (h *CreateNotificationHandler) Kind() domain.JobKind {
	return domain.KindCreate
}

func (h *CreateNotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var job domain.CreateNotificationJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return domain.NonRetryable(fmt.Errorf("%w: %w", domain.ErrMalformedJob, err))
	}
	if err := job.Validate(); err != nil {
		return err
	}

	n := &domain.Notification{
		ID:             uuid.New().String(),
		UserID:         job.UserID,
		OrganizationID: job.OrganizationID,
		Type:           job.Type,
		Title:          job.Title,
		Message:        job.Message,
		Data:           job.Data,
		IsRead:         false,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	ev := sink.Event{Type: sink.EventNotificationNew, Payload: n}
	if err := h.sink.PushToUser(ctx, n.UserID, ev); err != nil {
		h.logger.Warn("push failed after persist, notification stored",
			zap.String("notification_id", n.ID),
			zap.String("user_id", n.UserID),
			zap.Error(err),
		)
		h.onPushFailed()
	}

	return nil
}
