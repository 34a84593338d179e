package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamflow/notification-worker/internal/directory"
	"github.com/teamflow/notification-worker/internal/domain"
	"github.com/teamflow/notification-worker/internal/repository"
	"github.com/teamflow/notification-worker/internal/sink"
)

// BroadcastPayload is the organization-channel push body. It carries the
// job content, not persisted records: each member's record is fetched
// lazily when they open their notification list.
type BroadcastPayload struct {
	Type    domain.Type    `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// BroadcastNotificationHandler fans one job out to every organization
// member not listed in excludeUserIds: one persisted record per recipient
// (batched), then exactly one best-effort push on the organization channel.
//
// The fan-out write is atomic: the batch pipeline runs in one implicit
// transaction, so a failed batch persisted nothing and the whole job can
// be retried without duplicating records for any member.
type BroadcastNotificationHandler struct {
	repo   repository.NotificationRepository
	dir    directory.MembershipDirectory
	sink   sink.DeliverySink
	logger *zap.Logger

	onPushFailed func()
	onFanout     func(count int)
}

// NewBroadcastNotificationHandler constructs the handler. The hooks are
// optional (nil = no-op).
func NewBroadcastNotificationHandler(
	repo repository.NotificationRepository,
	dir directory.MembershipDirectory,
	s sink.DeliverySink,
	logger *zap.Logger,
	onPushFailed func(),
	onFanout func(count int),
) *BroadcastNotificationHandler {
	if onPushFailed == nil {
		onPushFailed = func() {}
	}
	if onFanout == nil {
		onFanout = func(int) {}
	}
	return &BroadcastNotificationHandler{
		repo: repo, dir: dir, sink: s, logger: logger,
		onPushFailed: onPushFailed, onFanout: onFanout,
	}
}

func (h *BroadcastNotificationHandler) Kind() domain.JobKind {
	return domain.KindBroadcast
}

func (h *BroadcastNotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var job domain.BroadcastNotificationJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return domain.NonRetryable(fmt.Errorf("%w: %w", domain.ErrMalformedJob, err))
	}
	if err := job.Validate(); err != nil {
		return err
	}

	members, err := h.dir.ListMemberIDs(ctx, job.OrganizationID)
	if err != nil {
		return fmt.Errorf("resolve organization members: %w", err)
	}

	recipients := excludeIDs(members, job.ExcludeUserIDs)

	if len(recipients) > 0 {
		if err := h.repo.CreateBatch(ctx, buildRecords(&job, recipients)); err != nil {
			// The batch rolled back as a whole; retrying cannot
			// duplicate anything.
			return fmt.Errorf("broadcast fan-out for %d members: %w", len(recipients), err)
		}
		h.onFanout(len(recipients))
	} else {
		h.logger.Info("broadcast resolved no recipients",
			zap.String("organization_id", job.OrganizationID))
	}

	ev := sink.Event{
		Type: sink.EventNotificationBroadcast,
		Payload: BroadcastPayload{
			Type:    job.Type,
			Title:   job.Title,
			Message: job.Message,
			Data:    job.Data,
		},
	}
	if err := h.sink.PushToOrganization(ctx, job.OrganizationID, ev); err != nil {
		h.logger.Warn("organization push failed after persist",
			zap.String("organization_id", job.OrganizationID),
			zap.Error(err),
		)
		h.onPushFailed()
	}

	return nil
}

func buildRecords(job *domain.BroadcastNotificationJob, recipients []string) []*domain.Notification {
	now := time.Now().UTC()
	orgID := job.OrganizationID

	records := make([]*domain.Notification, len(recipients))
	for i, userID := range recipients {
		records[i] = &domain.Notification{
			ID:             uuid.New().String(),
			UserID:         userID,
			OrganizationID: &orgID,
			Type:           job.Type,
			Title:          job.Title,
			Message:        job.Message,
			Data:           job.Data,
			IsRead:         false,
			CreatedAt:      now,
		}
	}
	return records
}

func excludeIDs(members, exclude []string) []string {
	if len(exclude) == 0 {
		return members
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	out := make([]string, 0, len(members))
	for _, id := range members {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
