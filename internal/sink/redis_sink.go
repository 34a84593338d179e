package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/teamflow/notification-worker/internal/ratelimiter"
)

// RedisSink publishes events on Redis pub/sub channels consumed by the
// WebSocket gateway:
//
//	notify:user:<userId> — per-user session channel
//	notify:org:<orgId>   — organization broadcast channel
//
// PUBLISH reports the subscriber count; zero subscribers means nobody is
// connected right now, which is a no-op by contract.
type RedisSink struct {
	rdb     *redis.Client
	limiter *ratelimiter.PushLimiter
	logger  *zap.Logger
}

func NewRedisSink(rdb *redis.Client, limiter *ratelimiter.PushLimiter, logger *zap.Logger) *RedisSink {
	return &RedisSink{rdb: rdb, limiter: limiter, logger: logger}
}

func userChannel(userID string) string { return "notify:user:" + userID }

func orgChannel(organizationID string) string { return "notify:org:" + organizationID }

func (s *RedisSink) PushToUser(ctx context.Context, userID string, ev Event) error {
	return s.publish(ctx, userChannel(userID), ev)
}

func (s *RedisSink) PushToOrganization(ctx context.Context, organizationID string, ev Event) error {
	return s.publish(ctx, orgChannel(organizationID), ev)
}

func (s *RedisSink) publish(ctx context.Context, channel string, ev Event) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	receivers, err := s.rdb.Publish(ctx, channel, body).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}

	if receivers == 0 {
		s.logger.Debug("no live sessions for push",
			zap.String("channel", channel), zap.String("event", ev.Type))
	}
	return nil
}

// compile-time check that RedisSink implements DeliverySink
var _ DeliverySink = (*RedisSink)(nil)
