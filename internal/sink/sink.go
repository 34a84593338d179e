package sink

import "context"

// Event names pushed through the delivery sink.
const (
	EventNotificationNew       = "notification:new"
	EventNotificationBroadcast = "notification:broadcast"
)

// Event is the envelope delivered to the WebSocket gateway.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// DeliverySink abstracts the real-time push gateway consumed by handlers.
// Delivery is supplementary to durable storage: a recipient with no live
// session is a no-op, not an error, and implementations must be safe for
// concurrent use.
// Mocking this interface in tests gives full control over push behaviour
// without a running gateway.
type DeliverySink interface {
	// PushToUser delivers the event to all live sessions of a user.
	PushToUser(ctx context.Context, userID string, ev Event) error

	// PushToOrganization fans the event out to all sessions subscribed
	// to the organization's channel.
	PushToOrganization(ctx context.Context, organizationID string, ev Event) error
}
