package domain

import "time"

// Type is the notification category shown to the user.
//
// The set is open: producers introduce new categories without a worker
// deploy, so job validation only requires the field to be present. The
// constants below cover the categories the product currently emits.
type Type string

const (
	TypeTaskAssigned   Type = "TASK_ASSIGNED"
	TypeTaskCompleted  Type = "TASK_COMPLETED"
	TypeCommentMention Type = "COMMENT_MENTION"
	TypeProjectUpdated Type = "PROJECT_UPDATED"
	TypeSystem         Type = "SYSTEM_ANNOUNCEMENT"
)

// Notification is the persisted record produced by job handlers.
type Notification struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	OrganizationID *string        `json:"organizationId,omitempty"`
	Type           Type           `json:"type"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Data           map[string]any `json:"data,omitempty"`
	IsRead         bool           `json:"isRead"`
	CreatedAt      time.Time      `json:"createdAt"`
	ReadAt         *time.Time     `json:"readAt,omitempty"`
}
