package domain

// JobKind discriminates the payload variants carried on the notifications queue.
type JobKind string

const (
	KindCreate    JobKind = "create"
	KindBroadcast JobKind = "broadcast"
)

func (k JobKind) IsValid() bool {
	switch k {
	case KindCreate, KindBroadcast:
		return true
	}
	return false
}

// JobEnvelope is the minimal first-pass decode of a queue message, used to
// route the raw body to the handler registered for its kind.
type JobEnvelope struct {
	Kind JobKind `json:"kind"`
}

// CreateNotificationJob targets a single recipient.
type CreateNotificationJob struct {
	Kind           JobKind        `json:"kind"`
	UserID         string         `json:"userId"`
	OrganizationID *string        `json:"organizationId,omitempty"`
	Type           Type           `json:"type"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Data           map[string]any `json:"data,omitempty"`
}

// Validate fails fast on missing required fields. Validation failures are
// non-retryable: redelivery cannot fix a malformed payload.
func (j *CreateNotificationJob) Validate() error {
	if j.UserID == "" {
		return NonRetryable(ErrMissingUserID)
	}
	if j.Type == "" {
		return NonRetryable(ErrMissingType)
	}
	if j.Title == "" {
		return NonRetryable(ErrEmptyTitle)
	}
	if j.Message == "" {
		return NonRetryable(ErrEmptyMessage)
	}
	return nil
}

// BroadcastNotificationJob fans out to every member of an organization,
// minus the ids listed in ExcludeUserIDs.
type BroadcastNotificationJob struct {
	Kind           JobKind        `json:"kind"`
	OrganizationID string         `json:"organizationId"`
	Type           Type           `json:"type"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Data           map[string]any `json:"data,omitempty"`
	ExcludeUserIDs []string       `json:"excludeUserIds,omitempty"`
}

func (j *BroadcastNotificationJob) Validate() error {
	if j.OrganizationID == "" {
		return NonRetryable(ErrMissingOrganizationID)
	}
	if j.Type == "" {
		return NonRetryable(ErrMissingType)
	}
	if j.Title == "" {
		return NonRetryable(ErrEmptyTitle)
	}
	if j.Message == "" {
		return NonRetryable(ErrEmptyMessage)
	}
	return nil
}
