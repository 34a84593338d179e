package domain_test

import (
	"errors"
	"testing"

	"github.com/teamflow/notification-worker/internal/domain"
)

func TestCreateNotificationJob_Validate(t *testing.T) {
	valid := domain.CreateNotificationJob{
		Kind:    domain.KindCreate,
		UserID:  "u1",
		Type:    domain.TypeTaskAssigned,
		Title:   "Task assigned",
		Message: "You were assigned a task",
	}

	t.Run("valid job passes", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("missing userId", func(t *testing.T) {
		j := valid
		j.UserID = ""
		err := j.Validate()
		if !errors.Is(err, domain.ErrMissingUserID) {
			t.Fatalf("expected ErrMissingUserID, got %v", err)
		}
		if !errors.Is(err, domain.ErrNonRetryable) {
			t.Fatalf("expected validation error to be non-retryable, got %v", err)
		}
	})

	t.Run("missing type", func(t *testing.T) {
		j := valid
		j.Type = ""
		if err := j.Validate(); !errors.Is(err, domain.ErrMissingType) {
			t.Fatalf("expected ErrMissingType, got %v", err)
		}
	})

	t.Run("empty title", func(t *testing.T) {
		j := valid
		j.Title = ""
		if err := j.Validate(); !errors.Is(err, domain.ErrEmptyTitle) {
			t.Fatalf("expected ErrEmptyTitle, got %v", err)
		}
	})

	t.Run("empty message", func(t *testing.T) {
		j := valid
		j.Message = ""
		if err := j.Validate(); !errors.Is(err, domain.ErrEmptyMessage) {
			t.Fatalf("expected ErrEmptyMessage, got %v", err)
		}
	})
}

func TestBroadcastNotificationJob_Validate(t *testing.T) {
	valid := domain.BroadcastNotificationJob{
		Kind:           domain.KindBroadcast,
		OrganizationID: "o1",
		Type:           domain.TypeSystem,
		Title:          "Maintenance",
		Message:        "Scheduled downtime tonight",
	}

	t.Run("valid job passes", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("missing organizationId", func(t *testing.T) {
		j := valid
		j.OrganizationID = ""
		err := j.Validate()
		if !errors.Is(err, domain.ErrMissingOrganizationID) {
			t.Fatalf("expected ErrMissingOrganizationID, got %v", err)
		}
		if !errors.Is(err, domain.ErrNonRetryable) {
			t.Fatalf("expected validation error to be non-retryable, got %v", err)
		}
	})

	t.Run("empty title", func(t *testing.T) {
		j := valid
		j.Title = ""
		if err := j.Validate(); !errors.Is(err, domain.ErrEmptyTitle) {
			t.Fatalf("expected ErrEmptyTitle, got %v", err)
		}
	})
}

func TestJobKind_IsValid(t *testing.T) {
	if !domain.KindCreate.IsValid() || !domain.KindBroadcast.IsValid() {
		t.Fatal("expected known kinds to be valid")
	}
	if domain.JobKind("email").IsValid() {
		t.Fatal("expected unknown kind to be invalid")
	}
}

func TestNonRetryable_KeepsSentinelReachable(t *testing.T) {
	err := domain.NonRetryable(domain.ErrMissingUserID)
	if !errors.Is(err, domain.ErrNonRetryable) {
		t.Fatal("expected ErrNonRetryable in chain")
	}
	if !errors.Is(err, domain.ErrMissingUserID) {
		t.Fatal("expected original sentinel in chain")
	}
}
