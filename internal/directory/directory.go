package directory

import "context"

// MembershipDirectory resolves the recipients of an organization-wide
// broadcast. The member data is owned by the main application; this worker
// only reads it.
type MembershipDirectory interface {
	ListMemberIDs(ctx context.Context, organizationID string) ([]string, error)
}
