package directory

import "context"

// MockDirectory is a fixed-membership MembershipDirectory for unit tests.
type MockDirectory struct {
	Members map[string][]string
	Err     error
}

func (m *MockDirectory) ListMemberIDs(_ context.Context, organizationID string) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Members[organizationID], nil
}
