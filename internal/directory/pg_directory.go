package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pgDirectory struct {
	pool *pgxpool.Pool
}

// NewPgDirectory returns a MembershipDirectory reading the application's
// organization_members table.
func NewPgDirectory(pool *pgxpool.Pool) MembershipDirectory {
	return &pgDirectory{pool: pool}
}

func (d *pgDirectory) ListMemberIDs(ctx context.Context, organizationID string) ([]string, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT user_id FROM organization_members WHERE organization_id = $1`,
		organizationID)
	if err != nil {
		return nil, fmt.Errorf("list organization members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
