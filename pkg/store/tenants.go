package store

import "context"

// ListActiveTenants returns every distinct tenant_id with at least one
// event, used by the consolidation scheduler to fan out per-tenant runs
// (§4.7, §5 — consolidation has no separate tenant registry, so events
// is the natural root to enumerate from).
func (s *Store) ListActiveTenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tenant_id FROM events`)
	if err != nil {
		return nil, wrapBackend("list active tenants", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, wrapBackend("scan tenant id", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
