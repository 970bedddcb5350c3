package store

import (
	"context"
	"hash/fnv"
)

// TryLockTenantJob attempts a session-scoped Postgres advisory lock
// keyed by tenant and job type, used by consolidation to prevent
// overlapping runs of the same job kind on the same tenant (§5). The
// returned unlock func must be called (even on failure to acquire) to
// release the connection back to the pool; ok reports whether the lock
// was actually acquired.
func (s *Store) TryLockTenantJob(ctx context.Context, tenantID, jobType string) (ok bool, unlock func(), err error) {
	key := lockKey(tenantID, jobType)

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return false, func() {}, wrapBackend("acquire lock connection", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		_ = conn.Close()
		return false, func() {}, wrapBackend("try advisory lock", err)
	}

	release := func() {
		if acquired {
			_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
		}
		_ = conn.Close()
	}
	return acquired, release, nil
}

// lockKey hashes tenant+job type into the bigint key pg_advisory_lock
// requires.
func lockKey(tenantID, jobType string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tenantID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(jobType))
	return int64(h.Sum64())
}
