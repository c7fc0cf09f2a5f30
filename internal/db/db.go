package db

import "database/sql"

// DB wraps the shared sql.DB pool. Reads and writes from the
// provisioning flows go through this single privileged pool; the
// per-caller scoping happens at the query level, never by handing the
// pool to caller-facing code.
type DB struct {
	*sql.DB
}
