// internal/core/ports/database.go
package ports

import "context"

// Database is the SQL connection behind the Postgres ledger store, as seen
// by the health endpoint.
type Database interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) (details map[string]interface{})
	Close() error
}
