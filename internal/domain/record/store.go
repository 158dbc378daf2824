package record

import "context"

// Store is the local durable record store. Every call is atomic. Inserts
// and updates leave the row Pending; deletes leave a tombstone for the
// sync engine. "No rows" is an empty slice, never an error.
type Store interface {
	// GetAll returns the rows of table matching q.
	GetAll(ctx context.Context, table string, q Query) ([]Row, error)
	// Get returns one row, or a NOT_FOUND error.
	Get(ctx context.Context, table, id string) (Row, error)
	// Insert stores a new row under a fresh UUID.
	Insert(ctx context.Context, table string, fields Fields) (Row, error)
	// Update changes the given columns of an existing row. Absent values
	// leave their columns untouched.
	Update(ctx context.Context, table, id string, fields Fields) (Row, error)
	// Delete removes a row.
	Delete(ctx context.Context, table, id string) error
	// WithTx runs fn with a Store bound to a single transaction. The
	// transaction commits when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
