// Package ledger defines the port to the remote system of record and the
// bookkeeping records the sync engine keeps about it.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
)

// Failure modes every adapter maps its transport errors onto.
var (
	// ErrUnavailable means the ledger could not be reached; retry later.
	ErrUnavailable = errors.New("remote ledger unavailable")
	// ErrRateLimited means the ledger asked us to slow down; retry later.
	ErrRateLimited = errors.New("remote ledger rate limited")
	// ErrRemoteRejected means the ledger refused the change; retrying
	// will not help.
	ErrRemoteRejected = errors.New("remote ledger rejected the change")
)

// Retryable reports whether err is a transient ledger failure.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited)
}

// RemoteRow is one row as the ledger holds it. Fields carries loosely typed
// values: a column the remote did not send is missing from the map.
// Malformed is set when the adapter could not decode the row; Fields is
// then empty and the row must not be applied.
type RemoteRow struct {
	ID         string
	Fields     record.Fields
	ModifiedAt time.Time
	Malformed  error
}

// Adapter is a stateless gateway to the remote ledger. Rows are addressed by
// table and stable ID, never by position. UpsertRow is idempotent.
type Adapter interface {
	ListRows(ctx context.Context, table string) ([]RemoteRow, error)
	UpsertRow(ctx context.Context, table, id string, fields record.Fields) error
	DeleteRow(ctx context.Context, table, id string) error
}

// Tombstone records a local delete that has not reached the remote yet.
type Tombstone struct {
	Table     string
	RowID     string
	DeletedAt time.Time
}

// Winner names the side that won a last-writer-wins decision.
type Winner string

const (
	WinnerLocal  Winner = "local"
	WinnerRemote Winner = "remote"
)

// AuditEntry preserves the version that lost a last-writer-wins decision.
type AuditEntry struct {
	ID               string
	Table            string
	RowID            string
	Winner           Winner
	LosingFields     record.Fields
	LosingModifiedAt time.Time
	RecordedAt       time.Time
}

// Resolution says how a conflict was closed.
type Resolution string

const (
	ResolutionNone       Resolution = ""
	ResolutionKeptLocal  Resolution = "kept_local"
	ResolutionTookRemote Resolution = "took_remote"
	// ResolutionSuperseded closes a conflict whose row was edited locally
	// and then accepted by the remote.
	ResolutionSuperseded Resolution = "superseded"
	// ResolutionDeleted closes a conflict whose row was deleted locally.
	ResolutionDeleted Resolution = "deleted"
)

// Conflict is an open or closed sync conflict on one row.
type Conflict struct {
	ID               string
	Table            string
	RowID            string
	Reason           string
	LocalFields      record.Fields
	RemoteFields     record.Optional[record.Fields]
	RemoteModifiedAt record.Optional[time.Time]
	OpenedAt         time.Time
	ResolvedAt       record.Optional[time.Time]
	Resolution       Resolution
}

// IsOpen reports whether the conflict still waits for a decision.
func (c Conflict) IsOpen() bool {
	return !c.ResolvedAt.IsSome()
}
