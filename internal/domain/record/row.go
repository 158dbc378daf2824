package record

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SyncState tracks whether a local row agrees with the remote ledger.
type SyncState uint8

const (
	// Pending rows carry local changes the remote has not acknowledged.
	Pending SyncState = iota
	// Synced rows match the last version exchanged with the remote.
	Synced
	// Conflict rows were rejected by the remote and wait for a decision.
	Conflict
)

// String returns the persisted form of the state
func (s SyncState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Synced:
		return "synced"
	case Conflict:
		return "conflict"
	default:
		return fmt.Sprintf("SyncState(%d)", uint8(s))
	}
}

// ParseSyncState parses the persisted form of a state.
func ParseSyncState(s string) (SyncState, error) {
	switch s {
	case "pending":
		return Pending, nil
	case "synced":
		return Synced, nil
	case "conflict":
		return Conflict, nil
	default:
		return Pending, fmt.Errorf("unknown sync state %q", s)
	}
}

// Fields maps column names to values. System columns are not part of Fields.
type Fields map[string]Value

// Get returns the value for col, or Null when the column is missing.
func (f Fields) Get(col string) Value {
	if v, ok := f[col]; ok {
		return v
	}
	return Null()
}

// Text returns the text in col, or "" when it is not text.
func (f Fields) Text(col string) string {
	s, _ := f.Get(col).AsText()
	return s
}

// Int returns the integer in col, or 0.
func (f Fields) Int(col string) int64 {
	i, _ := f.Get(col).AsInt()
	return i
}

// Decimal returns the decimal in col, or zero.
func (f Fields) Decimal(col string) decimal.Decimal {
	d, _ := f.Get(col).AsDecimal()
	return d
}

// Bool returns the boolean in col, or false.
func (f Fields) Bool(col string) bool {
	b, _ := f.Get(col).AsBool()
	return b
}

// Time returns the timestamp in col, or the zero time.
func (f Fields) Time(col string) time.Time {
	t, _ := f.Get(col).AsTime()
	return t
}

// OptText returns col as an optional string; Null is None.
func (f Fields) OptText(col string) Optional[string] {
	if s, ok := f.Get(col).AsText(); ok {
		return Some(s)
	}
	return None[string]()
}

// OptDecimal returns col as an optional decimal; Null is None.
func (f Fields) OptDecimal(col string) Optional[decimal.Decimal] {
	if d, ok := f.Get(col).AsDecimal(); ok {
		return Some(d)
	}
	return None[decimal.Decimal]()
}

// OptTime returns col as an optional timestamp; Null is None.
func (f Fields) OptTime(col string) Optional[time.Time] {
	if t, ok := f.Get(col).AsTime(); ok {
		return Some(t)
	}
	return None[time.Time]()
}

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Columns returns the column names in f, sorted.
func (f Fields) Columns() []string {
	cols := make([]string, 0, len(f))
	for k := range f {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Covers reports whether every non-absent value in other is present and
// equal in f. Absent values in other are ignored.
func (f Fields) Covers(other Fields) bool {
	for col, v := range other {
		if v.IsAbsent() {
			continue
		}
		if !f.Get(col).Equal(v) {
			return false
		}
	}
	return true
}

// Row is one stored record.
type Row struct {
	Table     string
	ID        string
	Fields    Fields
	State     SyncState
	Revision  int64
	UpdatedAt time.Time
}
