package record

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// System columns present on every table.
const (
	ColumnID        = "id"
	ColumnSyncState = "sync_state"
	ColumnRevision  = "revision"
	ColumnUpdatedAt = "updated_at"
)

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidIdentifier reports whether name is usable as a table or column name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// IsSystemColumn reports whether col is managed by the store itself.
func IsSystemColumn(col string) bool {
	switch col {
	case ColumnID, ColumnSyncState, ColumnRevision, ColumnUpdatedAt:
		return true
	}
	return false
}

// ColumnType is the storage type of a domain column.
type ColumnType uint8

const (
	TypeText ColumnType = iota
	TypeInt
	TypeDecimal
	TypeBool
	TypeTime
)

// String returns the string representation of the column type
func (t ColumnType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeInt:
		return "int"
	case TypeDecimal:
		return "decimal"
	case TypeBool:
		return "bool"
	case TypeTime:
		return "time"
	default:
		return "unknown"
	}
}

// Column describes one domain column. A Null Default means no default;
// such a column must be supplied on insert unless it is nullable.
// AddedIn is the migration version that introduced the column (0 or 1 for
// the base schema).
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	Default  Value
	AddedIn  int
}

// Required reports whether an insert must carry the column.
func (c Column) Required() bool {
	return !c.Nullable && c.Default.IsNull()
}

// RowCheck enforces a table invariant on a row about to be stored. before
// is the stored version a local update starts from; it is nil for inserts
// and for versions pulled from the remote ledger.
type RowCheck func(before, after Fields) error

// TableSchema declares the domain columns of one table. Check, when set,
// runs on every stored version inside the writing transaction.
type TableSchema struct {
	Name    string
	Columns []Column
	Check   RowCheck
}

// InvariantError reports a row version that breaks a table invariant.
type InvariantError struct {
	Table  string
	RowID  string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s row %s: %s", e.Table, e.RowID, e.Reason)
}

// Validate runs the table check, if any, on a row version
func (t TableSchema) Validate(id string, before, after Fields) error {
	if t.Check == nil {
		return nil
	}
	if err := t.Check(before, after); err != nil {
		return &InvariantError{Table: t.Name, RowID: id, Reason: err.Error()}
	}
	return nil
}

// Column looks up a domain column by name.
func (t TableSchema) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether name is a domain or system column of t.
func (t TableSchema) HasColumn(name string) bool {
	if IsSystemColumn(name) {
		return true
	}
	_, ok := t.Column(name)
	return ok
}

// CoercionError describes a value that does not fit a column.
type CoercionError struct {
	Table  string
	Column string
	Value  Value
	Reason string
}

func (e *CoercionError) Error() string {
	if e.Value.IsAbsent() {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Reason)
	}
	return fmt.Sprintf("%s.%s: %s (got %s)", e.Table, e.Column, e.Reason, e.Value)
}

// Coerce converts every value in fields to its column type. Absent values
// pass through unchanged. Unknown columns, system columns and values that
// cannot be converted produce a *CoercionError.
func (t TableSchema) Coerce(fields Fields) (Fields, error) {
	out := make(Fields, len(fields))
	for _, name := range fields.Columns() {
		v := fields[name]
		col, ok := t.Column(name)
		if !ok {
			return nil, &CoercionError{Table: t.Name, Column: name, Value: Absent(), Reason: "unknown column"}
		}
		cv, err := coerceValue(col, v)
		if err != nil {
			return nil, &CoercionError{Table: t.Name, Column: name, Value: v, Reason: err.Error()}
		}
		out[name] = cv
	}
	return out, nil
}

// CheckRequired verifies that fields carries every required column, as
// needed for an insert.
func (t TableSchema) CheckRequired(fields Fields) error {
	for _, c := range t.Columns {
		if !c.Required() {
			continue
		}
		if v, ok := fields[c.Name]; !ok || v.IsAbsent() {
			return &CoercionError{Table: t.Name, Column: c.Name, Value: Absent(), Reason: "value is required"}
		}
	}
	return nil
}

func coerceValue(col Column, v Value) (Value, error) {
	switch v.Kind() {
	case KindAbsent:
		return v, nil
	case KindNull:
		if !col.Nullable {
			return v, fmt.Errorf("column is not nullable")
		}
		return v, nil
	}

	switch col.Type {
	case TypeText:
		switch v.Kind() {
		case KindText:
			return v, nil
		case KindInt, KindDecimal:
			d, _ := v.AsDecimal()
			return Text(d.String()), nil
		}
	case TypeInt:
		switch v.Kind() {
		case KindInt:
			return v, nil
		case KindDecimal:
			d, _ := v.AsDecimal()
			if d.IsInteger() {
				return Int(d.IntPart()), nil
			}
		case KindText:
			s, _ := v.AsText()
			if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return Int(i), nil
			}
		}
	case TypeDecimal:
		switch v.Kind() {
		case KindDecimal, KindInt:
			d, _ := v.AsDecimal()
			return boundedDecimal(d)
		case KindText:
			s, _ := v.AsText()
			if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
				return boundedDecimal(d)
			}
		}
	case TypeBool:
		switch v.Kind() {
		case KindBool:
			return v, nil
		case KindInt:
			i, _ := v.AsInt()
			if i == 0 || i == 1 {
				return Bool(i == 1), nil
			}
		case KindText:
			s, _ := v.AsText()
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return Bool(b), nil
			}
		}
	case TypeTime:
		switch v.Kind() {
		case KindTime:
			return v, nil
		case KindText:
			s, _ := v.AsText()
			if t, ok := ParseTime(strings.TrimSpace(s)); ok {
				return Time(t), nil
			}
		}
	}
	return v, fmt.Errorf("cannot convert %s to %s", v.Kind(), col.Type)
}

// MaxDecimalDigits is the widest decimal a column keeps exactly. SQLite
// stores NUMERIC values as 64-bit floats, which hold 15 significant digits.
const MaxDecimalDigits = 15

func boundedDecimal(d decimal.Decimal) (Value, error) {
	if n := significantDigits(d); n > MaxDecimalDigits {
		return Value{}, fmt.Errorf("%d significant digits, at most %d are stored exactly", n, MaxDecimalDigits)
	}
	return Dec(d), nil
}

// significantDigits counts the digits of d without trailing zeros
func significantDigits(d decimal.Decimal) int {
	digits := strings.TrimLeft(d.Coefficient().String(), "-")
	return len(strings.TrimRight(digits, "0"))
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses the timestamp layouts accepted from remote ledgers and
// SQL drivers.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Schema is the set of tables known to a store.
type Schema struct {
	tables map[string]TableSchema
	order  []string
}

// NewSchema validates and registers table schemas.
func NewSchema(tables ...TableSchema) (*Schema, error) {
	s := &Schema{tables: make(map[string]TableSchema, len(tables))}
	for _, t := range tables {
		if !ValidIdentifier(t.Name) {
			return nil, fmt.Errorf("invalid table name %q", t.Name)
		}
		if _, dup := s.tables[t.Name]; dup {
			return nil, fmt.Errorf("table %q registered twice", t.Name)
		}
		seen := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			if !ValidIdentifier(c.Name) || IsSystemColumn(c.Name) {
				return nil, fmt.Errorf("invalid column name %s.%s", t.Name, c.Name)
			}
			if seen[c.Name] {
				return nil, fmt.Errorf("column %s.%s declared twice", t.Name, c.Name)
			}
			seen[c.Name] = true
			if c.Default.IsAbsent() {
				return nil, fmt.Errorf("column %s.%s: absent is not a default", t.Name, c.Name)
			}
		}
		s.tables[t.Name] = t
		s.order = append(s.order, t.Name)
	}
	return s, nil
}

// MustSchema is NewSchema that panics on error, for static table sets.
func MustSchema(tables ...TableSchema) *Schema {
	s, err := NewSchema(tables...)
	if err != nil {
		panic(err)
	}
	return s
}

// Table returns the schema registered under name.
func (s *Schema) Table(name string) (TableSchema, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Tables returns every table in registration order.
func (s *Schema) Tables() []TableSchema {
	out := make([]TableSchema, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tables[name])
	}
	return out
}

// Names returns every table name in registration order.
func (s *Schema) Names() []string {
	return append([]string(nil), s.order...)
}
