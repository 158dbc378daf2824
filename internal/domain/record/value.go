package record

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// KindNull is an explicit "no value", stored as SQL NULL.
	KindNull Kind = iota
	// KindAbsent marks a field the remote row did not carry at all.
	// It is never persisted.
	KindAbsent
	KindText
	KindInt
	KindDecimal
	KindBool
	KindTime
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindAbsent:
		return "absent"
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindDecimal:
		return "decimal"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Value is a typed field value. The zero Value is Null.
type Value struct {
	kind Kind
	text string
	num  int64
	dec  decimal.Decimal
	flag bool
	at   time.Time
}

// Null returns the explicit no-value.
func Null() Value { return Value{kind: KindNull} }

// Absent returns the remote-absent sentinel.
func Absent() Value { return Value{kind: KindAbsent} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, num: i} }

// Dec returns a decimal value.
func Dec(d decimal.Decimal) Value { return Value{kind: KindDecimal, dec: d} }

// DecString parses s as a decimal and panics if it is malformed. Intended for
// literals in code and tests.
func DecString(s string) Value { return Dec(decimal.RequireFromString(s)) }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Time returns a timestamp value normalized to UTC.
func Time(t time.Time) Value { return Value{kind: KindTime, at: t.UTC()} }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the explicit no-value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsAbsent reports whether v is the remote-absent sentinel.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// AsText returns the text held by v.
func (v Value) AsText() (string, bool) {
	return v.text, v.kind == KindText
}

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) {
	return v.num, v.kind == KindInt
}

// AsDecimal returns v as a decimal. Integer values convert losslessly.
func (v Value) AsDecimal() (decimal.Decimal, bool) {
	switch v.kind {
	case KindDecimal:
		return v.dec, true
	case KindInt:
		return decimal.NewFromInt(v.num), true
	default:
		return decimal.Zero, false
	}
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) {
	return v.flag, v.kind == KindBool
}

// AsTime returns the timestamp held by v.
func (v Value) AsTime() (time.Time, bool) {
	return v.at, v.kind == KindTime
}

// Equal reports whether two values hold the same variant and content.
// Decimals compare numerically and timestamps compare as instants.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindInt:
		return v.num == o.num
	case KindDecimal:
		return v.dec.Equal(o.dec)
	case KindBool:
		return v.flag == o.flag
	case KindTime:
		return v.at.Equal(o.at)
	default:
		return true
	}
}

// Native returns the value in the form bound to SQL parameters.
func (v Value) Native() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindInt:
		return v.num
	case KindDecimal:
		return v.dec
	case KindBool:
		return v.flag
	case KindTime:
		return v.at
	default:
		return nil
	}
}

// String renders v for logs and error messages.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindAbsent:
		return "<absent>"
	case KindText:
		return strconv.Quote(v.text)
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindDecimal:
		return v.dec.String()
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindTime:
		return v.at.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("<kind %d>", v.kind)
	}
}
