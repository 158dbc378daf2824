package record

import (
	"time"

	"github.com/shopspring/decimal"
)

// Optional is an explicit optional value. The zero Optional is None.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some wraps a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns the empty optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// FromPtr returns Some(*p), or None when p is nil.
func FromPtr[T any](p *T) Optional[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// Ptr returns a pointer to the value, or nil when empty.
func (o Optional[T]) Ptr() *T {
	if !o.ok {
		return nil
	}
	v := o.value
	return &v
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// IsSome reports whether a value is present.
func (o Optional[T]) IsSome() bool {
	return o.ok
}

// OrElse returns the value, or fallback when empty.
func (o Optional[T]) OrElse(fallback T) T {
	if o.ok {
		return o.value
	}
	return fallback
}

// OptionalText converts an optional string to a field value (None is Null).
func OptionalText(o Optional[string]) Value {
	if s, ok := o.Get(); ok {
		return Text(s)
	}
	return Null()
}

// OptionalDec converts an optional decimal to a field value (None is Null).
func OptionalDec(o Optional[decimal.Decimal]) Value {
	if d, ok := o.Get(); ok {
		return Dec(d)
	}
	return Null()
}

// OptionalTime converts an optional timestamp to a field value (None is Null).
func OptionalTime(o Optional[time.Time]) Value {
	if t, ok := o.Get(); ok {
		return Time(t)
	}
	return Null()
}
