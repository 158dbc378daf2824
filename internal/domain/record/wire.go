package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EncodeWire converts fields to JSON-compatible values for a remote ledger.
// Decimals travel as JSON numbers with their exact digits; timestamps as
// RFC 3339 strings. Absent values are omitted.
func EncodeWire(f Fields) map[string]any {
	out := make(map[string]any, len(f))
	for col, v := range f {
		switch v.Kind() {
		case KindAbsent:
			continue
		case KindNull:
			out[col] = nil
		case KindDecimal:
			d, _ := v.AsDecimal()
			out[col] = json.Number(d.String())
		case KindTime:
			t, _ := v.AsTime()
			out[col] = t.UTC().Format(time.RFC3339Nano)
		default:
			out[col] = v.Native()
		}
	}
	return out
}

// DecodeWire converts loosely typed remote values to fields. A key missing
// from m is simply not present in the result, which readers treat as
// Absent; JSON null becomes Null. Values are not yet coerced to column types.
func DecodeWire(m map[string]any) (Fields, error) {
	out := make(Fields, len(m))
	for col, raw := range m {
		v, err := decodeWireValue(raw)
		if err != nil {
			return nil, &CoercionError{Column: col, Value: Absent(), Reason: err.Error()}
		}
		out[col] = v
	}
	return out, nil
}

// UnmarshalWire decodes a JSON object into fields, keeping number precision.
func UnmarshalWire(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return DecodeWire(m)
}

func decodeWireValue(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return Text(x), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i), nil
		}
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q", x.String())
		}
		return Dec(d), nil
	case float64:
		return Dec(decimal.NewFromFloat(x)), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case decimal.Decimal:
		return Dec(x), nil
	case time.Time:
		return Time(x), nil
	default:
		return Value{}, fmt.Errorf("unsupported wire value of type %T", raw)
	}
}
