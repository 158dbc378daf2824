package persistence

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
)

// decodeRow converts a scanned map into a Row. Drivers disagree on the Go
// types they return (sqlite reports NUMERIC as float64, pgx as string or
// float64), so every column is decoded by its declared schema type.
func decodeRow(t record.TableSchema, raw map[string]any) (record.Row, error) {
	row := record.Row{Table: t.Name, Fields: make(record.Fields, len(t.Columns))}

	id, err := decodeText(raw[record.ColumnID])
	if err != nil {
		return row, fmt.Errorf("%s.id: %w", t.Name, err)
	}
	row.ID = id

	state, err := decodeText(raw[record.ColumnSyncState])
	if err != nil {
		return row, fmt.Errorf("%s.sync_state: %w", t.Name, err)
	}
	if row.State, err = record.ParseSyncState(state); err != nil {
		return row, err
	}

	if row.Revision, err = decodeInt(raw[record.ColumnRevision]); err != nil {
		return row, fmt.Errorf("%s.revision: %w", t.Name, err)
	}
	if row.UpdatedAt, err = decodeTime(raw[record.ColumnUpdatedAt]); err != nil {
		return row, fmt.Errorf("%s.updated_at: %w", t.Name, err)
	}

	for _, c := range t.Columns {
		v, present := raw[c.Name]
		if !present {
			// Column not migrated yet; treat as its default.
			row.Fields[c.Name] = c.Default
			continue
		}
		val, err := decodeColumn(c, v)
		if err != nil {
			return row, fmt.Errorf("%s.%s: %w", t.Name, c.Name, err)
		}
		row.Fields[c.Name] = val
	}
	return row, nil
}

func decodeColumn(c record.Column, raw any) (record.Value, error) {
	if raw == nil {
		return record.Null(), nil
	}
	switch c.Type {
	case record.TypeText:
		s, err := decodeText(raw)
		return record.Text(s), err
	case record.TypeInt:
		i, err := decodeInt(raw)
		return record.Int(i), err
	case record.TypeDecimal:
		d, err := decodeDecimal(raw)
		return record.Dec(d), err
	case record.TypeBool:
		b, err := decodeBool(raw)
		return record.Bool(b), err
	case record.TypeTime:
		t, err := decodeTime(raw)
		return record.Time(t), err
	default:
		return record.Null(), fmt.Errorf("unknown column type %s", c.Type)
	}
}

func decodeText(raw any) (string, error) {
	switch x := raw.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return decimal.NewFromFloat(x).String(), nil
	default:
		return "", fmt.Errorf("unexpected %T for text", raw)
	}
}

func decodeInt(raw any) (int64, error) {
	switch x := raw.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case float64:
		if x != float64(int64(x)) {
			return 0, fmt.Errorf("non-integral %v", x)
		}
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected %T for int", raw)
	}
}

func decodeDecimal(raw any) (decimal.Decimal, error) {
	switch x := raw.(type) {
	case decimal.Decimal:
		return x, nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case int32:
		return decimal.NewFromInt(int64(x)), nil
	case string:
		return decimal.NewFromString(x)
	case []byte:
		return decimal.NewFromString(string(x))
	default:
		return decimal.Zero, fmt.Errorf("unexpected %T for decimal", raw)
	}
}

func decodeBool(raw any) (bool, error) {
	switch x := raw.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case string:
		return strconv.ParseBool(x)
	case []byte:
		return strconv.ParseBool(string(x))
	default:
		return false, fmt.Errorf("unexpected %T for bool", raw)
	}
}

func decodeTime(raw any) (time.Time, error) {
	switch x := raw.(type) {
	case time.Time:
		return x.UTC(), nil
	case string:
		if t, ok := record.ParseTime(x); ok {
			return t.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unparseable time %q", x)
	case []byte:
		if t, ok := record.ParseTime(string(x)); ok {
			return t.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unparseable time %q", string(x))
	default:
		return time.Time{}, fmt.Errorf("unexpected %T for time", raw)
	}
}
