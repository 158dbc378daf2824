package persistence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"gorm.io/gorm"
)

// CreateTable creates the table for t with its system columns and every
// domain column introduced at or before version.
func CreateTable(db *gorm.DB, t record.TableSchema, version int) error {
	if !record.ValidIdentifier(t.Name) {
		return fmt.Errorf("invalid table name %q", t.Name)
	}
	dialect := db.Dialector.Name()

	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	db.Dialector.QuoteTo(&b, t.Name)
	b.WriteString(" (")
	db.Dialector.QuoteTo(&b, record.ColumnID)
	b.WriteString(" VARCHAR(36) PRIMARY KEY, ")
	db.Dialector.QuoteTo(&b, record.ColumnSyncState)
	b.WriteString(" VARCHAR(16) NOT NULL DEFAULT 'pending', ")
	db.Dialector.QuoteTo(&b, record.ColumnRevision)
	b.WriteString(" " + sqlType(dialect, record.TypeInt) + " NOT NULL DEFAULT 1, ")
	db.Dialector.QuoteTo(&b, record.ColumnUpdatedAt)
	b.WriteString(" " + sqlType(dialect, record.TypeTime) + " NOT NULL")
	for _, c := range t.Columns {
		if c.AddedIn > version {
			continue
		}
		def, err := columnDefinition(db, c)
		if err != nil {
			return fmt.Errorf("%s: %w", t.Name, err)
		}
		b.WriteString(", ")
		b.WriteString(def)
	}
	b.WriteString(")")

	if err := db.Exec(b.String()).Error; err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.Name, err)
	}

	b.Reset()
	b.WriteString("CREATE INDEX IF NOT EXISTS ")
	db.Dialector.QuoteTo(&b, "idx_"+t.Name+"_sync_state")
	b.WriteString(" ON ")
	db.Dialector.QuoteTo(&b, t.Name)
	b.WriteString(" (")
	db.Dialector.QuoteTo(&b, record.ColumnSyncState)
	b.WriteString(")")
	if err := db.Exec(b.String()).Error; err != nil {
		return fmt.Errorf("failed to index %s: %w", t.Name, err)
	}
	return nil
}

// AddColumn adds c to an existing table. A column added to a populated
// table must be nullable or carry a default.
func AddColumn(db *gorm.DB, table string, c record.Column) error {
	if !record.ValidIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	if c.Required() {
		return fmt.Errorf("column %s.%s needs a default to be added later", table, c.Name)
	}
	def, err := columnDefinition(db, c)
	if err != nil {
		return fmt.Errorf("%s: %w", table, err)
	}

	var b strings.Builder
	b.WriteString("ALTER TABLE ")
	db.Dialector.QuoteTo(&b, table)
	b.WriteString(" ADD COLUMN ")
	b.WriteString(def)
	if err := db.Exec(b.String()).Error; err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, c.Name, err)
	}
	return nil
}

func columnDefinition(db *gorm.DB, c record.Column) (string, error) {
	if !record.ValidIdentifier(c.Name) {
		return "", fmt.Errorf("invalid column name %q", c.Name)
	}
	var b strings.Builder
	db.Dialector.QuoteTo(&b, c.Name)
	b.WriteString(" ")
	b.WriteString(sqlType(db.Dialector.Name(), c.Type))
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if !c.Default.IsNull() {
		lit, err := literal(c.Default)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", c.Name, err)
		}
		b.WriteString(" DEFAULT ")
		b.WriteString(lit)
	}
	return b.String(), nil
}

func sqlType(dialect string, t record.ColumnType) string {
	postgres := dialect == "postgres"
	switch t {
	case record.TypeInt:
		if postgres {
			return "BIGINT"
		}
		return "INTEGER"
	case record.TypeDecimal:
		return "NUMERIC"
	case record.TypeBool:
		return "BOOLEAN"
	case record.TypeTime:
		if postgres {
			return "TIMESTAMPTZ"
		}
		return "DATETIME"
	default:
		return "TEXT"
	}
}

// literal renders a default value as SQL. DDL cannot take bound
// parameters, so only typed values are accepted and text is escaped.
func literal(v record.Value) (string, error) {
	switch v.Kind() {
	case record.KindText:
		s, _ := v.AsText()
		return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
	case record.KindInt:
		i, _ := v.AsInt()
		return strconv.FormatInt(i, 10), nil
	case record.KindDecimal:
		d, _ := v.AsDecimal()
		return d.String(), nil
	case record.KindBool:
		b, _ := v.AsBool()
		if b {
			return "TRUE", nil
		}
		return "FALSE", nil
	case record.KindTime:
		t, _ := v.AsTime()
		return "'" + t.UTC().Format(time.RFC3339) + "'", nil
	default:
		return "", fmt.Errorf("unsupported default %s", v)
	}
}
