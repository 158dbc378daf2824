package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tonka1973/BreweryManager-sub001/internal/domain/ledger"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
)

// TombstoneModel is a local delete waiting to be pushed.
type TombstoneModel struct {
	Table     string    `gorm:"column:table_name;type:varchar(64);primaryKey"`
	RowID     string    `gorm:"type:varchar(36);primaryKey"`
	DeletedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TombstoneModel) TableName() string {
	return "sync_tombstones"
}

// ToDomain converts the persistence model to a domain Tombstone
func (m *TombstoneModel) ToDomain() ledger.Tombstone {
	return ledger.Tombstone{Table: m.Table, RowID: m.RowID, DeletedAt: m.DeletedAt.UTC()}
}

// WatermarkModel is the newest remote modification time already pulled for a table.
type WatermarkModel struct {
	Table     string    `gorm:"column:table_name;type:varchar(64);primaryKey"`
	Watermark time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WatermarkModel) TableName() string {
	return "sync_watermarks"
}

// AuditModel keeps the losing side of a last-writer-wins decision.
type AuditModel struct {
	ID               string    `gorm:"type:varchar(36);primaryKey"`
	Table            string    `gorm:"column:table_name;type:varchar(64);not null;index:idx_sync_audit_row,priority:1"`
	RowID            string    `gorm:"type:varchar(36);not null;index:idx_sync_audit_row,priority:2"`
	Winner           string    `gorm:"type:varchar(16);not null"`
	LosingPayload    string    `gorm:"type:text;not null"`
	LosingModifiedAt time.Time `gorm:"not null"`
	RecordedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AuditModel) TableName() string {
	return "sync_audit"
}

// FromDomain populates the persistence model from a domain AuditEntry
func (m *AuditModel) FromDomain(e ledger.AuditEntry) error {
	payload, err := EncodeFields(e.LosingFields)
	if err != nil {
		return err
	}
	m.ID = e.ID
	m.Table = e.Table
	m.RowID = e.RowID
	m.Winner = string(e.Winner)
	m.LosingPayload = payload
	m.LosingModifiedAt = e.LosingModifiedAt.UTC()
	m.RecordedAt = e.RecordedAt.UTC()
	return nil
}

// ToDomain converts the persistence model to a domain AuditEntry
func (m *AuditModel) ToDomain() (ledger.AuditEntry, error) {
	fields, err := DecodeFields(m.LosingPayload)
	if err != nil {
		return ledger.AuditEntry{}, err
	}
	return ledger.AuditEntry{
		ID:               m.ID,
		Table:            m.Table,
		RowID:            m.RowID,
		Winner:           ledger.Winner(m.Winner),
		LosingFields:     fields,
		LosingModifiedAt: m.LosingModifiedAt.UTC(),
		RecordedAt:       m.RecordedAt.UTC(),
	}, nil
}

// ConflictModel is a sync conflict on one row. At most one conflict per row
// is open (ResolvedAt NULL) at a time.
type ConflictModel struct {
	ID               string     `gorm:"type:varchar(36);primaryKey"`
	Table            string     `gorm:"column:table_name;type:varchar(64);not null;index:idx_sync_conflicts_row,priority:1"`
	RowID            string     `gorm:"type:varchar(36);not null;index:idx_sync_conflicts_row,priority:2"`
	Reason           string     `gorm:"type:text;not null"`
	LocalPayload     string     `gorm:"type:text;not null"`
	RemotePayload    *string    `gorm:"type:text"`
	RemoteModifiedAt *time.Time `gorm:"column:remote_modified_at"`
	OpenedAt         time.Time  `gorm:"not null"`
	ResolvedAt       *time.Time `gorm:"index"`
	Resolution       string     `gorm:"type:varchar(32);not null;default:''"`
}

// TableName returns the table name for GORM
func (ConflictModel) TableName() string {
	return "sync_conflicts"
}

// ToDomain converts the persistence model to a domain Conflict
func (m *ConflictModel) ToDomain() (ledger.Conflict, error) {
	local, err := DecodeFields(m.LocalPayload)
	if err != nil {
		return ledger.Conflict{}, err
	}
	c := ledger.Conflict{
		ID:          m.ID,
		Table:       m.Table,
		RowID:       m.RowID,
		Reason:      m.Reason,
		LocalFields: local,
		OpenedAt:    m.OpenedAt.UTC(),
		Resolution:  ledger.Resolution(m.Resolution),
	}
	if m.RemotePayload != nil {
		remote, err := DecodeFields(*m.RemotePayload)
		if err != nil {
			return ledger.Conflict{}, err
		}
		c.RemoteFields = record.Some(remote)
	}
	if m.RemoteModifiedAt != nil {
		c.RemoteModifiedAt = record.Some(m.RemoteModifiedAt.UTC())
	}
	if m.ResolvedAt != nil {
		c.ResolvedAt = record.Some(m.ResolvedAt.UTC())
	}
	return c, nil
}

// EncodeFields serializes fields in the remote wire format
func EncodeFields(f record.Fields) (string, error) {
	data, err := json.Marshal(record.EncodeWire(f))
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(data), nil
}

// DecodeFields parses a payload written by EncodeFields. Values come back
// loosely typed and must be coerced with the table schema before use.
func DecodeFields(payload string) (record.Fields, error) {
	return record.UnmarshalWire([]byte(payload))
}
