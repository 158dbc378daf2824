package models

import "time"

// SchemaMigrationModel records one applied migration step.
type SchemaMigrationModel struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"type:varchar(128);not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SchemaMigrationModel) TableName() string {
	return "schema_migrations"
}

// All returns every bookkeeping model, for AutoMigrate
func All() []any {
	return []any{
		&SchemaMigrationModel{},
		&TombstoneModel{},
		&WatermarkModel{},
		&AuditModel{},
		&ConflictModel{},
	}
}
