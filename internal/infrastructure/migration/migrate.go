// Package migration applies versioned schema steps to the local store.
// Applied versions are recorded in schema_migrations; every step checks
// for existing tables and columns first, so re-running is harmless.
package migration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/persistence"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Step is one schema version
type Step struct {
	Version int
	Name    string
	Up      func(tx *gorm.DB) error
}

// Ledger runs the steps derived from a schema
type Ledger struct {
	db     *persistence.Database
	steps  []Step
	logger *zap.Logger
}

// New creates a ledger for schema
func New(db *persistence.Database, schema *record.Schema, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, steps: Plan(schema), logger: logger}
}

// Plan derives the steps for schema. Version 1 creates the bookkeeping
// tables and every table with its base columns; each later version adds
// the columns declared with that AddedIn.
func Plan(schema *record.Schema) []Step {
	steps := []Step{{
		Version: 1,
		Name:    "base schema",
		Up: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(models.All()...); err != nil {
				return fmt.Errorf("bookkeeping tables: %w", err)
			}
			for _, t := range schema.Tables() {
				if err := persistence.CreateTable(tx, t, 1); err != nil {
					return err
				}
			}
			return nil
		},
	}}

	added := make(map[int][]columnRef)
	for _, t := range schema.Tables() {
		for _, c := range t.Columns {
			if c.AddedIn > 1 {
				added[c.AddedIn] = append(added[c.AddedIn], columnRef{table: t.Name, column: c})
			}
		}
	}
	versions := make([]int, 0, len(added))
	for v := range added {
		versions = append(versions, v)
	}
	sort.Ints(versions)

	for _, v := range versions {
		refs := added[v]
		name := "add"
		for _, r := range refs {
			name += " " + r.table + "." + r.column.Name
		}
		steps = append(steps, Step{
			Version: v,
			Name:    name,
			Up: func(tx *gorm.DB) error {
				for _, r := range refs {
					if tx.Migrator().HasColumn(r.table, r.column.Name) {
						continue
					}
					if err := persistence.AddColumn(tx, r.table, r.column); err != nil {
						return err
					}
				}
				return nil
			},
		})
	}
	return steps
}

type columnRef struct {
	table  string
	column record.Column
}

// Steps returns the planned steps in version order
func (l *Ledger) Steps() []Step {
	return append([]Step(nil), l.steps...)
}

// Version returns the highest applied version, 0 on an empty database
func (l *Ledger) Version(ctx context.Context) (int, error) {
	db := l.db.DB.WithContext(ctx)
	if !db.Migrator().HasTable(&models.SchemaMigrationModel{}) {
		return 0, nil
	}
	var version int
	err := db.Model(&models.SchemaMigrationModel{}).
		Select("COALESCE(MAX(version), 0)").
		Scan(&version).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, nil
}

// Pending returns the steps not applied yet
func (l *Ledger) Pending(ctx context.Context) ([]Step, error) {
	current, err := l.Version(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Step
	for _, s := range l.steps {
		if s.Version > current {
			pending = append(pending, s)
		}
	}
	return pending, nil
}

// Up applies every pending step, each in its own transaction, and returns
// how many ran.
func (l *Ledger) Up(ctx context.Context) (int, error) {
	pending, err := l.Pending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		l.logger.Info("No migrations to apply")
		return 0, nil
	}

	for i, s := range pending {
		l.logger.Info("Applying migration", zap.Int("version", s.Version), zap.String("name", s.Name))
		err := l.db.Write(ctx, func(tx *gorm.DB) error {
			if err := s.Up(tx); err != nil {
				return err
			}
			return tx.Create(&models.SchemaMigrationModel{
				Version:   s.Version,
				Name:      s.Name,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return i, fmt.Errorf("migration %d (%s) failed: %w", s.Version, s.Name, err)
		}
	}

	l.logger.Info("Migrations completed", zap.Int("applied", len(pending)), zap.Int("version", pending[len(pending)-1].Version))
	return len(pending), nil
}
