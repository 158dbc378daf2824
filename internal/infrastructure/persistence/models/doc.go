// Package models contains GORM persistence models for the store's own
// bookkeeping tables. Domain tables are dynamic and described by
// record.TableSchema instead; these models back the sync engine and the
// migration ledger.
package models
