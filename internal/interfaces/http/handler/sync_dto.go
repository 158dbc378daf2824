package handler

import (
	"time"

	"github.com/tonka1973/BreweryManager-sub001/internal/domain/ledger"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/ledgersync"
)

// ResolveConflictRequest picks the surviving version of a conflicted row
type ResolveConflictRequest struct {
	Keep string `json:"keep" binding:"required,oneof=local remote"`
}

// ConflictResponse represents a sync conflict in API responses
type ConflictResponse struct {
	ID               string         `json:"id"`
	Table            string         `json:"table"`
	RowID            string         `json:"row_id"`
	Reason           string         `json:"reason"`
	LocalFields      map[string]any `json:"local_fields"`
	RemoteFields     map[string]any `json:"remote_fields,omitempty"`
	RemoteModifiedAt *time.Time     `json:"remote_modified_at,omitempty"`
	OpenedAt         time.Time      `json:"opened_at"`
	ResolvedAt       *time.Time     `json:"resolved_at,omitempty"`
	Resolution       string         `json:"resolution,omitempty"`
}

// CycleResponse represents the outcome of a sync cycle
type CycleResponse struct {
	*ledgersync.CycleReport
	DurationMS int64                  `json:"duration_ms"`
	Totals     ledgersync.TableReport `json:"totals"`
}

// ToConflictResponse converts a conflict record to a response
func ToConflictResponse(c ledger.Conflict) ConflictResponse {
	resp := ConflictResponse{
		ID:               c.ID,
		Table:            c.Table,
		RowID:            c.RowID,
		Reason:           c.Reason,
		LocalFields:      record.EncodeWire(c.LocalFields),
		RemoteModifiedAt: c.RemoteModifiedAt.Ptr(),
		OpenedAt:         c.OpenedAt,
		ResolvedAt:       c.ResolvedAt.Ptr(),
		Resolution:       string(c.Resolution),
	}
	if remote, ok := c.RemoteFields.Get(); ok {
		resp.RemoteFields = record.EncodeWire(remote)
	}
	return resp
}

// ToCycleResponse converts a cycle report to a response
func ToCycleResponse(r *ledgersync.CycleReport) CycleResponse {
	return CycleResponse{
		CycleReport: r,
		DurationMS:  r.Duration().Milliseconds(),
		Totals:      r.Totals(),
	}
}
