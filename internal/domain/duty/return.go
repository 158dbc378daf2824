package duty

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
)

// Status is the lifecycle state of a monthly return
type Status string

const (
	StatusDraft     Status = "draft"
	StatusFinalized Status = "finalized"
	StatusSubmitted Status = "submitted"
)

// Locked reports whether the period no longer accepts lines or reclaims
func (s Status) Locked() bool {
	return s == StatusFinalized || s == StatusSubmitted
}

// Bucket totals one duty category
type Bucket struct {
	Litres decimal.Decimal
	LPA    decimal.Decimal
	Duty   decimal.Decimal
}

// Return is the monthly duty return. NetDuty is GrossDuty minus
// ReclaimDuty and may be negative; Anomaly is set when it is.
type Return struct {
	ID          string
	Period      string
	Status      Status
	Buckets     map[Category]Bucket
	ReclaimDuty decimal.Decimal
	GrossDuty   decimal.Decimal
	NetDuty     decimal.Decimal
	Anomaly     bool
	FinalizedAt record.Optional[time.Time]
	SubmittedAt record.Optional[time.Time]
}

// BuildReturn aggregates the lines and reclaims of period into a draft
// return. Lines or reclaims of other periods are ignored.
func BuildReturn(period string, lines []Line, reclaims []Reclaim) Return {
	r := Return{
		Period:      period,
		Status:      StatusDraft,
		Buckets:     emptyBuckets(),
		ReclaimDuty: decimal.Zero,
		GrossDuty:   decimal.Zero,
	}
	for _, l := range lines {
		if l.Period != period {
			continue
		}
		b := r.Buckets[l.Category]
		b.Litres = b.Litres.Add(l.Litres)
		b.LPA = b.LPA.Add(l.LPA)
		b.Duty = b.Duty.Add(l.Duty)
		r.Buckets[l.Category] = b
		r.GrossDuty = r.GrossDuty.Add(l.Duty)
	}
	for _, rc := range reclaims {
		if rc.Period != period {
			continue
		}
		r.ReclaimDuty = r.ReclaimDuty.Add(rc.Duty)
	}
	r.NetDuty = r.GrossDuty.Sub(r.ReclaimDuty)
	r.Anomaly = r.NetDuty.IsNegative()
	return r
}

func emptyBuckets() map[Category]Bucket {
	m := make(map[Category]Bucket, len(Categories))
	for _, c := range Categories {
		m[c] = Bucket{Litres: decimal.Zero, LPA: decimal.Zero, Duty: decimal.Zero}
	}
	return m
}

// Finalize locks a draft return
func (r *Return) Finalize(at time.Time) error {
	if r.Status != StatusDraft {
		return shared.Errorf(shared.CodePeriodFinalized, "return for %s is already %s", r.Period, r.Status)
	}
	r.Status = StatusFinalized
	r.FinalizedAt = record.Some(at.UTC())
	return nil
}

// Submit marks a finalized return as filed with HMRC
func (r *Return) Submit(at time.Time) error {
	switch r.Status {
	case StatusDraft:
		return shared.Errorf(shared.CodeInvalidState, "return for %s must be finalized before submission", r.Period)
	case StatusSubmitted:
		return shared.Errorf(shared.CodePeriodFinalized, "return for %s is already submitted", r.Period)
	}
	r.Status = StatusSubmitted
	r.SubmittedAt = record.Some(at.UTC())
	return nil
}

// ReturnFromRow maps a duty_returns row
func ReturnFromRow(row record.Row) Return {
	r := Return{
		ID:          row.ID,
		Period:      row.Fields.Text("period"),
		Status:      Status(row.Fields.Text("status")),
		Buckets:     make(map[Category]Bucket, len(Categories)),
		ReclaimDuty: row.Fields.Decimal("reclaim_duty"),
		GrossDuty:   row.Fields.Decimal("gross_duty"),
		NetDuty:     row.Fields.Decimal("net_duty"),
		Anomaly:     row.Fields.Bool("anomaly"),
		FinalizedAt: row.Fields.OptTime("finalized_at"),
		SubmittedAt: row.Fields.OptTime("submitted_at"),
	}
	for _, c := range Categories {
		r.Buckets[c] = Bucket{
			Litres: row.Fields.Decimal(string(c) + "_litres"),
			LPA:    row.Fields.Decimal(string(c) + "_lpa"),
			Duty:   row.Fields.Decimal(string(c) + "_duty"),
		}
	}
	return r
}

// Fields returns the row fields of the return
func (r Return) Fields() record.Fields {
	f := record.Fields{
		"period":       record.Text(r.Period),
		"status":       record.Text(string(r.Status)),
		"reclaim_duty": record.Dec(r.ReclaimDuty),
		"gross_duty":   record.Dec(r.GrossDuty),
		"net_duty":     record.Dec(r.NetDuty),
		"anomaly":      record.Bool(r.Anomaly),
		"finalized_at": record.OptionalTime(r.FinalizedAt),
		"submitted_at": record.OptionalTime(r.SubmittedAt),
	}
	for _, c := range Categories {
		b := r.Buckets[c]
		f[string(c)+"_litres"] = record.Dec(b.Litres)
		f[string(c)+"_lpa"] = record.Dec(b.LPA)
		f[string(c)+"_duty"] = record.Dec(b.Duty)
	}
	return f
}
