package duty

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
)

// Packaging describes one packaging run of a gyle
type Packaging struct {
	BrewID          record.Optional[string]
	Gyle            string
	PackagedAt      time.Time
	ContainerLitres decimal.Decimal
	Containers      int64
	ABV             decimal.Decimal
}

// Line is the duty due on one packaging event
type Line struct {
	ID              string
	Period          string
	BrewID          record.Optional[string]
	Gyle            string
	PackagedAt      time.Time
	ContainerLitres decimal.Decimal
	Containers      int64
	Litres          decimal.Decimal
	ABV             decimal.Decimal
	LPA             decimal.Decimal
	Category        Category
	Rate            decimal.Decimal
	Duty            decimal.Decimal
}

// NewLine classifies a packaging event and computes its duty
func NewLine(rates RateTable, p Packaging) (Line, error) {
	if p.Gyle == "" {
		return Line{}, shared.NewDomainError(shared.CodeInvalidInput, "gyle number is required")
	}
	if !p.ContainerLitres.IsPositive() || p.Containers <= 0 {
		return Line{}, shared.NewDomainError(shared.CodeInvalidInput, "container size and count must be positive")
	}
	if !p.ABV.IsPositive() {
		return Line{}, shared.Errorf(shared.CodeInvalidInput, "ABV must be positive, got %s", p.ABV)
	}
	if p.PackagedAt.IsZero() {
		return Line{}, shared.NewDomainError(shared.CodeInvalidInput, "packaging date is required")
	}

	litres := p.ContainerLitres.Mul(decimal.NewFromInt(p.Containers))
	lpa := LPA(litres, p.ABV)
	cat := Classify(p.ABV, p.ContainerLitres)
	return Line{
		Period:          PeriodOf(p.PackagedAt),
		BrewID:          p.BrewID,
		Gyle:            p.Gyle,
		PackagedAt:      p.PackagedAt.UTC(),
		ContainerLitres: p.ContainerLitres,
		Containers:      p.Containers,
		Litres:          litres,
		ABV:             p.ABV,
		LPA:             lpa,
		Category:        cat,
		Rate:            rates.Rate(cat),
		Duty:            rates.DutyForLine(lpa, cat),
	}, nil
}

// LineFromRow maps a duty_lines row
func LineFromRow(r record.Row) Line {
	return Line{
		ID:              r.ID,
		Period:          r.Fields.Text("period"),
		BrewID:          r.Fields.OptText("brew_id"),
		Gyle:            r.Fields.Text("gyle"),
		PackagedAt:      r.Fields.Time("packaged_at"),
		ContainerLitres: r.Fields.Decimal("container_litres"),
		Containers:      r.Fields.Int("containers"),
		Litres:          r.Fields.Decimal("litres"),
		ABV:             r.Fields.Decimal("abv"),
		LPA:             r.Fields.Decimal("lpa"),
		Category:        Category(r.Fields.Text("category")),
		Rate:            r.Fields.Decimal("rate"),
		Duty:            r.Fields.Decimal("duty"),
	}
}

// Fields returns the row fields of the line
func (l Line) Fields() record.Fields {
	return record.Fields{
		"period":           record.Text(l.Period),
		"brew_id":          record.OptionalText(l.BrewID),
		"gyle":             record.Text(l.Gyle),
		"packaged_at":      record.Time(l.PackagedAt),
		"container_litres": record.Dec(l.ContainerLitres),
		"containers":       record.Int(l.Containers),
		"litres":           record.Dec(l.Litres),
		"abv":              record.Dec(l.ABV),
		"lpa":              record.Dec(l.LPA),
		"category":         record.Text(string(l.Category)),
		"rate":             record.Dec(l.Rate),
		"duty":             record.Dec(l.Duty),
	}
}

// Reclaim is duty claimed back on beer spoiled after duty was paid. It is
// charged at the rate of the line it was packaged under.
type Reclaim struct {
	ID         string
	Period     string
	Gyle       string
	Litres     decimal.Decimal
	ABV        decimal.Decimal
	LPA        decimal.Decimal
	Category   Category
	Rate       decimal.Decimal
	Duty       decimal.Decimal
	Reason     string
	RecordedAt time.Time
}

// NewReclaim computes the duty reclaimable on litres spoiled from the gyle
// packaged under line.
func NewReclaim(line Line, period string, litres decimal.Decimal, reason string, at time.Time) (Reclaim, error) {
	if !litres.IsPositive() {
		return Reclaim{}, shared.Errorf(shared.CodeInvalidInput, "spoiled litres must be positive, got %s", litres)
	}
	if reason == "" {
		return Reclaim{}, shared.NewDomainError(shared.CodeInvalidInput, "a reason is required for spoilage")
	}
	lpa := LPA(litres, line.ABV)
	return Reclaim{
		Period:     period,
		Gyle:       line.Gyle,
		Litres:     litres,
		ABV:        line.ABV,
		LPA:        lpa,
		Category:   line.Category,
		Rate:       line.Rate,
		Duty:       lpa.Mul(line.Rate).Truncate(2),
		Reason:     reason,
		RecordedAt: at.UTC(),
	}, nil
}

// ReclaimFromRow maps a spoilage_reclaims row
func ReclaimFromRow(r record.Row) Reclaim {
	return Reclaim{
		ID:         r.ID,
		Period:     r.Fields.Text("period"),
		Gyle:       r.Fields.Text("gyle"),
		Litres:     r.Fields.Decimal("litres"),
		ABV:        r.Fields.Decimal("abv"),
		LPA:        r.Fields.Decimal("lpa"),
		Category:   Category(r.Fields.Text("category")),
		Rate:       r.Fields.Decimal("rate"),
		Duty:       r.Fields.Decimal("duty"),
		Reason:     r.Fields.Text("reason"),
		RecordedAt: r.Fields.Time("recorded_at"),
	}
}

// Fields returns the row fields of the reclaim
func (r Reclaim) Fields() record.Fields {
	return record.Fields{
		"period":      record.Text(r.Period),
		"gyle":        record.Text(r.Gyle),
		"litres":      record.Dec(r.Litres),
		"abv":         record.Dec(r.ABV),
		"lpa":         record.Dec(r.LPA),
		"category":    record.Text(string(r.Category)),
		"rate":        record.Dec(r.Rate),
		"duty":        record.Dec(r.Duty),
		"reason":      record.Text(r.Reason),
		"recorded_at": record.Time(r.RecordedAt),
	}
}
