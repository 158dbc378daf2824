package duty

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ReliefBand is one small producer relief tier. A producer whose annual
// output is at most UpToHectolitres deducts Relief from the bucket rate.
type ReliefBand struct {
	UpToHectolitres decimal.Decimal
	Relief          map[Category]decimal.Decimal
}

// RateTable holds the duty rate per litre of pure alcohol for each bucket,
// the small producer relief bands, and the band selected by the producer's
// annual output. Relief never applies to high-ABV products.
type RateTable struct {
	EffectiveFrom time.Time
	rates         map[Category]decimal.Decimal
	bands         []ReliefBand
	annual        decimal.Decimal
	band          int
}

// DefaultRates returns the rates in force from 1 February 2025 with no relief
func DefaultRates() RateTable {
	t, _ := NewRateTable(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		map[Category]decimal.Decimal{
			DraughtLow:      decimal.RequireFromString("8.42"),
			DraughtStandard: decimal.RequireFromString("19.27"),
			NonDraught:      decimal.RequireFromString("22.01"),
			HighABV:         decimal.RequireFromString("29.54"),
		}, nil, decimal.Zero)
	return t
}

// NewRateTable validates rates and relief bands and selects the band for
// annualHectolitres. Every bucket needs a rate. Bands must be in ascending
// order of UpToHectolitres; relief is optional per bucket and cannot
// exceed the rate. A producer above the last band gets no relief.
func NewRateTable(effectiveFrom time.Time, rates map[Category]decimal.Decimal, bands []ReliefBand, annualHectolitres decimal.Decimal) (RateTable, error) {
	if annualHectolitres.IsNegative() {
		return RateTable{}, fmt.Errorf("annual production cannot be negative")
	}
	t := RateTable{
		EffectiveFrom: effectiveFrom.UTC(),
		rates:         make(map[Category]decimal.Decimal, len(Categories)),
		bands:         make([]ReliefBand, 0, len(bands)),
		annual:        annualHectolitres,
		band:          -1,
	}
	for _, c := range Categories {
		r, ok := rates[c]
		if !ok {
			return RateTable{}, fmt.Errorf("no duty rate for %s", c)
		}
		if r.IsNegative() {
			return RateTable{}, fmt.Errorf("negative duty rate for %s", c)
		}
		t.rates[c] = r
	}

	for i, b := range bands {
		if !b.UpToHectolitres.IsPositive() {
			return RateTable{}, fmt.Errorf("relief band %d: upper bound must be positive", i+1)
		}
		if i > 0 && !b.UpToHectolitres.GreaterThan(bands[i-1].UpToHectolitres) {
			return RateTable{}, fmt.Errorf("relief band %d: upper bound %s must exceed %s",
				i+1, b.UpToHectolitres, bands[i-1].UpToHectolitres)
		}
		band := ReliefBand{
			UpToHectolitres: b.UpToHectolitres,
			Relief:          make(map[Category]decimal.Decimal, len(Categories)),
		}
		for _, c := range Categories {
			rel := b.Relief[c]
			if c == HighABV && !rel.IsZero() {
				return RateTable{}, fmt.Errorf("relief band %d: small producer relief does not apply to %s", i+1, c)
			}
			if rel.IsNegative() || rel.GreaterThan(t.rates[c]) {
				return RateTable{}, fmt.Errorf("relief band %d: relief for %s must be between 0 and %s", i+1, c, t.rates[c])
			}
			band.Relief[c] = rel
		}
		t.bands = append(t.bands, band)
		if t.band < 0 && annualHectolitres.LessThanOrEqual(b.UpToHectolitres) {
			t.band = i
		}
	}
	return t, nil
}

// Band returns the relief band selected for the producer, if any
func (t RateTable) Band() (ReliefBand, bool) {
	if t.band < 0 {
		return ReliefBand{}, false
	}
	return t.bands[t.band], true
}

// AnnualHectolitres is the producer output the band was selected for
func (t RateTable) AnnualHectolitres() decimal.Decimal {
	return t.annual
}

// Relief returns the selected band's relief for a bucket
func (t RateTable) Relief(c Category) decimal.Decimal {
	if t.band < 0 {
		return decimal.Zero
	}
	return t.bands[t.band].Relief[c]
}

// Rate returns the effective rate for a bucket, after relief
func (t RateTable) Rate(c Category) decimal.Decimal {
	return t.rates[c].Sub(t.Relief(c))
}

// LPA returns litres of pure alcohol, truncated to two decimal places
func LPA(litres, abv decimal.Decimal) decimal.Decimal {
	return litres.Mul(abv).Div(hundred).Truncate(2)
}

// DutyForLine returns the duty payable on lpa litres of pure alcohol in
// bucket c at the producer's band, truncated to whole pence.
func (t RateTable) DutyForLine(lpa decimal.Decimal, c Category) decimal.Decimal {
	return lpa.Mul(t.Rate(c)).Truncate(2)
}
