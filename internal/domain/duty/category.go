// Package duty computes UK alcohol duty: ABV from gravity readings, duty
// lines per packaging event and the monthly return that aggregates them.
package duty

import (
	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
)

// Category is a duty rate bucket
type Category string

const (
	DraughtLow      Category = "draught_low"
	DraughtStandard Category = "draught_standard"
	NonDraught      Category = "non_draught"
	HighABV         Category = "high_abv"
)

// Categories lists every bucket in return order
var Categories = []Category{DraughtLow, DraughtStandard, NonDraught, HighABV}

// ParseCategory validates a bucket name
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", shared.Errorf(shared.CodeInvalidInput, "unknown duty category %q", s)
}

var (
	// DraughtMinLitres is the smallest container that qualifies for draught relief.
	DraughtMinLitres = decimal.NewFromInt(20)
	lowABVLimit      = decimal.RequireFromString("3.5")
	highABVLimit     = decimal.RequireFromString("8.5")
)

// Classify picks the bucket for a product of the given ABV packaged in
// containers of containerLitres.
func Classify(abv, containerLitres decimal.Decimal) Category {
	if abv.GreaterThanOrEqual(highABVLimit) {
		return HighABV
	}
	if containerLitres.GreaterThanOrEqual(DraughtMinLitres) {
		if abv.LessThan(lowABVLimit) {
			return DraughtLow
		}
		return DraughtStandard
	}
	return NonDraught
}
