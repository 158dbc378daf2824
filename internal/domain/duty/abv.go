package duty

import "github.com/shopspring/decimal"

// gravityFactor maps an upper bound of excess gravity (degrees) to the HMRC
// conversion factor.
type gravityFactor struct {
	upTo   decimal.Decimal
	factor decimal.Decimal
}

var gravityFactors = []gravityFactor{
	{decimal.RequireFromString("6.9"), decimal.RequireFromString("0.125")},
	{decimal.RequireFromString("10.4"), decimal.RequireFromString("0.126")},
	{decimal.RequireFromString("17.2"), decimal.RequireFromString("0.127")},
	{decimal.RequireFromString("26.1"), decimal.RequireFromString("0.128")},
	{decimal.RequireFromString("36.0"), decimal.RequireFromString("0.129")},
	{decimal.RequireFromString("46.5"), decimal.RequireFromString("0.130")},
	{decimal.RequireFromString("57.1"), decimal.RequireFromString("0.131")},
	{decimal.RequireFromString("67.9"), decimal.RequireFromString("0.132")},
	{decimal.RequireFromString("78.8"), decimal.RequireFromString("0.133")},
	{decimal.RequireFromString("89.7"), decimal.RequireFromString("0.134")},
	{decimal.RequireFromString("100.7"), decimal.RequireFromString("0.135")},
}

var (
	maxGravityFactor = decimal.RequireFromString("0.135")
	thousand         = decimal.NewFromInt(1000)
)

// GravityFactor returns the conversion factor for an excess gravity
func GravityFactor(diff decimal.Decimal) decimal.Decimal {
	for _, g := range gravityFactors {
		if diff.LessThanOrEqual(g.upTo) {
			return g.factor
		}
	}
	return maxGravityFactor
}

// ABVFromGravity computes ABV from original and final gravity (e.g. 1.045
// and 1.010). The result is truncated to one decimal place; it is never
// rounded to nearest. ok is false when either gravity is missing (zero) or
// og <= fg, in which case the ABV is undetermined.
func ABVFromGravity(og, fg decimal.Decimal) (abv decimal.Decimal, ok bool) {
	if og.IsZero() || fg.IsZero() || og.LessThanOrEqual(fg) {
		return decimal.Zero, false
	}
	diff := og.Sub(fg).Mul(thousand)
	return diff.Mul(GravityFactor(diff)).Truncate(1), true
}
