package duty

import (
	"time"

	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
)

const periodLayout = "2006-01"

// PeriodOf returns the calendar month (YYYY-MM) containing t
func PeriodOf(t time.Time) string {
	return t.UTC().Format(periodLayout)
}

// ParsePeriod validates a YYYY-MM period
func ParsePeriod(s string) (time.Time, error) {
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return time.Time{}, shared.Errorf(shared.CodeInvalidInput, "period must be YYYY-MM, got %q", s)
	}
	return t, nil
}
