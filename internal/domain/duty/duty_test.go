package duty

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/shared"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestABVFromGravity(t *testing.T) {
	tests := []struct {
		name   string
		og, fg string
		want   string
		ok     bool
	}{
		{"typical bitter", "1.045", "1.010", "4.5", true},
		{"truncates instead of rounding", "1.0675", "1.010", "7.5", true},
		{"lowest band", "1.010", "1.004", "0.7", true},
		{"above table uses top factor", "1.120", "1.010", "14.8", true},
		{"og equal to fg", "1.010", "1.010", "0", false},
		{"og below fg", "1.005", "1.010", "0", false},
		{"missing og", "0", "1.010", "0", false},
		{"missing fg", "1.050", "0", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abv, ok := ABVFromGravity(d(tt.og), d(tt.fg))
			assert.Equal(t, tt.ok, ok)
			assert.True(t, d(tt.want).Equal(abv), "got %s", abv)
		})
	}
}

func TestGravityFactor(t *testing.T) {
	assert.True(t, d("0.125").Equal(GravityFactor(d("6.9"))))
	assert.True(t, d("0.126").Equal(GravityFactor(d("7.0"))))
	assert.True(t, d("0.129").Equal(GravityFactor(d("36.0"))))
	assert.True(t, d("0.130").Equal(GravityFactor(d("36.1"))))
	assert.True(t, d("0.135").Equal(GravityFactor(d("100.7"))))
	assert.True(t, d("0.135").Equal(GravityFactor(d("150"))))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, HighABV, Classify(d("8.5"), d("30")))
	assert.Equal(t, HighABV, Classify(d("9"), d("0.33")))
	assert.Equal(t, DraughtLow, Classify(d("3.4"), d("30")))
	assert.Equal(t, DraughtStandard, Classify(d("3.5"), d("20")))
	assert.Equal(t, NonDraught, Classify(d("4.2"), d("19.9")))
	assert.Equal(t, NonDraught, Classify(d("2.8"), d("0.44")))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("non_draught")
	require.NoError(t, err)
	assert.Equal(t, NonDraught, c)

	_, err = ParseCategory("cider")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestRateTable(t *testing.T) {
	rates := DefaultRates()
	assert.True(t, d("8.42").Equal(rates.Rate(DraughtLow)))
	assert.True(t, d("29.54").Equal(rates.Rate(HighABV)))

	fullRates := map[Category]decimal.Decimal{
		DraughtLow: d("8.42"), DraughtStandard: d("19.27"), NonDraught: d("22.01"), HighABV: d("29.54"),
	}
	bands := []ReliefBand{
		{UpToHectolitres: d("2100"), Relief: map[Category]decimal.Decimal{DraughtStandard: d("9.50"), NonDraught: d("11")}},
		{UpToHectolitres: d("4500"), Relief: map[Category]decimal.Decimal{DraughtStandard: d("4.75")}},
	}

	t.Run("no relief without bands", func(t *testing.T) {
		_, ok := rates.Band()
		assert.False(t, ok)
		assert.True(t, rates.Relief(DraughtStandard).IsZero())
	})

	t.Run("band chosen by annual output", func(t *testing.T) {
		small, err := NewRateTable(rates.EffectiveFrom, fullRates, bands, d("1200"))
		require.NoError(t, err)
		band, ok := small.Band()
		require.True(t, ok)
		assert.True(t, d("2100").Equal(band.UpToHectolitres))
		assert.True(t, d("9.77").Equal(small.Rate(DraughtStandard)))
		assert.True(t, d("11.01").Equal(small.Rate(NonDraught)))
		assert.True(t, d("8.42").Equal(small.Rate(DraughtLow)))
		assert.True(t, d("29.54").Equal(small.Rate(HighABV)))

		mid, err := NewRateTable(rates.EffectiveFrom, fullRates, bands, d("3000"))
		require.NoError(t, err)
		assert.True(t, d("14.52").Equal(mid.Rate(DraughtStandard)))
		assert.True(t, d("22.01").Equal(mid.Rate(NonDraught)))
		assert.True(t, d("3000").Equal(mid.AnnualHectolitres()))

		large, err := NewRateTable(rates.EffectiveFrom, fullRates, bands, d("4500.01"))
		require.NoError(t, err)
		_, ok = large.Band()
		assert.False(t, ok)
		assert.True(t, d("19.27").Equal(large.Rate(DraughtStandard)))
	})

	t.Run("duty for line uses bucket and band", func(t *testing.T) {
		small, err := NewRateTable(rates.EffectiveFrom, fullRates, bands, d("1200"))
		require.NoError(t, err)
		// 2.00 LPA * 9.77 draught vs 2.00 * 11.01 non-draught
		assert.True(t, d("19.54").Equal(small.DutyForLine(d("2"), DraughtStandard)))
		assert.True(t, d("22.02").Equal(small.DutyForLine(d("2"), NonDraught)))
		assert.True(t, d("59.08").Equal(small.DutyForLine(d("2"), HighABV)))
	})

	t.Run("relief on high abv rejected", func(t *testing.T) {
		_, err := NewRateTable(rates.EffectiveFrom, fullRates,
			[]ReliefBand{{UpToHectolitres: d("2100"), Relief: map[Category]decimal.Decimal{HighABV: d("1")}}}, decimal.Zero)
		assert.Error(t, err)
	})

	t.Run("missing rate rejected", func(t *testing.T) {
		_, err := NewRateTable(rates.EffectiveFrom, map[Category]decimal.Decimal{DraughtLow: d("8.42")}, nil, decimal.Zero)
		assert.Error(t, err)
	})

	t.Run("relief above rate rejected", func(t *testing.T) {
		_, err := NewRateTable(rates.EffectiveFrom, fullRates,
			[]ReliefBand{{UpToHectolitres: d("2100"), Relief: map[Category]decimal.Decimal{DraughtLow: d("9")}}}, decimal.Zero)
		assert.Error(t, err)
	})

	t.Run("bands must ascend", func(t *testing.T) {
		_, err := NewRateTable(rates.EffectiveFrom, fullRates, []ReliefBand{bands[1], bands[0]}, decimal.Zero)
		assert.Error(t, err)
		_, err = NewRateTable(rates.EffectiveFrom, fullRates, []ReliefBand{{UpToHectolitres: decimal.Zero}}, decimal.Zero)
		assert.Error(t, err)
	})

	t.Run("negative annual output rejected", func(t *testing.T) {
		_, err := NewRateTable(rates.EffectiveFrom, fullRates, bands, d("-1"))
		assert.Error(t, err)
	})
}

func TestLPAAndDutyTruncate(t *testing.T) {
	// 41.5 l at 4.3% = 1.7845 LPA
	lpa := LPA(d("41.5"), d("4.3"))
	assert.True(t, d("1.78").Equal(lpa), "got %s", lpa)

	// 1.78 * 22.01 = 39.1778
	duty := DefaultRates().DutyForLine(lpa, NonDraught)
	assert.True(t, d("39.17").Equal(duty), "got %s", duty)
}

func TestNewLine(t *testing.T) {
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	line, err := NewLine(DefaultRates(), Packaging{
		BrewID:          record.Some("brew-1"),
		Gyle:            "G-101",
		PackagedAt:      at,
		ContainerLitres: d("30"),
		Containers:      4,
		ABV:             d("4.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-03", line.Period)
	assert.Equal(t, DraughtStandard, line.Category)
	assert.True(t, d("120").Equal(line.Litres))
	assert.True(t, d("5.4").Equal(line.LPA))
	assert.True(t, d("19.27").Equal(line.Rate))
	// 5.4 * 19.27 = 104.058
	assert.True(t, d("104.05").Equal(line.Duty), "got %s", line.Duty)

	_, err = NewLine(DefaultRates(), Packaging{Gyle: "G", PackagedAt: at, ContainerLitres: d("30"), Containers: 0, ABV: d("4")})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = NewLine(DefaultRates(), Packaging{Gyle: "G", PackagedAt: at, ContainerLitres: d("30"), Containers: 1, ABV: decimal.Zero})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = NewLine(DefaultRates(), Packaging{PackagedAt: at, ContainerLitres: d("30"), Containers: 1, ABV: d("4")})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestBuildReturn(t *testing.T) {
	rates := DefaultRates()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mk := func(container string, n int64, abv string) Line {
		l, err := NewLine(rates, Packaging{Gyle: "G", PackagedAt: at, ContainerLitres: d(container), Containers: n, ABV: d(abv)})
		require.NoError(t, err)
		return l
	}
	keg := mk("30", 2, "4.0")      // 2.40 LPA draught standard, 46.24
	bottles := mk("0.5", 100, "5") // 2.50 LPA non-draught, 55.02
	strong := mk("0.33", 30, "9")  // 0.89 LPA high abv, 26.29
	other := mk("30", 1, "4.0")
	other.Period = "2025-04"

	t.Run("aggregates buckets", func(t *testing.T) {
		r := BuildReturn("2025-03", []Line{keg, bottles, strong, other}, nil)
		assert.Equal(t, StatusDraft, r.Status)
		assert.True(t, d("60").Equal(r.Buckets[DraughtStandard].Litres))
		assert.True(t, d("2.4").Equal(r.Buckets[DraughtStandard].LPA))
		assert.True(t, d("46.24").Equal(r.Buckets[DraughtStandard].Duty))
		assert.True(t, d("55.02").Equal(r.Buckets[NonDraught].Duty))
		assert.True(t, d("26.29").Equal(r.Buckets[HighABV].Duty))
		assert.True(t, r.Buckets[DraughtLow].Duty.IsZero())
		assert.True(t, d("127.55").Equal(r.GrossDuty), "got %s", r.GrossDuty)
		assert.True(t, r.NetDuty.Equal(r.GrossDuty))
		assert.False(t, r.Anomaly)
	})

	t.Run("reclaim subtracted", func(t *testing.T) {
		rc, err := NewReclaim(bottles, "2025-03", d("10"), "infected", at)
		require.NoError(t, err)
		// 0.5 LPA * 22.01 = 11.005
		assert.True(t, d("11").Equal(rc.Duty), "got %s", rc.Duty)

		r := BuildReturn("2025-03", []Line{keg, bottles, strong}, []Reclaim{rc})
		assert.True(t, d("11").Equal(r.ReclaimDuty))
		assert.True(t, d("116.55").Equal(r.NetDuty))
		assert.False(t, r.Anomaly)
	})

	t.Run("reclaim above duty is an anomaly, not clamped", func(t *testing.T) {
		rc, err := NewReclaim(bottles, "2025-03", d("500"), "recall", at)
		require.NoError(t, err)

		r := BuildReturn("2025-03", []Line{strong}, []Reclaim{rc})
		assert.True(t, r.Anomaly)
		assert.True(t, r.NetDuty.IsNegative())
		assert.True(t, r.NetDuty.Equal(r.GrossDuty.Sub(rc.Duty)))
	})

	t.Run("row mapping keeps every bucket", func(t *testing.T) {
		r := BuildReturn("2025-03", []Line{keg, bottles}, nil)
		back := ReturnFromRow(record.Row{ID: "x", Fields: r.Fields()})
		for _, c := range Categories {
			assert.True(t, r.Buckets[c].Duty.Equal(back.Buckets[c].Duty), string(c))
		}
		assert.Equal(t, r.Period, back.Period)
	})
}

func TestReturnLifecycle(t *testing.T) {
	at := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	r := BuildReturn("2025-03", nil, nil)

	err := r.Submit(at)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	require.NoError(t, r.Finalize(at))
	assert.True(t, r.Status.Locked())
	assert.ErrorIs(t, r.Finalize(at), shared.ErrPeriodFinalized)

	require.NoError(t, r.Submit(at))
	assert.Equal(t, StatusSubmitted, r.Status)
	assert.ErrorIs(t, r.Submit(at), shared.ErrPeriodFinalized)
	ts, ok := r.SubmittedAt.Get()
	require.True(t, ok)
	assert.True(t, ts.Equal(at))
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, "2025-12", PeriodOf(time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)))
	_, err := ParsePeriod("2025-13")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = ParsePeriod("2025-02")
	assert.NoError(t, err)
}
