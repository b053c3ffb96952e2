package plancost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelliwatt/intelliwatt/internal/efl"
)

var (
	stdTdsp     = TdspRates{PerKwhCents: 4.5691, MonthlyCents: 423}
	testRefDate = time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
)

const testZone = "America/Chicago"

func uniformUsage(totalKwh float64) UsageProfile {
	return ReconstructUsage(totalKwh, nil, nil, testRefDate, testZone)
}

func TestCalculateFlatRate(t *testing.T) {
	rules := PlanRules{
		PlanID:            "flat-12",
		EnergyCentsPerKwh: 9.8,
		BaseMonthlyCents:  495,
	}
	m, err := Calculate(rules, uniformUsage(1000), stdTdsp)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, m.Source)

	// 1000*9.8 + 495 + (1000*4.5691 + 423)
	assert.InDelta(t, 9800, m.Breakdown.EnergyCents, 1e-9)
	assert.InDelta(t, 4992.1, m.Breakdown.TdspCents, 1e-9)
	assert.InDelta(t, 9800+495+4992.1, m.Breakdown.TotalCents, 1e-9)
	assert.InDelta(t, m.Breakdown.TotalCents/1000, m.AvgCentsPerKwh, 1e-9)
}

func TestCalculateBundledTdsp(t *testing.T) {
	rules := PlanRules{PlanID: "bundled", EnergyCentsPerKwh: 14.5, TdspBundled: true}
	m, err := Calculate(rules, uniformUsage(500), stdTdsp)
	require.NoError(t, err)
	assert.Zero(t, m.Breakdown.TdspCents)
	assert.InDelta(t, 14.5, m.AvgCentsPerKwh, 1e-9)
}

func TestCalculateTieredRate(t *testing.T) {
	rules := PlanRules{
		PlanID: "tiered",
		Tiers: []RateTier{
			{UpToKwh: 0, CentsPerKwh: 8.0}, // open-ended top tier, listed first on purpose
			{UpToKwh: 500, CentsPerKwh: 12.0},
			{UpToKwh: 1000, CentsPerKwh: 10.0},
		},
		TdspBundled: true,
	}

	// 500@12 + 500@10 + 500@8.
	m, err := Calculate(rules, uniformUsage(1500), TdspRates{})
	require.NoError(t, err)
	assert.InDelta(t, 500*12+500*10+500*8, m.Breakdown.EnergyCents, 1e-9)

	// Inside the first tier only.
	m, err = Calculate(rules, uniformUsage(300), TdspRates{})
	require.NoError(t, err)
	assert.InDelta(t, 300*12, m.Breakdown.EnergyCents, 1e-9)
}

func TestCalculateBillCredits(t *testing.T) {
	rules := PlanRules{
		PlanID:            "credit",
		EnergyCentsPerKwh: 12.0,
		TdspBundled:       true,
		Credits: []BillCredit{
			{MinKwh: 1000, MaxKwh: 2000, AmountCents: 3000},
			{MinKwh: 0, MaxKwh: 499, AmountCents: -995}, // low-usage surcharge
		},
	}

	m, err := Calculate(rules, uniformUsage(1000), TdspRates{})
	require.NoError(t, err)
	assert.InDelta(t, 3000, m.Breakdown.CreditCents, 1e-9)
	assert.InDelta(t, 12000-3000, m.Breakdown.TotalCents, 1e-9)

	// 300 kWh lands in the surcharge band; the bill goes up.
	m, err = Calculate(rules, uniformUsage(300), TdspRates{})
	require.NoError(t, err)
	assert.InDelta(t, -995, m.Breakdown.CreditCents, 1e-9)
	assert.InDelta(t, 3600+995, m.Breakdown.TotalCents, 1e-9)

	// 2500 kWh is outside both bands.
	m, err = Calculate(rules, uniformUsage(2500), TdspRates{})
	require.NoError(t, err)
	assert.Zero(t, m.Breakdown.CreditCents)
}

func TestCalculateFreeNights(t *testing.T) {
	rules := PlanRules{
		PlanID:            "free-nights",
		EnergyCentsPerKwh: 16.0,
		NightCentsPerKwh:  0,
		Night:             &NightWindow{StartHour: 20, EndHour: 6},
		TdspBundled:       true,
	}
	pct := 32.0
	usage := ReconstructUsage(1000, rules.Night, &efl.NightHours{NightUsagePercent: &pct}, testRefDate, testZone)

	m, err := Calculate(rules, usage, TdspRates{})
	require.NoError(t, err)
	// Only the 680 day kWh are billed.
	assert.InDelta(t, 680*16, m.Breakdown.EnergyCents, 1e-9)
}

func TestCalculateUnavailable(t *testing.T) {
	m, err := Calculate(PlanRules{PlanID: "empty"}, uniformUsage(1000), TdspRates{})
	require.Error(t, err)
	assert.Equal(t, SourceUnavailable, m.Source)
}

func TestReconstructUsage(t *testing.T) {
	window := &NightWindow{StartHour: 20, EndHour: 6}

	// Declared night share wins.
	pct := 32.0
	p := ReconstructUsage(1000, window, &efl.NightHours{NightUsagePercent: &pct}, testRefDate, testZone)
	require.Len(t, p.Points, 24)
	assert.InDelta(t, 320, p.NightKwh(window), 1e-9)
	assert.Equal(t, testRefDate, p.ReferenceDate)
	assert.Equal(t, testZone, p.TimeZone)

	// Flat profile: 10 of 24 hours are night, each hour 1/24 of the total.
	p = ReconstructUsage(1200, window, nil, testRefDate, testZone)
	assert.InDelta(t, 500, p.NightKwh(window), 1e-9)
	sum := 0.0
	for h, pt := range p.Points {
		assert.Equal(t, h, pt.Hour)
		assert.InDelta(t, 50, pt.Kwh, 1e-9)
		sum += pt.Kwh
	}
	assert.InDelta(t, 1200, sum, 1e-9)

	// No window means a uniform profile with nothing at night.
	p = ReconstructUsage(1000, nil, nil, testRefDate, testZone)
	assert.Zero(t, p.NightKwh(nil))
	assert.InDelta(t, 1000.0/24, p.Points[3].Kwh, 1e-9)
}

func TestReconstructUsageDeclaredShareSkewsHours(t *testing.T) {
	// 80% of usage in 10 night hours: night hours carry more than day
	// hours, and the points still sum to the total.
	window := &NightWindow{StartHour: 20, EndHour: 6}
	pct := 80.0
	p := ReconstructUsage(1000, window, &efl.NightHours{NightUsagePercent: &pct}, testRefDate, testZone)

	sum := 0.0
	for _, pt := range p.Points {
		if window.ContainsHour(pt.Hour) {
			assert.InDelta(t, 80, pt.Kwh, 1e-9)
		} else {
			assert.InDelta(t, 200.0/14, pt.Kwh, 1e-9)
		}
		sum += pt.Kwh
	}
	assert.InDelta(t, 1000, sum, 1e-9)
}

func TestNightWindowHours(t *testing.T) {
	assert.Equal(t, 10, NightWindow{StartHour: 20, EndHour: 6}.Hours())
	assert.Equal(t, 8, NightWindow{StartHour: 22, EndHour: 6}.Hours())
	assert.Equal(t, 6, NightWindow{StartHour: 0, EndHour: 6}.Hours())
}

func TestNightWindowContainsHour(t *testing.T) {
	overnight := NightWindow{StartHour: 20, EndHour: 6}
	assert.True(t, overnight.ContainsHour(23))
	assert.True(t, overnight.ContainsHour(0))
	assert.True(t, overnight.ContainsHour(5))
	assert.False(t, overnight.ContainsHour(6), "end is exclusive")
	assert.False(t, overnight.ContainsHour(12))

	same := NightWindow{StartHour: 0, EndHour: 6}
	assert.True(t, same.ContainsHour(0))
	assert.False(t, same.ContainsHour(6))
}

type stubEngine struct {
	breakdown Breakdown
	err       error
	gotUsage  *UsageProfile
}

func (s *stubEngine) MonthlyCost(_ context.Context, _ PlanRules, usage UsageProfile, _ TdspRates) (Breakdown, error) {
	s.gotUsage = &usage
	return s.breakdown, s.err
}

func TestPricerPrefersEngine(t *testing.T) {
	eng := &stubEngine{breakdown: Breakdown{TotalCents: 12345}}
	p := NewPricer(eng)
	m := p.Price(context.Background(), PlanRules{PlanID: "p", EnergyCentsPerKwh: 10}, uniformUsage(1000), TdspRates{})
	assert.Equal(t, SourceEngine, m.Source)
	assert.InDelta(t, 12.345, m.AvgCentsPerKwh, 1e-9)

	// The engine sees the full hourly profile with its anchor.
	require.NotNil(t, eng.gotUsage)
	assert.Len(t, eng.gotUsage.Points, 24)
	assert.Equal(t, testRefDate, eng.gotUsage.ReferenceDate)
	assert.Equal(t, testZone, eng.gotUsage.TimeZone)
}

func TestPricerFallsBackOnEngineError(t *testing.T) {
	p := NewPricer(&stubEngine{err: errors.New("engine down")})
	rules := PlanRules{PlanID: "p", EnergyCentsPerKwh: 10, TdspBundled: true}
	m := p.Price(context.Background(), rules, uniformUsage(1000), TdspRates{})
	assert.Equal(t, SourceFallback, m.Source)
	assert.InDelta(t, 10, m.AvgCentsPerKwh, 1e-9)
	assert.NotEmpty(t, m.Reason)
}

func TestPricerUnavailableWhenNothingCanModel(t *testing.T) {
	p := NewPricer(&stubEngine{err: errors.New("engine down")})
	m := p.Price(context.Background(), PlanRules{PlanID: "p"}, uniformUsage(1000), TdspRates{})
	assert.Equal(t, SourceUnavailable, m.Source)
}

func TestPricerNilEngineUsesFallback(t *testing.T) {
	p := NewPricer(nil)
	m := p.Price(context.Background(), PlanRules{PlanID: "p", EnergyCentsPerKwh: 10, TdspBundled: true}, uniformUsage(500), TdspRates{})
	assert.Equal(t, SourceFallback, m.Source)
	assert.Empty(t, m.Reason)
}
