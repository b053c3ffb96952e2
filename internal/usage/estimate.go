package usage

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/intelliwatt/intelliwatt/internal/buckets"
	"github.com/intelliwatt/intelliwatt/internal/storage"
)

// StitchMode controls how the builder completes the partial current month.
type StitchMode string

const (
	// StitchDailyOnly only reads persisted daily bucket rows; missing days
	// stay missing.
	StitchDailyOnly StitchMode = "DAILY_ONLY"
	// StitchDailyOrInterval falls back to re-bucketing raw intervals for
	// the narrow day ranges whose daily rows are not yet computed.
	StitchDailyOrInterval StitchMode = "DAILY_OR_INTERVAL"
)

// StitchModePriorYearTail is the only stitch diagnostic mode: the missing
// tail of the current month is borrowed from the same calendar month one
// year earlier.
const StitchModePriorYearTail = "PRIOR_YEAR_TAIL"

// EstimateConfig controls the estimation builder. Zero values fall back to
// the documented defaults.
type EstimateConfig struct {
	// MonthsCount is how many trailing calendar months the estimate spans.
	// Default 12.
	MonthsCount int
	// CompleteDayThresholdMinutes is the local time-of-day after which a
	// day counts as complete. Default 23:45.
	CompleteDayThresholdMinutes int
	// MaxStepBackDays bounds stepping back past the threshold day when its
	// data has not arrived yet. Default 2.
	MaxStepBackDays int
	// StitchMode selects the partial-month fallback. Default
	// DAILY_OR_INTERVAL.
	StitchMode StitchMode
	// RequiredBucketKeys are keys every month in the output must carry
	// (zero-filled if absent). Defaults to the canonical catalog.
	RequiredBucketKeys []string
	// Attribution applies when the interval fallback re-evaluates rules.
	Attribution buckets.OvernightAttribution
}

func (c EstimateConfig) withDefaults() EstimateConfig {
	if c.MonthsCount <= 0 {
		c.MonthsCount = 12
	}
	if c.CompleteDayThresholdMinutes <= 0 {
		c.CompleteDayThresholdMinutes = 23*60 + 45
	}
	if c.MaxStepBackDays <= 0 {
		c.MaxStepBackDays = 2
	}
	if c.StitchMode == "" {
		c.StitchMode = StitchDailyOrInterval
	}
	if len(c.RequiredBucketKeys) == 0 {
		c.RequiredBucketKeys = buckets.CatalogKeys()
	}
	if c.Attribution == "" {
		c.Attribution = buckets.AttributionActualDay
	}
	return c
}

// StitchedMonth documents how a partial month was completed so consumers
// can show provenance for the year-over-year assumption baked into it.
type StitchedMonth struct {
	Mode                  string `json:"mode"`
	YearMonth             string `json:"yearMonth"`
	HaveDaysThrough       int    `json:"haveDaysThrough"`
	MissingDaysFrom       int    `json:"missingDaysFrom"`
	MissingDaysTo         int    `json:"missingDaysTo"`
	BorrowedFromYearMonth string `json:"borrowedFromYearMonth"`
}

// Estimate is the builder's output: per-month bucket totals for the
// trailing window plus the annual total.
type Estimate struct {
	YearMonths          []string                      `json:"yearMonths"`
	UsageBucketsByMonth map[string]map[string]float64 `json:"usageBucketsByMonth"`
	AnnualKwh           *float64                      `json:"annualKwh"`
	StitchedMonth       *StitchedMonth                `json:"stitchedMonth,omitempty"`
}

// EstimateBuilder stitches trailing months of bucket totals into a stable
// usage estimate.
type EstimateBuilder struct {
	store     storage.Storage
	intervals storage.IntervalSource
	cal       *Calendar
	cfg       EstimateConfig
	rules     []buckets.Rule
}

func NewEstimateBuilder(store storage.Storage, intervals storage.IntervalSource, cal *Calendar, cfg EstimateConfig) *EstimateBuilder {
	cfg = cfg.withDefaults()
	return &EstimateBuilder{
		store:     store,
		intervals: intervals,
		cal:       cal,
		cfg:       cfg,
		rules:     buckets.CatalogRules(cfg.Attribution),
	}
}

// BuildEstimate assembles the trailing-months usage estimate for a home,
// ending at the last complete local day at or before windowEnd. The most
// recent month is stitched: actual daily totals through the last complete
// day, then the same day range borrowed from one year earlier.
func (b *EstimateBuilder) BuildEstimate(ctx context.Context, homeID, esiid string, windowEnd time.Time) (Estimate, error) {
	var est Estimate

	if homeID == "" {
		return est, fmt.Errorf("homeID is required")
	}
	if windowEnd.IsZero() {
		return est, fmt.Errorf("windowEnd must be set")
	}

	endDay := b.cal.LastCompleteLocalDay(windowEnd, b.cfg.CompleteDayThresholdMinutes)
	endDay = b.stepBackForMissingData(ctx, homeID, endDay)

	yearMonths := b.cal.TrailingYearMonths(endDay, b.cfg.MonthsCount)
	est.YearMonths = yearMonths
	est.UsageBucketsByMonth = make(map[string]map[string]float64, len(yearMonths))

	// All months except the most recent come straight from persisted
	// monthly totals.
	if len(yearMonths) > 1 {
		rows, err := b.store.GetMonthlyBuckets(ctx, homeID, yearMonths[:len(yearMonths)-1])
		if err != nil {
			return est, fmt.Errorf("get monthly buckets: %w", err)
		}
		for _, r := range rows {
			if est.UsageBucketsByMonth[r.YearMonth] == nil {
				est.UsageBucketsByMonth[r.YearMonth] = make(map[string]float64)
			}
			est.UsageBucketsByMonth[r.YearMonth][r.BucketKey] += r.KwhTotal
		}
	}

	currentYM := yearMonths[len(yearMonths)-1]
	currentTotals, stitched, err := b.stitchCurrentMonth(ctx, homeID, esiid, endDay)
	if err != nil {
		return est, err
	}
	est.UsageBucketsByMonth[currentYM] = currentTotals
	est.StitchedMonth = stitched

	// Zero-fill the required keys so every month has a stable shape.
	for _, ym := range yearMonths {
		if est.UsageBucketsByMonth[ym] == nil {
			est.UsageBucketsByMonth[ym] = make(map[string]float64)
		}
		for _, key := range b.cfg.RequiredBucketKeys {
			if _, ok := est.UsageBucketsByMonth[ym][key]; !ok {
				est.UsageBucketsByMonth[ym][key] = 0
			}
		}
	}

	annual := 0.0
	for _, ym := range yearMonths {
		annual += est.UsageBucketsByMonth[ym][buckets.TotalKey]
	}
	if annual > 0 {
		// A zero sum means "no data", not a home that used nothing.
		est.AnnualKwh = &annual
	}

	return est, nil
}

// stepBackForMissingData walks the end day backwards, up to the configured
// bound, while the home has no daily rows for it. Tolerates interval files
// that arrive a day or two late.
func (b *EstimateBuilder) stepBackForMissingData(ctx context.Context, homeID string, day Date) Date {
	candidate := day
	for i := 0; i <= b.cfg.MaxStepBackDays; i++ {
		rows, err := b.store.GetDailyBuckets(ctx, homeID, candidate.String(), candidate.String())
		if err == nil && len(rows) > 0 {
			return candidate
		}
		candidate = b.cal.AddDays(candidate, -1)
	}
	// Nothing within the step-back window has daily rows; keep the original
	// day and let the stitch fallback handle it.
	return day
}

// stitchCurrentMonth sums actual daily totals for days 1..N of the current
// month and borrows days N+1..end from the same month one year earlier.
func (b *EstimateBuilder) stitchCurrentMonth(ctx context.Context, homeID, esiid string, endDay Date) (map[string]float64, *StitchedMonth, error) {
	totals := make(map[string]float64)
	daysInMonth := b.cal.DaysInMonth(endDay.Year, endDay.Month)

	monthStart := Date{Year: endDay.Year, Month: endDay.Month, Day: 1}
	current, err := b.dailyTotals(ctx, homeID, esiid, monthStart, endDay)
	if err != nil {
		return nil, nil, err
	}
	for k, v := range current {
		totals[k] += v
	}

	if endDay.Day >= daysInMonth {
		// Month is complete; nothing to borrow.
		return totals, nil, nil
	}

	priorYear := endDay.Year - 1
	priorDays := b.cal.DaysInMonth(priorYear, endDay.Month)
	borrowFrom := Date{Year: priorYear, Month: endDay.Month, Day: endDay.Day + 1}
	borrowTo := Date{Year: priorYear, Month: endDay.Month, Day: min(daysInMonth, priorDays)}

	if borrowFrom.Day <= borrowTo.Day {
		borrowed, err := b.dailyTotals(ctx, homeID, esiid, borrowFrom, borrowTo)
		if err != nil {
			return nil, nil, err
		}
		for k, v := range borrowed {
			totals[k] += v
		}
	}

	stitched := &StitchedMonth{
		Mode:                  StitchModePriorYearTail,
		YearMonth:             endDay.YearMonth(),
		HaveDaysThrough:       endDay.Day,
		MissingDaysFrom:       endDay.Day + 1,
		MissingDaysTo:         daysInMonth,
		BorrowedFromYearMonth: fmt.Sprintf("%04d-%02d", priorYear, int(endDay.Month)),
	}
	return totals, stitched, nil
}

// dailyTotals sums per-key daily bucket rows over [from, to] (inclusive
// local days). When the rows are not yet computed and the stitch mode
// allows it, the needed days are re-bucketed directly from raw intervals.
func (b *EstimateBuilder) dailyTotals(ctx context.Context, homeID, esiid string, from, to Date) (map[string]float64, error) {
	rows, err := b.store.GetDailyBuckets(ctx, homeID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("get daily buckets %s..%s: %w", from, to, err)
	}

	totals := make(map[string]float64)
	if len(rows) > 0 {
		for _, r := range rows {
			totals[r.BucketKey] += r.KwhTotal
		}
		return totals, nil
	}

	if b.cfg.StitchMode != StitchDailyOrInterval || esiid == "" {
		return totals, nil
	}

	// Interval fallback, bounded to just the missing day range.
	start := b.cal.StartOfDay(from)
	end := b.cal.StartOfDay(b.cal.AddDays(to, 1))
	readings, err := b.intervals.ListIntervalReadings(ctx, esiid, start, end)
	if err != nil {
		return nil, fmt.Errorf("interval fallback %s..%s: %w", from, to, err)
	}
	for _, r := range readings {
		if math.IsNaN(r.Kwh) || math.IsInf(r.Kwh, 0) || r.Kwh <= 0 {
			continue
		}
		fact := b.cal.PartsOf(r.Timestamp)
		for _, rule := range b.rules {
			if rule.Matches(fact) {
				totals[rule.Key] += r.Kwh
			}
		}
	}
	return totals, nil
}
