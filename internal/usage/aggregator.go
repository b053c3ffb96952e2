package usage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/intelliwatt/intelliwatt/internal/buckets"
	"github.com/intelliwatt/intelliwatt/internal/metrics"
	"github.com/intelliwatt/intelliwatt/internal/storage"
)

// AggregatorConfig controls aggregation behavior. Zero values fall back to
// the documented defaults.
type AggregatorConfig struct {
	// ChunkSize bounds how many bucket rows go into one transaction.
	// Default 50.
	ChunkSize int
	// Attribution is the overnight-window attribution policy applied to the
	// canonical bucket set. Default ACTUAL_DAY.
	Attribution buckets.OvernightAttribution
	// Source tags written rows with their provenance. Default "SMT_15MIN".
	Source string
}

func (c AggregatorConfig) withDefaults() AggregatorConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 50
	}
	if c.Attribution == "" {
		c.Attribution = buckets.AttributionActualDay
	}
	if c.Source == "" {
		c.Source = "SMT_15MIN"
	}
	return c
}

// AggregateResult summarizes one aggregation run.
type AggregateResult struct {
	MonthsProcessed int      `json:"monthsProcessed"`
	RowsUpserted    int      `json:"rowsUpserted"`
	Notes           []string `json:"notes,omitempty"`
}

// Aggregator maps raw 15-minute interval readings into canonical monthly
// and daily usage buckets.
type Aggregator struct {
	store     storage.Storage
	intervals storage.IntervalSource
	cal       *Calendar
	cfg       AggregatorConfig
	rules     []buckets.Rule
}

// NewAggregator wires an aggregator. intervals may equal store; the
// Postgres deployment passes the pgxpool reader instead.
func NewAggregator(store storage.Storage, intervals storage.IntervalSource, cal *Calendar, cfg AggregatorConfig) *Aggregator {
	cfg = cfg.withDefaults()
	return &Aggregator{
		store:     store,
		intervals: intervals,
		cal:       cal,
		cfg:       cfg,
		rules:     buckets.CatalogRules(cfg.Attribution),
	}
}

// Aggregate recomputes bucket totals for one home over [rangeStart,
// rangeEnd). Reprocessing the same range with unchanged readings is
// idempotent: every catalog key gets a row for each processed month and
// day, zeros included, so each (month, key) and (day, key) total is fully
// replaced, not incremented, even when corrected data drops it to zero.
// Non-finite and non-positive kWh readings are skipped by policy, not
// treated as errors.
func (a *Aggregator) Aggregate(ctx context.Context, homeID, esiid string, rangeStart, rangeEnd time.Time) (AggregateResult, error) {
	var res AggregateResult

	if homeID == "" {
		return res, fmt.Errorf("homeID is required")
	}
	if esiid == "" {
		return res, fmt.Errorf("esiid is required")
	}
	if rangeStart.IsZero() || rangeEnd.IsZero() {
		return res, fmt.Errorf("invalid range: start and end must be set")
	}
	if !rangeEnd.After(rangeStart) {
		return res, fmt.Errorf("invalid range: end %s is not after start %s",
			rangeEnd.Format(time.RFC3339), rangeStart.Format(time.RFC3339))
	}

	if err := a.ensureBucketDefinitions(ctx); err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("error").Inc()
		return res, err
	}

	readings, err := a.intervals.ListIntervalReadings(ctx, esiid, rangeStart, rangeEnd)
	if err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("error").Inc()
		return res, fmt.Errorf("list interval readings: %w", err)
	}

	monthly, daily, skipped := a.bucketize(readings)
	metrics.AggregationIntervalsProcessed.Add(float64(len(readings) - skipped))
	if skipped > 0 {
		res.Notes = append(res.Notes, fmt.Sprintf("skipped %d non-finite or non-positive readings", skipped))
	}

	now := time.Now().UTC()

	monthlyRows := make([]storage.MonthlyUsageBucket, 0, len(monthly)*len(a.rules))
	for ym, byKey := range monthly {
		for _, rule := range a.rules {
			monthlyRows = append(monthlyRows, storage.MonthlyUsageBucket{
				HomeID:     homeID,
				YearMonth:  ym,
				BucketKey:  rule.Key,
				KwhTotal:   round3(byKey[rule.Key]),
				Source:     a.cfg.Source,
				ComputedAt: now,
			})
		}
	}
	sort.Slice(monthlyRows, func(i, j int) bool {
		if monthlyRows[i].YearMonth != monthlyRows[j].YearMonth {
			return monthlyRows[i].YearMonth < monthlyRows[j].YearMonth
		}
		return monthlyRows[i].BucketKey < monthlyRows[j].BucketKey
	})

	dailyRows := make([]storage.DailyUsageBucket, 0, len(daily)*len(a.rules))
	for date, byKey := range daily {
		for _, rule := range a.rules {
			dailyRows = append(dailyRows, storage.DailyUsageBucket{
				HomeID:     homeID,
				Date:       date,
				BucketKey:  rule.Key,
				KwhTotal:   round3(byKey[rule.Key]),
				Source:     a.cfg.Source,
				ComputedAt: now,
			})
		}
	}
	sort.Slice(dailyRows, func(i, j int) bool {
		if dailyRows[i].Date != dailyRows[j].Date {
			return dailyRows[i].Date < dailyRows[j].Date
		}
		return dailyRows[i].BucketKey < dailyRows[j].BucketKey
	})

	// Chunked writes: each chunk is its own atomic transaction so a failure
	// cannot corrupt chunks already committed.
	for start := 0; start < len(monthlyRows); start += a.cfg.ChunkSize {
		end := min(start+a.cfg.ChunkSize, len(monthlyRows))
		if err := a.store.UpsertMonthlyBuckets(ctx, monthlyRows[start:end]); err != nil {
			metrics.AggregationRunsTotal.WithLabelValues("error").Inc()
			return res, fmt.Errorf("upsert monthly buckets: %w", err)
		}
		res.RowsUpserted += end - start
	}
	for start := 0; start < len(dailyRows); start += a.cfg.ChunkSize {
		end := min(start+a.cfg.ChunkSize, len(dailyRows))
		if err := a.store.UpsertDailyBuckets(ctx, dailyRows[start:end]); err != nil {
			metrics.AggregationRunsTotal.WithLabelValues("error").Inc()
			return res, fmt.Errorf("upsert daily buckets: %w", err)
		}
		res.RowsUpserted += end - start
	}

	res.MonthsProcessed = len(monthly)
	metrics.AggregationRowsUpserted.WithLabelValues("monthly").Add(float64(len(monthlyRows)))
	metrics.AggregationRowsUpserted.WithLabelValues("daily").Add(float64(len(dailyRows)))
	metrics.AggregationRunsTotal.WithLabelValues("ok").Inc()
	return res, nil
}

// bucketize accumulates readings into per-month and per-day totals keyed by
// bucket key. Returned maps use "YYYY-MM" and "YYYY-MM-DD" keys.
func (a *Aggregator) bucketize(readings []storage.IntervalReading) (map[string]map[string]float64, map[string]map[string]float64, int) {
	monthly := make(map[string]map[string]float64)
	daily := make(map[string]map[string]float64)
	skipped := 0

	for _, r := range readings {
		if math.IsNaN(r.Kwh) || math.IsInf(r.Kwh, 0) || r.Kwh <= 0 {
			skipped++
			continue
		}
		fact := a.cal.PartsOf(r.Timestamp)
		date := a.cal.DateOf(r.Timestamp)
		ym := date.YearMonth()
		ds := date.String()

		for _, rule := range a.rules {
			if !rule.Matches(fact) {
				continue
			}
			if monthly[ym] == nil {
				monthly[ym] = make(map[string]float64)
			}
			monthly[ym][rule.Key] += r.Kwh
			if daily[ds] == nil {
				daily[ds] = make(map[string]float64)
			}
			daily[ds][rule.Key] += r.Kwh
		}
	}
	return monthly, daily, skipped
}

// ensureBucketDefinitions idempotently upserts the canonical bucket set.
func (a *Aggregator) ensureBucketDefinitions(ctx context.Context) error {
	defs := buckets.Catalog()
	rows := make([]storage.BucketDefinition, 0, len(defs))
	now := time.Now().UTC()
	for _, d := range defs {
		season := string(d.Season)
		if season == "" {
			season = string(buckets.SeasonAll)
		}
		rows = append(rows, storage.BucketDefinition{
			Key:          d.Key(),
			DayType:      string(d.DayType),
			StartMinutes: d.Start,
			EndMinutes:   d.End,
			Season:       season,
			RuleVersion:  buckets.RuleVersion,
			CreatedAt:    now,
		})
	}
	if err := a.store.UpsertBucketDefinitions(ctx, rows); err != nil {
		return fmt.Errorf("upsert bucket definitions: %w", err)
	}
	return nil
}

// round3 keeps stored totals at watt-hour precision so repeated
// re-aggregation produces identical rows.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
