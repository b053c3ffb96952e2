// Package validate recomputes an EFL's disclosed average prices from the
// plan's own rate structure and grades the deviation. A plan that cannot
// be graded is skipped, never failed: SKIP means "cannot compare", FAIL
// means "compared and wrong".
package validate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/intelliwatt/intelliwatt/internal/efl"
	"github.com/intelliwatt/intelliwatt/internal/metrics"
	"github.com/intelliwatt/intelliwatt/internal/plancost"
)

// Status is the validation verdict.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

// TdspSource records where the delivery charges used in the recomputation
// came from.
type TdspSource string

const (
	// TdspIncludedInRate: the plan bundles delivery into its energy rate.
	TdspIncludedInRate TdspSource = "INCLUDED_IN_RATE"
	// TdspAddedFromEfl: the EFL disclosed numeric delivery charges.
	TdspAddedFromEfl TdspSource = "ADDED_FROM_EFL"
	// TdspUtilityTable: the EFL masked its charges; the utility tariff
	// table supplied them.
	TdspUtilityTable TdspSource = "UTILITY_TABLE"
	// TdspNone: no delivery information was available from any source.
	TdspNone TdspSource = "NONE"
)

// DefaultToleranceCents is the allowed absolute deviation per comparison
// point, in cents per kWh.
const DefaultToleranceCents = 0.25

// DefaultProfileTimeZone anchors synthetic usage profiles. Texas retail
// electricity runs on Central Time.
const DefaultProfileTimeZone = "America/Chicago"

// defaultReferenceDate anchors tariff lookups when the EFL states no
// effective date, keeping reruns deterministic.
var defaultReferenceDate = time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)

// Config tunes a Validator. Zero values use the documented defaults.
type Config struct {
	ToleranceCents float64
	ReferenceDate  time.Time
	TimeZone       string
}

// Input is one plan to validate.
type Input struct {
	PlanID  string
	Rules   plancost.PlanRules
	EflText string
}

// PointResult compares one disclosure point.
type PointResult struct {
	Kwh            int     `json:"kwh"`
	EflCents       float64 `json:"eflCents"`
	ModeledCents   float64 `json:"modeledCents"`
	DeviationCents float64 `json:"deviationCents"`
	ModeledSource  string  `json:"modeledSource"`
}

// Result is the full validation outcome for one plan.
type Result struct {
	PlanID            string        `json:"planId"`
	Status            Status        `json:"status"`
	TdspSource        TdspSource    `json:"tdspSource"`
	ToleranceCents    float64       `json:"toleranceCents"`
	Points            []PointResult `json:"points,omitempty"`
	MaxDeviationCents float64       `json:"maxDeviationCents"`
	// QueueReason explains a SKIP or FAIL for the review queue.
	QueueReason string    `json:"queueReason,omitempty"`
	Facts       efl.Facts `json:"facts"`
}

// Validator grades plans against their EFLs.
type Validator struct {
	pricer  *plancost.Pricer
	tariffs TariffLookup
	cfg     Config
}

// NewValidator wires a validator. tariffs may be nil when masked-EFL
// handling is not wanted; those plans then skip.
func NewValidator(pricer *plancost.Pricer, tariffs TariffLookup, cfg Config) *Validator {
	if cfg.ToleranceCents <= 0 {
		cfg.ToleranceCents = DefaultToleranceCents
	}
	if cfg.ReferenceDate.IsZero() {
		cfg.ReferenceDate = defaultReferenceDate
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = DefaultProfileTimeZone
	}
	return &Validator{pricer: pricer, tariffs: tariffs, cfg: cfg}
}

// Validate extracts the EFL's facts, recomputes the plan's average price
// at each disclosure point, and grades the deviation against the
// tolerance.
func (v *Validator) Validate(ctx context.Context, in Input) (Result, error) {
	started := time.Now()
	res, err := v.validate(ctx, in)
	metrics.ValidationDurationSeconds.Observe(time.Since(started).Seconds())
	if err == nil {
		metrics.ValidationsTotal.WithLabelValues(string(res.Status)).Inc()
		metrics.ValidationTdspSourceTotal.WithLabelValues(string(res.TdspSource)).Inc()
	}
	return res, err
}

func (v *Validator) validate(ctx context.Context, in Input) (Result, error) {
	res := Result{
		PlanID:         in.PlanID,
		ToleranceCents: v.cfg.ToleranceCents,
		TdspSource:     TdspNone,
	}
	if in.PlanID == "" {
		return res, fmt.Errorf("planID is required")
	}
	if in.EflText == "" {
		return res, fmt.Errorf("plan %s: EFL text is required", in.PlanID)
	}

	res.Facts = efl.ExtractFacts(in.EflText)
	facts := res.Facts

	if len(facts.AvgPricePoints) == 0 {
		return v.skip(res, "no average-price table found in the EFL"), nil
	}
	if facts.AssumptionBased.IsAssumptionBased &&
		(facts.NightHours == nil || facts.NightHours.NightUsagePercent == nil) {
		return v.skip(res, "average-price table is assumption-based and the EFL declares no usage split"), nil
	}

	tdsp, source, skipReason, err := v.resolveTdsp(ctx, in.Rules, facts)
	if err != nil {
		return res, err
	}
	res.TdspSource = source
	if skipReason != "" {
		return v.skip(res, skipReason), nil
	}

	window := in.Rules.Night
	if window == nil {
		window = plancost.NightWindowFromHours(facts.NightHours)
	}

	maxDev := 0.0
	for _, point := range facts.AvgPricePoints {
		usage := plancost.ReconstructUsage(float64(point.Kwh), window, facts.NightHours, v.cfg.ReferenceDate, v.cfg.TimeZone)
		modeled := v.pricer.Price(ctx, in.Rules, usage, tdsp)
		if modeled.Source == plancost.SourceUnavailable {
			return v.skip(res, fmt.Sprintf("plan cannot be modeled: %s", modeled.Reason)), nil
		}

		dev := modeled.AvgCentsPerKwh - point.EflAvgCentsPerKwh
		res.Points = append(res.Points, PointResult{
			Kwh:            point.Kwh,
			EflCents:       point.EflAvgCentsPerKwh,
			ModeledCents:   modeled.AvgCentsPerKwh,
			DeviationCents: dev,
			ModeledSource:  string(modeled.Source),
		})
		if math.Abs(dev) > maxDev {
			maxDev = math.Abs(dev)
		}
	}
	res.MaxDeviationCents = maxDev

	if maxDev > v.cfg.ToleranceCents {
		res.Status = StatusFail
		res.QueueReason = fmt.Sprintf(
			"max deviation %.4f cents/kWh exceeds tolerance %.2f", maxDev, v.cfg.ToleranceCents)
		return res, nil
	}
	res.Status = StatusPass
	return res, nil
}

// resolveTdsp picks the delivery charges for the recomputation, in
// preference order: bundled plan, numeric EFL disclosure, utility table
// for masked EFLs. A non-empty skip reason means validation cannot
// proceed.
func (v *Validator) resolveTdsp(ctx context.Context, rules plancost.PlanRules, facts efl.Facts) (plancost.TdspRates, TdspSource, string, error) {
	var zero plancost.TdspRates

	if rules.TdspBundled {
		return zero, TdspIncludedInRate, "", nil
	}

	if facts.Charges.Found() {
		var rates plancost.TdspRates
		if facts.Charges.PerKwhCents != nil {
			rates.PerKwhCents = *facts.Charges.PerKwhCents
		}
		if facts.Charges.MonthlyCents != nil {
			rates.MonthlyCents = *facts.Charges.MonthlyCents
		}
		return rates, TdspAddedFromEfl, "", nil
	}

	if facts.Masked.Masked {
		if v.tariffs == nil {
			return zero, TdspNone, "EFL masks TDSP charges and no tariff lookup is configured", nil
		}
		if facts.Territory == "" {
			return zero, TdspNone, "EFL masks TDSP charges and names no recognizable utility", nil
		}
		at := v.cfg.ReferenceDate
		if d := efl.ExtractEffectiveDate(facts.Text); d != nil {
			at = *d
		}
		rates, err := v.tariffs.Rates(ctx, facts.Territory, at)
		if err != nil {
			// No table value was used, so the source stays NONE.
			return zero, TdspNone, fmt.Sprintf("tariff lookup failed: %v", err), nil
		}
		return rates, TdspUtilityTable, "", nil
	}

	return zero, TdspNone, "EFL discloses no TDSP charges and is not marked as bundled", nil
}

func (v *Validator) skip(res Result, reason string) Result {
	res.Status = StatusSkip
	res.QueueReason = reason
	return res
}
