package plancost

import (
	"fmt"
	"math"
	"sort"
)

// Calculate models one monthly bill deterministically. It handles the
// common Texas plan shapes: flat or tiered energy rates, a base charge,
// usage-banded bill credits and surcharges, an optional night rate, and
// unbundled TDSP delivery charges.
func Calculate(rules PlanRules, usage UsageProfile, tdsp TdspRates) (Modeled, error) {
	if !rules.Priceable() {
		return Modeled{Source: SourceUnavailable, Reason: "plan has no usable rate structure"},
			fmt.Errorf("plan %s: no usable rate structure", rules.PlanID)
	}
	if usage.TotalKwh < 0 || math.IsNaN(usage.TotalKwh) || math.IsInf(usage.TotalKwh, 0) {
		return Modeled{Source: SourceUnavailable, Reason: "invalid usage"},
			fmt.Errorf("plan %s: invalid usage %v", rules.PlanID, usage.TotalKwh)
	}

	var b Breakdown
	b.EnergyCents = energyCents(rules, usage)
	b.BaseCents = float64(rules.BaseMonthlyCents)
	if !rules.TdspBundled {
		b.TdspCents = tdsp.PerKwhCents*usage.TotalKwh + float64(tdsp.MonthlyCents)
	}
	b.CreditCents = creditCents(rules.Credits, usage.TotalKwh)
	b.TotalCents = b.EnergyCents + b.BaseCents + b.TdspCents - b.CreditCents

	m := Modeled{Source: SourceFallback, Breakdown: b}
	if usage.TotalKwh > 0 {
		m.AvgCentsPerKwh = b.TotalCents / usage.TotalKwh
	}
	return m, nil
}

// energyCents prices consumption. The profile's hours inside the plan's
// night window are priced at the night rate; the remainder walks the
// tiers (or the flat rate).
func energyCents(rules PlanRules, usage UsageProfile) float64 {
	dayKwh := usage.TotalKwh
	night := 0.0
	if rules.Night != nil {
		nightKwh := usage.NightKwh(rules.Night)
		if nightKwh > usage.TotalKwh {
			nightKwh = usage.TotalKwh
		}
		dayKwh = usage.TotalKwh - nightKwh
		night = nightKwh * rules.NightCentsPerKwh
	}

	if len(rules.Tiers) == 0 {
		return night + dayKwh*rules.EnergyCentsPerKwh
	}

	tiers := append([]RateTier(nil), rules.Tiers...)
	sort.Slice(tiers, func(i, j int) bool {
		// Open-ended tier sorts last.
		if tiers[i].UpToKwh == 0 {
			return false
		}
		if tiers[j].UpToKwh == 0 {
			return true
		}
		return tiers[i].UpToKwh < tiers[j].UpToKwh
	})

	cents := night
	remaining := dayKwh
	prevBound := 0.0
	for _, t := range tiers {
		if remaining <= 0 {
			break
		}
		span := remaining
		if t.UpToKwh > 0 {
			span = math.Min(remaining, float64(t.UpToKwh)-prevBound)
			prevBound = float64(t.UpToKwh)
		}
		if span <= 0 {
			continue
		}
		cents += span * t.CentsPerKwh
		remaining -= span
	}
	if remaining > 0 {
		// Usage beyond the last bounded tier keeps its rate.
		cents += remaining * tiers[len(tiers)-1].CentsPerKwh
	}
	return cents
}

// creditCents sums every credit whose usage band contains the month's
// total. Negative amounts are surcharges and increase the bill.
func creditCents(credits []BillCredit, totalKwh float64) float64 {
	sum := 0.0
	for _, c := range credits {
		if totalKwh < float64(c.MinKwh) {
			continue
		}
		if c.MaxKwh > 0 && totalKwh > float64(c.MaxKwh) {
			continue
		}
		sum += float64(c.AmountCents)
	}
	return sum
}
