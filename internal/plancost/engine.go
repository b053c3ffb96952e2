package plancost

import (
	"context"
	"log"
)

// Engine is an external pricing engine. Implementations may call out to a
// rating service or evaluate a richer rule set than the fallback handles.
type Engine interface {
	// MonthlyCost prices one month's hourly usage profile, in cents. An
	// error means the engine could not model this plan; the caller falls
	// back.
	MonthlyCost(ctx context.Context, rules PlanRules, usage UsageProfile, tdsp TdspRates) (Breakdown, error)
}

// Pricer runs the engine-first, fallback-second pricing policy and tags
// every result with its source.
type Pricer struct {
	engine Engine
}

// NewPricer builds a Pricer. A nil engine is valid and routes everything
// through the fallback calculator.
func NewPricer(engine Engine) *Pricer {
	return &Pricer{engine: engine}
}

// Price models one month of usage on a plan. The engine is tried first;
// any engine failure degrades to the deterministic fallback rather than
// surfacing as an error, because a lower-fidelity answer still validates.
// Only a plan neither path can model comes back UNAVAILABLE.
func (p *Pricer) Price(ctx context.Context, rules PlanRules, usage UsageProfile, tdsp TdspRates) Modeled {
	if p.engine != nil {
		b, err := p.engine.MonthlyCost(ctx, rules, usage, tdsp)
		if err == nil {
			m := Modeled{Source: SourceEngine, Breakdown: b}
			if usage.TotalKwh > 0 {
				m.AvgCentsPerKwh = b.TotalCents / usage.TotalKwh
			}
			return m
		}
		log.Printf("[plancost] engine failed for plan %s, using fallback: %v", rules.PlanID, err)
	}

	m, err := Calculate(rules, usage, tdsp)
	if err != nil {
		return Modeled{Source: SourceUnavailable, Reason: m.Reason}
	}
	if p.engine != nil {
		m.Reason = "engine unavailable, deterministic fallback used"
	}
	return m
}
