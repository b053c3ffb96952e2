// Package plancost models a retail electricity plan's monthly bill. The
// primary path delegates to a pricing engine; a deterministic fallback
// calculator covers the common Texas plan shapes when the engine cannot.
package plancost

import "time"

// RateTier is one step of a tiered energy rate. UpToKwh is the inclusive
// upper bound of the tier; 0 marks the open-ended top tier.
type RateTier struct {
	UpToKwh     int     `json:"upToKwh"`
	CentsPerKwh float64 `json:"centsPerKwh"`
}

// BillCredit applies a fixed adjustment when monthly usage lands inside
// [MinKwh, MaxKwh]. MaxKwh 0 means no upper bound. AmountCents is positive
// for a credit and negative for a surcharge; both shapes appear in real
// plans.
type BillCredit struct {
	MinKwh      int `json:"minKwh"`
	MaxKwh      int `json:"maxKwh"`
	AmountCents int `json:"amountCents"`
}

// NightWindow is a plan's discounted night period in local hours,
// half-open [StartHour, EndHour), possibly crossing midnight.
type NightWindow struct {
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}

// Hours is the window's length, handling the overnight wrap. Equal start
// and end means the full day.
func (w NightWindow) Hours() int {
	h := w.EndHour - w.StartHour
	if h <= 0 {
		h += 24
	}
	return h
}

// ContainsHour reports half-open membership, handling the overnight wrap.
func (w NightWindow) ContainsHour(h int) bool {
	if w.StartHour < w.EndHour {
		return h >= w.StartHour && h < w.EndHour
	}
	return h >= w.StartHour || h < w.EndHour
}

// PlanRules is everything the calculator needs about one plan. Either
// EnergyCentsPerKwh (flat) or Tiers must be set for the fallback to model
// the plan.
type PlanRules struct {
	PlanID            string       `json:"planId"`
	BaseMonthlyCents  int          `json:"baseMonthlyCents"`
	EnergyCentsPerKwh float64      `json:"energyCentsPerKwh"`
	Tiers             []RateTier   `json:"tiers,omitempty"`
	Credits           []BillCredit `json:"credits,omitempty"`
	// NightCentsPerKwh prices usage inside Night; 0 with a window set
	// means free nights.
	NightCentsPerKwh float64      `json:"nightCentsPerKwh"`
	Night            *NightWindow `json:"night,omitempty"`
	// TdspBundled means the energy rate already includes delivery, so no
	// separate TDSP charges are added.
	TdspBundled bool `json:"tdspBundled"`
}

// Priceable reports whether the fallback calculator has enough of the
// plan's shape to model a bill.
func (r PlanRules) Priceable() bool {
	return r.EnergyCentsPerKwh > 0 || len(r.Tiers) > 0
}

// TdspRates is the delivery charge pair applied on top of unbundled plans.
type TdspRates struct {
	PerKwhCents  float64 `json:"perKwhCents"`
	MonthlyCents int     `json:"monthlyCents"`
}

// UsagePoint is one local hour of a reconstructed usage profile.
type UsagePoint struct {
	Hour int     `json:"hour"`
	Kwh  float64 `json:"kwh"`
}

// UsageProfile is one synthetic month of consumption as 24 hourly points
// summing to TotalKwh, anchored to a fixed reference date and IANA zone
// so engine pricing is reproducible across runs.
type UsageProfile struct {
	TotalKwh      float64      `json:"totalKwh"`
	Points        []UsagePoint `json:"points"`
	ReferenceDate time.Time    `json:"referenceDate"`
	TimeZone      string       `json:"timeZone"`
}

// NightKwh sums the points falling inside the window.
func (p UsageProfile) NightKwh(w *NightWindow) float64 {
	if w == nil {
		return 0
	}
	sum := 0.0
	for _, pt := range p.Points {
		if w.ContainsHour(pt.Hour) {
			sum += pt.Kwh
		}
	}
	return sum
}

// ResultSource tags where a cost figure came from.
type ResultSource string

const (
	// SourceEngine means the external pricing engine produced the figure.
	SourceEngine ResultSource = "ENGINE"
	// SourceFallback means the deterministic calculator produced it.
	SourceFallback ResultSource = "FALLBACK"
	// SourceUnavailable means neither path could model the plan; the
	// numeric fields are meaningless.
	SourceUnavailable ResultSource = "UNAVAILABLE"
)

// Breakdown itemizes one modeled monthly bill, all in cents.
type Breakdown struct {
	EnergyCents float64 `json:"energyCents"`
	BaseCents   float64 `json:"baseCents"`
	TdspCents   float64 `json:"tdspCents"`
	CreditCents float64 `json:"creditCents"`
	TotalCents  float64 `json:"totalCents"`
}

// Modeled is the tagged outcome of pricing one month of usage.
type Modeled struct {
	Source         ResultSource `json:"source"`
	Breakdown      Breakdown    `json:"breakdown"`
	AvgCentsPerKwh float64      `json:"avgCentsPerKwh"`
	// Reason explains an UNAVAILABLE result or why the engine was
	// bypassed.
	Reason string `json:"reason,omitempty"`
}
