// Package efl extracts structured pricing facts from Electricity Facts
// Label text. Every extractor is a pure function over the raw text; misses
// are represented as nil results, never errors, because absent disclosures
// are a common, valid outcome.
package efl

// Confidence grades how directly an extracted value was found.
type Confidence string

const (
	ConfidenceHigh Confidence = "HIGH"
	ConfidenceMed  Confidence = "MED"
	ConfidenceLow  Confidence = "LOW"
)

// TdspCharges holds the delivery charges extracted from one EFL. It is a
// per-parse artifact, recomputed on every validation run, never persisted
// as authoritative.
type TdspCharges struct {
	// PerKwhCents is the volumetric delivery charge, nil when not found.
	PerKwhCents *float64 `json:"perKwhCents"`
	// MonthlyCents is the fixed monthly delivery charge in cents, nil when
	// not found.
	MonthlyCents *int `json:"monthlyCents"`
	// Snippet is the matched source line, for review display.
	Snippet string `json:"snippet,omitempty"`
	// Confidence is HIGH only when both components were found on a
	// TDU/TDSP-qualified line.
	Confidence Confidence `json:"confidence"`
}

// Found reports whether any numeric delivery value was extracted.
func (t TdspCharges) Found() bool {
	return t.PerKwhCents != nil || t.MonthlyCents != nil
}

// AvgPricePoint is one row of the EFL's disclosed average-price table. The
// regulatory format always has exactly the 500/1000/2000 kWh points.
type AvgPricePoint struct {
	Kwh               int     `json:"kwh"`
	EflAvgCentsPerKwh float64 `json:"eflAvgCentsPerKwh"`
}

// NightHours captures a free-nights plan's declared night window and the
// assumed share of consumption inside it. Nil pointer fields distinguish
// "not stated" from zero.
type NightHours struct {
	NightStartHour    *int     `json:"nightStartHour,omitempty"`
	NightEndHour      *int     `json:"nightEndHour,omitempty"`
	NightUsagePercent *float64 `json:"nightUsagePercent,omitempty"`
}

// Territory identifies a Texas TDSP service territory.
type Territory string

const (
	TerritoryOncor      Territory = "ONCOR"
	TerritoryCenterpoint Territory = "CENTERPOINT"
	TerritoryAEPNorth   Territory = "AEP_NORTH"
	TerritoryAEPCentral Territory = "AEP_CENTRAL"
	TerritoryTNMP       Territory = "TNMP"
)

// MaskTier reports which heuristic concluded the EFL masked its TDSP
// numbers. The broad tier is a lower-confidence safety net.
type MaskTier string

const (
	MaskTierNone   MaskTier = ""
	MaskTierStrict MaskTier = "STRICT"
	MaskTierBroad  MaskTier = "BROAD"
)

// MaskedResult is the verdict of IsTdspMasked.
type MaskedResult struct {
	Masked  bool     `json:"masked"`
	Tier    MaskTier `json:"tier,omitempty"`
	Snippet string   `json:"snippet,omitempty"`
}

// AssumptionBased flags an average-price table that is explicitly an
// illustrative example resting on a declared usage split.
type AssumptionBased struct {
	IsAssumptionBased bool   `json:"isAssumptionBased"`
	Reason            string `json:"reason,omitempty"`
}
