package efl

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Qualifier tiers for delivery-charge lines, strongest first. A line must
// pass the tier predicate before any number on it is trusted.
var (
	tdspQualifiedRe = regexp.MustCompile(`(?i)\b(tdu|tdsp)\b.*deliver|deliver.*\b(tdu|tdsp)\b`)
	deliveryRe      = regexp.MustCompile(`(?i)\bdelivery\b`)
	centsTokenRe    = regexp.MustCompile(`(?i)(?:Â?¢|cents?)\s*(?:per|/)\s*kwh`)
	// Retail charge lines and the average-price disclosure rows carry ¢/kWh
	// tokens too; they must never reach the broad delivery tiers.
	nonDeliveryRe = regexp.MustCompile(`(?i)energy\s+charge|base\s+charge|average\s+price`)
)

// Per-kWh value forms. OCR output of the cent sign frequently arrives as
// the two-byte sequence "Â¢".
var (
	perKwhCentsRe   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:Â?¢|cents?)(?:\s*(?:per|/)\s*kwh)?`)
	perKwhDollarsRe = regexp.MustCompile(`(?i)\$\s*(\d*\.\d+)\s*(?:per|/)\s*kwh`)
)

// Fixed monthly value forms.
var (
	monthlyDollarsRe = regexp.MustCompile(`(?i)\$\s*(\d+(?:\.\d+)?)\s*(?:per\s+)?(?:billing\s+cycle|month)`)
	monthlyCentsRe   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:Â?¢|cents?)\s*(?:per\s+)?(?:billing\s+cycle|month)`)
)

const (
	tierTdspQualified = 1
	tierDelivery      = 2
	tierCentsToken    = 3
	tierNone          = 0
)

// lineTier classifies how strongly a line is qualified as a delivery
// charge disclosure.
func lineTier(line string) int {
	switch {
	case tdspQualifiedRe.MatchString(line):
		return tierTdspQualified
	case nonDeliveryRe.MatchString(line):
		return tierNone
	case deliveryRe.MatchString(line):
		return tierDelivery
	case centsTokenRe.MatchString(line):
		return tierCentsToken
	default:
		return tierNone
	}
}

// parsePerKwhCents pulls the volumetric charge off a line, preferring the
// explicit cents form over the dollars form.
func parsePerKwhCents(line string) (float64, bool) {
	// The monthly forms also carry a cents token; do not misread them.
	stripped := monthlyCentsRe.ReplaceAllString(line, "")
	if m := perKwhCentsRe.FindStringSubmatch(stripped); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return v, true
		}
	}
	if m := perKwhDollarsRe.FindStringSubmatch(line); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return v * 100, true
		}
	}
	return 0, false
}

// parseMonthlyCents pulls the fixed monthly charge off a line, in cents.
func parseMonthlyCents(line string) (int, bool) {
	if m := monthlyDollarsRe.FindStringSubmatch(line); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return int(v*100 + 0.5), true
		}
	}
	if m := monthlyCentsRe.FindStringSubmatch(line); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return int(v + 0.5), true
		}
	}
	return 0, false
}

// ExtractTdspCharges walks the text line by line, taking the per-kWh and
// monthly delivery components from the best-qualified line that carries
// each. Confidence is HIGH only when both came off TDU/TDSP-qualified
// lines, MED when exactly one did, LOW otherwise.
func ExtractTdspCharges(text string) TdspCharges {
	var out TdspCharges
	perKwhTier, monthlyTier := tierNone, tierNone

	for _, line := range strings.Split(text, "\n") {
		tier := lineTier(line)
		if tier == tierNone {
			continue
		}

		if v, ok := parsePerKwhCents(line); ok {
			if out.PerKwhCents == nil || tier < perKwhTier {
				val := v
				out.PerKwhCents = &val
				perKwhTier = tier
				out.Snippet = strings.TrimSpace(line)
			}
		}
		if v, ok := parseMonthlyCents(line); ok {
			if out.MonthlyCents == nil || tier < monthlyTier {
				val := v
				out.MonthlyCents = &val
				monthlyTier = tier
				if out.Snippet == "" {
					out.Snippet = strings.TrimSpace(line)
				}
			}
		}
	}

	qualified := 0
	if out.PerKwhCents != nil && perKwhTier == tierTdspQualified {
		qualified++
	}
	if out.MonthlyCents != nil && monthlyTier == tierTdspQualified {
		qualified++
	}
	switch qualified {
	case 2:
		out.Confidence = ConfidenceHigh
	case 1:
		out.Confidence = ConfidenceMed
	default:
		out.Confidence = ConfidenceLow
	}
	return out
}

// territoryPatterns are checked in order; the more specific AEP names must
// precede anything that could swallow them.
var territoryPatterns = []struct {
	re        *regexp.Regexp
	territory Territory
}{
	{regexp.MustCompile(`(?i)aep\s+texas\s+north`), TerritoryAEPNorth},
	{regexp.MustCompile(`(?i)aep\s+texas\s+central`), TerritoryAEPCentral},
	{regexp.MustCompile(`(?i)\boncor\b`), TerritoryOncor},
	{regexp.MustCompile(`(?i)center\s*point`), TerritoryCenterpoint},
	{regexp.MustCompile(`(?i)texas[\s-]*new\s+mexico|\btnmp\b`), TerritoryTNMP},
}

// InferTdspTerritory names the utility territory the EFL belongs to, or ""
// when no known utility is mentioned.
func InferTdspTerritory(text string) Territory {
	for _, p := range territoryPatterns {
		if p.re.MatchString(text) {
			return p.territory
		}
	}
	return ""
}

var (
	avgUseLabelRe   = regexp.MustCompile(`(?i)average\s+(monthly\s+)?use`)
	avgPriceLabelRe = regexp.MustCompile(`(?i)average\s+price\s+per\s+kwh`)
	avgPriceNumRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:Â?¢|cents?)`)
)

// canonical disclosure points, in table order
var avgPriceKwhPoints = [3]int{500, 1000, 2000}

// ExtractAvgPricePoints reads the regulatory average-price table: a use
// row naming 500, 1000 and 2000 kWh and a price row with three cent
// values. PDF text extraction often splits a row across lines, so each
// label is given a short window of following lines to complete itself.
// Returns nil when the table is absent or malformed.
func ExtractAvgPricePoints(text string) []AvgPricePoint {
	lines := strings.Split(text, "\n")

	useLineAt := -1
	for i, line := range lines {
		if avgUseLabelRe.MatchString(line) && hasAllUsePoints(windowText(lines, i, 3)) {
			useLineAt = i
			break
		}
	}
	if useLineAt == -1 {
		return nil
	}

	for i := useLineAt; i < len(lines) && i <= useLineAt+8; i++ {
		if !avgPriceLabelRe.MatchString(lines[i]) {
			continue
		}
		// Prices may sit on the label line or wrap onto the next few.
		for span := 0; span <= 3; span++ {
			nums := avgPriceNumRe.FindAllStringSubmatch(windowText(lines, i, span), -1)
			if len(nums) < 3 {
				continue
			}
			points := make([]AvgPricePoint, 0, 3)
			for j := 0; j < 3; j++ {
				v, err := strconv.ParseFloat(nums[j][1], 64)
				if err != nil {
					return nil
				}
				points = append(points, AvgPricePoint{Kwh: avgPriceKwhPoints[j], EflAvgCentsPerKwh: v})
			}
			return points
		}
	}
	return nil
}

// windowText joins lines[at..at+span] into one searchable chunk.
func windowText(lines []string, at, span int) string {
	end := at + span
	if end >= len(lines) {
		end = len(lines) - 1
	}
	return strings.Join(lines[at:end+1], " ")
}

// hasAllUsePoints reports whether the text names all three disclosure
// usage levels, tolerating thousands separators.
func hasAllUsePoints(s string) bool {
	flat := strings.ReplaceAll(s, ",", "")
	for _, want := range avgPriceKwhPoints {
		re := regexp.MustCompile(`\b` + strconv.Itoa(want) + `\b`)
		if !re.MatchString(flat) {
			return false
		}
	}
	return true
}

var (
	nightWindowRe  = regexp.MustCompile(`(?i)(?:night|free)\s*(?:hours|period|energy)?[^.\n]{0,40}?(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)\s*(?:-|–|to|until|through)\s*(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)`)
	nightPercentRe = regexp.MustCompile(`(?i)(\d{1,3})\s*%[^.\n]{0,60}?(?:night|free\s+period)`)
)

// ParseNightHours extracts a free-nights plan's declared window and
// assumed night share of usage. Nil when the text declares neither.
func ParseNightHours(text string) *NightHours {
	var out NightHours
	found := false

	if m := nightWindowRe.FindStringSubmatch(text); m != nil {
		start := clockTo24(m[1], m[3])
		end := clockTo24(m[4], m[6])
		if start >= 0 && end >= 0 {
			out.NightStartHour = &start
			out.NightEndHour = &end
			found = true
		}
	}
	if m := nightPercentRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v <= 100 {
			out.NightUsagePercent = &v
			found = true
		}
	}

	if !found {
		return nil
	}
	return &out
}

// clockTo24 converts an "8 pm" style hour to 0..23, or -1 on nonsense.
func clockTo24(hourTok, meridiem string) int {
	h, err := strconv.Atoi(hourTok)
	if err != nil || h < 1 || h > 12 {
		return -1
	}
	pm := strings.HasPrefix(strings.ToLower(meridiem), "p")
	if h == 12 {
		h = 0
	}
	if pm {
		h += 12
	}
	return h
}

var assumptionTableRe = regexp.MustCompile(`(?i)(example|illustration|assum\w+)[^.\n]{0,80}(average\s+price|free\s+night|usage\s+during)`)

// IsAssumptionBasedAvgPriceTable reports whether the disclosed averages
// are labeled as an illustrative example resting on an assumed usage
// split, which means a flat-profile recomputation cannot be compared
// against them.
func IsAssumptionBasedAvgPriceTable(text string) AssumptionBased {
	if m := assumptionTableRe.FindString(text); m != "" {
		return AssumptionBased{IsAssumptionBased: true, Reason: strings.TrimSpace(m)}
	}
	if nh := ParseNightHours(text); nh != nil && nh.NightUsagePercent != nil {
		return AssumptionBased{IsAssumptionBased: true, Reason: "average prices depend on a declared night usage share"}
	}
	return AssumptionBased{}
}

var effectiveDateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)effective\s*(?:date)?\s*[:\s]\s*([A-Za-z]+\.?\s+\d{1,2},?\s+\d{4})`),
	regexp.MustCompile(`(?i)effective\s*(?:date)?\s*[:\s]\s*(\d{1,2}/\d{1,2}/\d{4})`),
}

var effectiveDateLayouts = []string{"January 2, 2006", "January 2 2006", "Jan. 2, 2006", "Jan 2, 2006", "1/2/2006"}

// ExtractEffectiveDate finds the EFL's stated effective date, used to pick
// the matching utility tariff revision. Nil when absent or unparseable.
func ExtractEffectiveDate(text string) *time.Time {
	for _, re := range effectiveDateRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.TrimSpace(m[1])
		for _, layout := range effectiveDateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return &t
			}
		}
	}
	return nil
}
