package buckets

// The canonical bucket set. Every aggregation run ensures these definitions
// exist before writing totals, so downstream estimates can rely on the keys
// being present. TotalKey is the "all days, all hours" bucket that annual
// estimates sum over.
var (
	TotalKey = Definition{DayType: DayTypeAll, Start: 0, End: EndOfDay}.Key()

	catalog = []Definition{
		{DayType: DayTypeAll, Start: 0, End: EndOfDay},
		{DayType: DayTypeWeekday, Start: 0, End: EndOfDay},
		{DayType: DayTypeWeekend, Start: 0, End: EndOfDay},
		// Common free-nights windows offered by Texas REPs.
		{DayType: DayTypeAll, Start: 20 * 60, End: 6 * 60},
		{DayType: DayTypeAll, Start: 21 * 60, End: 7 * 60},
		// Summer afternoon peak.
		{DayType: DayTypeAll, Start: 13 * 60, End: 19 * 60, Season: SeasonSummer},
	}
)

// Catalog returns the canonical bucket definitions in a stable order.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// CatalogRules derives evaluation rules for the whole catalog with the given
// attribution policy.
func CatalogRules(attribution OvernightAttribution) []Rule {
	rules := make([]Rule, 0, len(catalog))
	for _, def := range catalog {
		rules = append(rules, RuleFor(def, attribution))
	}
	return rules
}

// CatalogKeys returns the canonical key strings for the whole catalog.
func CatalogKeys() []string {
	keys := make([]string, 0, len(catalog))
	for _, def := range catalog {
		keys = append(keys, def.Key())
	}
	return keys
}
