package buckets

import "time"

// OvernightAttribution governs which calendar day an instant inside the
// post-midnight tail of an overnight window belongs to, for day-type and
// season filtering only.
type OvernightAttribution string

const (
	// AttributionActualDay filters on the instant's own calendar day.
	AttributionActualDay OvernightAttribution = "ACTUAL_DAY"
	// AttributionStartDay treats instants before the window's end on the
	// next calendar day as belonging to the day the window started on, so a
	// free-nights 21:00-07:00 bucket can count 01:00 Saturday as Friday
	// night.
	AttributionStartDay OvernightAttribution = "START_DAY"
)

// RuleVersion is bumped if evaluation semantics ever change.
const RuleVersion = 1

// Rule is the evaluation form of a bucket Definition: derived
// deterministically from a canonical key, never edited independently.
type Rule struct {
	Version     int
	Key         string
	DayType     DayType
	Start       int // minutes of local day, inclusive
	End         int // minutes of local day, exclusive; EndOfDay allowed
	Months      []time.Month
	Attribution OvernightAttribution
}

// LocalFact captures the local-calendar facts of one instant, precomputed in
// the bucket time zone. Prev* describe the previous calendar day and exist
// for START_DAY attribution of overnight windows.
type LocalFact struct {
	Month        time.Month
	DayOfMonth   int
	Weekday      time.Weekday
	MinutesOfDay int

	PrevMonth   time.Month
	PrevDay     int
	PrevWeekday time.Weekday
}

// RuleFor derives the evaluation rule for a definition.
func RuleFor(def Definition, attribution OvernightAttribution) Rule {
	if attribution == "" {
		attribution = AttributionActualDay
	}
	return Rule{
		Version:     RuleVersion,
		Key:         def.Key(),
		DayType:     def.DayType,
		Start:       def.Start,
		End:         def.End,
		Months:      seasonMonths(def.Season),
		Attribution: attribution,
	}
}

// seasonMonths maps a season onto the Texas billing calendar: summer is
// June-September, winter December-February, shoulder the rest.
func seasonMonths(s Season) []time.Month {
	switch s {
	case SeasonSummer:
		return []time.Month{time.June, time.July, time.August, time.September}
	case SeasonWinter:
		return []time.Month{time.December, time.January, time.February}
	case SeasonShoulder:
		return []time.Month{time.March, time.April, time.May, time.October, time.November}
	default:
		return nil
	}
}

// Matches decides whether an instant described by fact belongs to the
// bucket. Window membership is half-open [start, end); overnight windows
// (end < start) match t >= start or t < end. Zero-length windows never
// match. Full-day windows skip the overnight attribution logic entirely.
func (r Rule) Matches(fact LocalFact) bool {
	fullDay := r.Start == 0 && r.End == EndOfDay
	overnight := r.End < r.Start

	if !fullDay {
		if r.Start == r.End {
			// A zero-length window would otherwise read as "always" under
			// the overnight test.
			return false
		}
		t := fact.MinutesOfDay
		if overnight {
			if t < r.Start && t >= r.End {
				return false
			}
		} else if t < r.Start || t >= r.End {
			return false
		}
	}

	// For the tail of an overnight window with START_DAY attribution the
	// day-type and month filters see the previous calendar day.
	month, weekday := fact.Month, fact.Weekday
	if !fullDay && overnight && r.Attribution == AttributionStartDay && fact.MinutesOfDay < r.End {
		month, weekday = fact.PrevMonth, fact.PrevWeekday
	}

	switch r.DayType {
	case DayTypeWeekday:
		if weekday == time.Saturday || weekday == time.Sunday {
			return false
		}
	case DayTypeWeekend:
		if weekday != time.Saturday && weekday != time.Sunday {
			return false
		}
	}

	if len(r.Months) > 0 {
		found := false
		for _, m := range r.Months {
			if m == month {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// DayTypeOf classifies a weekday into the bucket day types.
func DayTypeOf(w time.Weekday) DayType {
	if w == time.Saturday || w == time.Sunday {
		return DayTypeWeekend
	}
	return DayTypeWeekday
}
