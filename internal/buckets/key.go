package buckets

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DayType selects which calendar days a bucket applies to.
type DayType string

const (
	DayTypeAll     DayType = "ALL"
	DayTypeWeekday DayType = "WEEKDAY"
	DayTypeWeekend DayType = "WEEKEND"
)

// Season selects which months a bucket applies to. SeasonAll is encoded by
// omitting the season token from the key.
type Season string

const (
	SeasonAll      Season = "ALL"
	SeasonSummer   Season = "SUMMER"
	SeasonWinter   Season = "WINTER"
	SeasonShoulder Season = "SHOULDER"
)

const (
	// KeyPrefix is the namespace shared by every usage bucket key.
	KeyPrefix = "kwh.m"

	// EndOfDay is the minutes-of-day sentinel for "24:00".
	EndOfDay = 24 * 60
)

// Definition is the canonical description of a usage bucket: which days it
// applies to, the local-time window, and an optional season restriction.
// Start and End are minutes of the local day; End may be EndOfDay.
type Definition struct {
	DayType DayType
	Start   int
	End     int
	Season  Season
}

// Key renders the canonical key string for the definition.
// Two definitions with the same (DayType, window, Season) always render the
// identical string.
func (d Definition) Key() string {
	key := fmt.Sprintf("%s.%s.%02d%02d-%02d%02d",
		KeyPrefix, d.DayType, d.Start/60, d.Start%60, d.End/60, d.End%60)
	if d.Season != "" && d.Season != SeasonAll {
		key += "." + string(d.Season)
	}
	return key
}

// IsFullDay reports whether the window spans the entire local day.
func (d Definition) IsFullDay() bool {
	return d.Start == 0 && d.End == EndOfDay
}

// IsOvernight reports whether the window wraps past midnight.
func (d Definition) IsOvernight() bool {
	return d.End < d.Start
}

var keyRe = regexp.MustCompile(`^kwh\.m\.([A-Z]+)\.(\d{1,2}):?(\d{2})-(\d{1,2}):?(\d{2})(?:\.([A-Z]+))?$`)

// Canonicalize parses a raw bucket key, normalizing casing and whitespace in
// the time tokens, and returns the canonical Definition. It returns an error
// for malformed keys: hours must be 0-24, hour 24 requires minute 0, and
// minutes must be 0-59.
func Canonicalize(raw string) (Definition, error) {
	cleaned := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	m := keyRe.FindStringSubmatch(cleaned)
	if m == nil {
		return Definition{}, fmt.Errorf("malformed bucket key %q", raw)
	}

	dayType := DayType(m[1])
	switch dayType {
	case DayTypeAll, DayTypeWeekday, DayTypeWeekend:
	default:
		return Definition{}, fmt.Errorf("unknown day type %q in bucket key %q", m[1], raw)
	}

	start, err := minutesFromTokens(m[2], m[3])
	if err != nil {
		return Definition{}, fmt.Errorf("bucket key %q: %w", raw, err)
	}
	end, err := minutesFromTokens(m[4], m[5])
	if err != nil {
		return Definition{}, fmt.Errorf("bucket key %q: %w", raw, err)
	}

	season := SeasonAll
	if m[6] != "" {
		season = Season(m[6])
		switch season {
		case SeasonAll, SeasonSummer, SeasonWinter, SeasonShoulder:
		default:
			return Definition{}, fmt.Errorf("unknown season %q in bucket key %q", m[6], raw)
		}
	}

	return Definition{DayType: dayType, Start: start, End: end, Season: season}, nil
}

// CanonicalKey is Canonicalize followed by Key: it maps any accepted raw
// spelling onto the one canonical string. Canonical strings round-trip
// unchanged.
func CanonicalKey(raw string) (string, error) {
	def, err := Canonicalize(raw)
	if err != nil {
		return "", err
	}
	return def.Key(), nil
}

func minutesFromTokens(hourTok, minTok string) (int, error) {
	hour, err := strconv.Atoi(hourTok)
	if err != nil {
		return 0, fmt.Errorf("invalid hour %q", hourTok)
	}
	minute, err := strconv.Atoi(minTok)
	if err != nil {
		return 0, fmt.Errorf("invalid minute %q", minTok)
	}
	if hour < 0 || hour > 24 {
		return 0, fmt.Errorf("hour %d out of range", hour)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("minute %d out of range", minute)
	}
	if hour == 24 && minute != 0 {
		return 0, fmt.Errorf("24:%02d is not a valid time", minute)
	}
	return hour*60 + minute, nil
}
