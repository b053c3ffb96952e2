package buckets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func factAt(weekday time.Weekday, minutes int) LocalFact {
	prev := (weekday + 6) % 7
	return LocalFact{
		Month:        time.March,
		DayOfMonth:   14,
		Weekday:      weekday,
		MinutesOfDay: minutes,
		PrevMonth:    time.March,
		PrevDay:      13,
		PrevWeekday:  prev,
	}
}

func TestOvernightMembership(t *testing.T) {
	rule := RuleFor(Definition{DayType: DayTypeAll, Start: 20 * 60, End: 7 * 60}, AttributionActualDay)

	matching := []int{21 * 60, 23*60 + 59, 0, 6*60 + 59, 20 * 60}
	for _, m := range matching {
		assert.True(t, rule.Matches(factAt(time.Wednesday, m)), "minutes=%d", m)
	}
	nonMatching := []int{7 * 60, 19*60 + 59, 12 * 60}
	for _, m := range nonMatching {
		assert.False(t, rule.Matches(factAt(time.Wednesday, m)), "minutes=%d", m)
	}
}

func TestZeroLengthWindowNeverMatches(t *testing.T) {
	rule := RuleFor(Definition{DayType: DayTypeAll, Start: 9 * 60, End: 9 * 60}, AttributionActualDay)
	for m := 0; m < EndOfDay; m += 60 {
		assert.False(t, rule.Matches(factAt(time.Monday, m)))
	}
}

func TestFullDayCoverage(t *testing.T) {
	all := RuleFor(Definition{DayType: DayTypeAll, Start: 0, End: EndOfDay}, AttributionActualDay)
	weekday := RuleFor(Definition{DayType: DayTypeWeekday, Start: 0, End: EndOfDay}, AttributionActualDay)
	weekend := RuleFor(Definition{DayType: DayTypeWeekend, Start: 0, End: EndOfDay}, AttributionActualDay)

	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		for _, m := range []int{0, 6 * 60, 23*60 + 45} {
			fact := factAt(wd, m)
			assert.True(t, all.Matches(fact), "ALL must always match")
			// Exactly one of WEEKDAY/WEEKEND matches.
			assert.NotEqual(t, weekday.Matches(fact), weekend.Matches(fact),
				"weekday=%v minutes=%d", wd, m)
		}
	}
}

func TestStartDayAttribution(t *testing.T) {
	def := Definition{DayType: DayTypeWeekday, Start: 21 * 60, End: 7 * 60}

	// 01:00 Saturday. Under ACTUAL_DAY the weekday filter sees Saturday and
	// rejects; under START_DAY it sees Friday night and accepts.
	fact := LocalFact{
		Month:        time.June,
		DayOfMonth:   7,
		Weekday:      time.Saturday,
		MinutesOfDay: 60,
		PrevMonth:    time.June,
		PrevDay:      6,
		PrevWeekday:  time.Friday,
	}
	assert.False(t, RuleFor(def, AttributionActualDay).Matches(fact))
	assert.True(t, RuleFor(def, AttributionStartDay).Matches(fact))

	// 23:00 Friday matches either way.
	fact = LocalFact{
		Month: time.June, DayOfMonth: 6, Weekday: time.Friday, MinutesOfDay: 23 * 60,
		PrevMonth: time.June, PrevDay: 5, PrevWeekday: time.Thursday,
	}
	assert.True(t, RuleFor(def, AttributionActualDay).Matches(fact))
	assert.True(t, RuleFor(def, AttributionStartDay).Matches(fact))

	// START_DAY shifting also applies to month filters: 00:30 on June 1
	// belongs to May for a shoulder-season bucket.
	seasonal := Definition{DayType: DayTypeAll, Start: 22 * 60, End: 6 * 60, Season: SeasonShoulder}
	fact = LocalFact{
		Month: time.June, DayOfMonth: 1, Weekday: time.Sunday, MinutesOfDay: 30,
		PrevMonth: time.May, PrevDay: 31, PrevWeekday: time.Saturday,
	}
	assert.False(t, RuleFor(seasonal, AttributionActualDay).Matches(fact))
	assert.True(t, RuleFor(seasonal, AttributionStartDay).Matches(fact))
}

func TestFullDayIgnoresAttribution(t *testing.T) {
	// A full-day weekend bucket keeps actual-day semantics even under
	// START_DAY; only true overnight windows shift.
	rule := RuleFor(Definition{DayType: DayTypeWeekend, Start: 0, End: EndOfDay}, AttributionStartDay)
	fact := LocalFact{
		Month: time.June, DayOfMonth: 7, Weekday: time.Saturday, MinutesOfDay: 60,
		PrevMonth: time.June, PrevDay: 6, PrevWeekday: time.Friday,
	}
	assert.True(t, rule.Matches(fact))
}

func TestSeasonFilter(t *testing.T) {
	rule := RuleFor(Definition{DayType: DayTypeAll, Start: 13 * 60, End: 19 * 60, Season: SeasonSummer}, AttributionActualDay)

	july := factAt(time.Tuesday, 14*60)
	july.Month = time.July
	assert.True(t, rule.Matches(july))

	jan := factAt(time.Tuesday, 14*60)
	jan.Month = time.January
	assert.False(t, rule.Matches(jan))
}

func TestDayTypeOf(t *testing.T) {
	assert.Equal(t, DayTypeWeekend, DayTypeOf(time.Saturday))
	assert.Equal(t, DayTypeWeekend, DayTypeOf(time.Sunday))
	assert.Equal(t, DayTypeWeekday, DayTypeOf(time.Monday))
	assert.Equal(t, DayTypeWeekday, DayTypeOf(time.Friday))
}
