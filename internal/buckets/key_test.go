package buckets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"kwh.m.ALL.0000-2400", "kwh.m.ALL.0000-2400"},
		{"kwh.m.all.00:00-24:00", "kwh.m.ALL.0000-2400"},
		{" kwh.m.weekday.9:00-17:00 ", "kwh.m.WEEKDAY.0900-1700"},
		{"kwh.m.ALL.2100-0700", "kwh.m.ALL.2100-0700"},
		{"kwh.m.all.1300-1900.summer", "kwh.m.ALL.1300-1900.SUMMER"},
	}
	for _, tt := range tests {
		got, err := CanonicalKey(tt.raw)
		require.NoError(t, err, "raw=%q", tt.raw)
		assert.Equal(t, tt.want, got, "raw=%q", tt.raw)

		// Canonicalization is idempotent.
		again, err := CanonicalKey(got)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}
}

func TestCanonicalKeyMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"kwh.m.ALL",
		"kwh.m.ALL.0000-2401",
		"kwh.m.ALL.2500-0600",
		"kwh.m.ALL.0060-0700",
		"kwh.m.SOMEDAYS.0000-2400",
		"kwh.m.ALL.0000-2400.MONSOON",
		"monthly.ALL.0000-2400",
	} {
		_, err := CanonicalKey(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestDefinitionKeyOrderIndependent(t *testing.T) {
	a := Definition{DayType: DayTypeWeekend, Start: 20 * 60, End: 6 * 60, Season: SeasonWinter}
	b := Definition{Season: SeasonWinter, End: 6 * 60, Start: 20 * 60, DayType: DayTypeWeekend}
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "kwh.m.WEEKEND.2000-0600.WINTER", a.Key())
}

func TestDefinitionPredicates(t *testing.T) {
	assert.True(t, Definition{DayType: DayTypeAll, Start: 0, End: EndOfDay}.IsFullDay())
	assert.False(t, Definition{DayType: DayTypeAll, Start: 0, End: 1439}.IsFullDay())
	assert.True(t, Definition{DayType: DayTypeAll, Start: 21 * 60, End: 7 * 60}.IsOvernight())
	assert.False(t, Definition{DayType: DayTypeAll, Start: 7 * 60, End: 21 * 60}.IsOvernight())
}

func TestCatalogKeysCanonical(t *testing.T) {
	for _, key := range CatalogKeys() {
		got, err := CanonicalKey(key)
		require.NoError(t, err)
		assert.Equal(t, key, got)
	}
}
