package efl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTdspChargesBothOnQualifiedLine(t *testing.T) {
	text := "Energy Charge: 9.8¢ per kWh\n" +
		"TDU Delivery Charges: 4.5691¢ per kWh and $4.23 per month\n"

	got := ExtractTdspCharges(text)
	require.NotNil(t, got.PerKwhCents)
	require.NotNil(t, got.MonthlyCents)
	assert.InDelta(t, 4.5691, *got.PerKwhCents, 1e-9)
	assert.Equal(t, 423, *got.MonthlyCents)
	assert.Equal(t, ConfidenceHigh, got.Confidence)
	assert.Contains(t, got.Snippet, "TDU Delivery")
}

func TestExtractTdspChargesQualifiedLineWins(t *testing.T) {
	// The energy charge line carries a cents token too; the TDU-qualified
	// line must win even though it comes later.
	text := "Energy Charge: 12.3¢ per kWh\n" +
		"TDSP Delivery Charge: 3.9¢ per kWh\n"

	got := ExtractTdspCharges(text)
	require.NotNil(t, got.PerKwhCents)
	assert.InDelta(t, 3.9, *got.PerKwhCents, 1e-9)
	assert.Nil(t, got.MonthlyCents)
	assert.Equal(t, ConfidenceMed, got.Confidence)
}

func TestExtractTdspChargesDollarsPerKwh(t *testing.T) {
	got := ExtractTdspCharges("TDU Delivery Charge: $0.045691 per kWh\n")
	require.NotNil(t, got.PerKwhCents)
	assert.InDelta(t, 4.5691, *got.PerKwhCents, 1e-9)
}

func TestExtractTdspChargesOCRCentSign(t *testing.T) {
	got := ExtractTdspCharges("TDU Delivery Charges 4.2Â¢ per kWh\n")
	require.NotNil(t, got.PerKwhCents)
	assert.InDelta(t, 4.2, *got.PerKwhCents, 1e-9)
}

func TestExtractTdspChargesUnqualifiedIsLow(t *testing.T) {
	got := ExtractTdspCharges("Delivery charges: 4.1¢ per kWh\n")
	require.NotNil(t, got.PerKwhCents)
	assert.Equal(t, ConfidenceLow, got.Confidence)
}

func TestExtractTdspChargesIgnoresAvgPriceRows(t *testing.T) {
	text := "Average Monthly Use 500 kWh 1,000 kWh 2,000 kWh\n" +
		"Average price per kWh: 15.3¢ per kWh at 1,000 kWh\n"

	got := ExtractTdspCharges(text)
	assert.False(t, got.Found())
}

func TestExtractTdspChargesNothingFound(t *testing.T) {
	got := ExtractTdspCharges("Your price includes all recurring charges.\n")
	assert.False(t, got.Found())
	assert.Equal(t, ConfidenceLow, got.Confidence)
}

func TestInferTdspTerritory(t *testing.T) {
	cases := map[string]Territory{
		"delivered by Oncor Electric Delivery":  TerritoryOncor,
		"CenterPoint Energy Houston Electric":   TerritoryCenterpoint,
		"AEP Texas North Company service area":  TerritoryAEPNorth,
		"AEP Texas Central Company":             TerritoryAEPCentral,
		"Texas-New Mexico Power Company (TNMP)": TerritoryTNMP,
		"no utility named here":                 "",
	}
	for text, want := range cases {
		assert.Equal(t, want, InferTdspTerritory(text), text)
	}
}

func TestExtractAvgPricePointsSingleRow(t *testing.T) {
	text := "Average Monthly Use 500 kWh 1,000 kWh 2,000 kWh\n" +
		"Average Price per kWh 14.2¢ 12.1¢ 11.5¢\n"

	got := ExtractAvgPricePoints(text)
	require.Len(t, got, 3)
	assert.Equal(t, AvgPricePoint{Kwh: 500, EflAvgCentsPerKwh: 14.2}, got[0])
	assert.Equal(t, AvgPricePoint{Kwh: 1000, EflAvgCentsPerKwh: 12.1}, got[1])
	assert.Equal(t, AvgPricePoint{Kwh: 2000, EflAvgCentsPerKwh: 11.5}, got[2])
}

func TestExtractAvgPricePointsWrappedRows(t *testing.T) {
	// PDF extraction often breaks table rows into one value per line.
	text := "Average Monthly Use:\n" +
		"500 kWh 1,000 kWh 2,000 kWh\n" +
		"Average Price per kWh:\n" +
		"14.2¢\n" +
		"12.1¢\n" +
		"11.5¢\n"

	got := ExtractAvgPricePoints(text)
	require.Len(t, got, 3)
	assert.InDelta(t, 12.1, got[1].EflAvgCentsPerKwh, 1e-9)
}

func TestExtractAvgPricePointsAbsent(t *testing.T) {
	assert.Nil(t, ExtractAvgPricePoints("Energy Charge: 9.8¢ per kWh\n"))
	// Label present but the canonical usage levels are not.
	assert.Nil(t, ExtractAvgPricePoints("Average Monthly Use 750 kWh\nAverage Price per kWh 12.0¢\n"))
}

func TestParseNightHours(t *testing.T) {
	text := "Free Nights from 8 PM to 6 AM every day. " +
		"We estimate 32% of your usage occurs at night."

	got := ParseNightHours(text)
	require.NotNil(t, got)
	require.NotNil(t, got.NightStartHour)
	require.NotNil(t, got.NightEndHour)
	require.NotNil(t, got.NightUsagePercent)
	assert.Equal(t, 20, *got.NightStartHour)
	assert.Equal(t, 6, *got.NightEndHour)
	assert.InDelta(t, 32, *got.NightUsagePercent, 1e-9)
}

func TestParseNightHoursAbsent(t *testing.T) {
	assert.Nil(t, ParseNightHours("Fixed rate plan, 12 month term."))
}

func TestIsAssumptionBasedAvgPriceTable(t *testing.T) {
	got := IsAssumptionBasedAvgPriceTable(
		"This example is based on average price with 30% of usage during free nights.")
	assert.True(t, got.IsAssumptionBased)

	got = IsAssumptionBasedAvgPriceTable("Average Price per kWh 12.1¢")
	assert.False(t, got.IsAssumptionBased)
}

func TestExtractEffectiveDate(t *testing.T) {
	d := ExtractEffectiveDate("Effective Date: March 1, 2025")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *d)

	d = ExtractEffectiveDate("Effective 03/01/2025")
	require.NotNil(t, d)
	assert.Equal(t, time.March, d.Month())

	assert.Nil(t, ExtractEffectiveDate("no date here"))
}
