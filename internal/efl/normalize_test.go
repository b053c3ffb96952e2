package efl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEfl = `Electricity Facts Label
BrightSpark Energy - Texas Saver 12
Oncor Electric Delivery service area
Effective Date: March 1, 2025

Average Monthly Use 500 kWh 1,000 kWh 2,000 kWh
Average Price per kWh 14.2¢ 12.1¢ 11.5¢

Energy Charge: 9.8¢ per kWh
Base Charge: $4.95 per billing cycle
TDU Delivery Charges: 4.5691¢ per kWh and $4.23 per month
plus applicable taxes and the municipal franchise fee
Page 1 of 2
`

func TestNormalizeStripsDisclosureTable(t *testing.T) {
	got := Normalize(sampleEfl)

	assert.NotContains(t, got.Text, "14.2")
	assert.NotContains(t, got.Text, "Average Price per kWh")
	assert.Contains(t, got.Text, "Energy Charge")
	assert.Contains(t, got.Text, "TDU Delivery Charges")
	assert.NotContains(t, got.Text, "applicable taxes")
	assert.NotContains(t, got.Text, "Page 1 of 2")

	assert.Contains(t, got.Notes, "removed average-price disclosure table")
	assert.Contains(t, got.Notes, "removed boilerplate noise")
}

func TestNormalizeStripsTduPassThroughBlock(t *testing.T) {
	raw := "Energy Charge: 9.8¢ per kWh\n" +
		"TDU Delivery Charges are passed through to you as billed by your utility\n" +
		"without markup, and may change during your contract term.\n" +
		"\n" +
		"Base Charge: $9.95 per month\n"

	got := Normalize(raw)
	assert.NotContains(t, got.Text, "passed through")
	assert.Contains(t, got.Text, "Base Charge")
	assert.Contains(t, got.Notes, "removed TDU pass-through block")
}

func TestNormalizeNotesAreDeduplicated(t *testing.T) {
	raw := "plus applicable taxes\nplus applicable taxes\nmunicipal franchise fee applies\n"
	got := Normalize(raw)
	require.Len(t, got.Notes, 1)
}

func TestNormalizedChargesIgnoreTable(t *testing.T) {
	// The disclosure table's 14.2¢ must not leak into charge extraction.
	norm := Normalize(sampleEfl)
	charges := ExtractTdspCharges(norm.Text)
	require.NotNil(t, charges.PerKwhCents)
	assert.InDelta(t, 4.5691, *charges.PerKwhCents, 1e-9)
}

func TestExtractFactsChargesPhrasedAsPassThrough(t *testing.T) {
	// Some EFLs put their numbers inside the pass-through sentence that
	// normalization strips. The charge scan reads the raw text, so the
	// disclosure must still be found.
	raw := "Oncor Electric Delivery service area\n" +
		"Average Monthly Use 500 kWh 1,000 kWh 2,000 kWh\n" +
		"Average Price per kWh 16.2¢ 15.3¢ 14.8¢\n" +
		"TDU Delivery Charges are billed at 4.5691¢ per kWh and $4.23 per month\n"

	norm := Normalize(raw)
	assert.NotContains(t, norm.Text, "4.5691")

	facts := ExtractFacts(raw)
	require.NotNil(t, facts.Charges.PerKwhCents)
	assert.InDelta(t, 4.5691, *facts.Charges.PerKwhCents, 1e-9)
	require.NotNil(t, facts.Charges.MonthlyCents)
	assert.Equal(t, 423, *facts.Charges.MonthlyCents)
	assert.False(t, facts.Masked.Masked)
}

func TestExtractFactsEndToEnd(t *testing.T) {
	facts := ExtractFacts(sampleEfl)

	assert.Equal(t, TerritoryOncor, facts.Territory)
	require.NotNil(t, facts.Charges.PerKwhCents)
	assert.InDelta(t, 4.5691, *facts.Charges.PerKwhCents, 1e-9)
	require.NotNil(t, facts.Charges.MonthlyCents)
	assert.Equal(t, 423, *facts.Charges.MonthlyCents)
	assert.Equal(t, ConfidenceHigh, facts.Charges.Confidence)

	require.Len(t, facts.AvgPricePoints, 3)
	assert.Equal(t, 1000, facts.AvgPricePoints[1].Kwh)
	assert.InDelta(t, 12.1, facts.AvgPricePoints[1].EflAvgCentsPerKwh, 1e-9)

	assert.False(t, facts.Masked.Masked)
	assert.Nil(t, facts.NightHours)
	assert.False(t, strings.Contains(facts.Text, "Average Price"))
}
