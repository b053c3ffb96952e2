package efl

import (
	"bytes"
	"fmt"
	"io"

	pdf "github.com/ledongthuc/pdf"
)

// Facts is the full set of pricing facts extracted from one EFL.
type Facts struct {
	Text            string          `json:"-"`
	Charges         TdspCharges     `json:"charges"`
	Territory       Territory       `json:"territory,omitempty"`
	AvgPricePoints  []AvgPricePoint `json:"avgPricePoints,omitempty"`
	NightHours      *NightHours     `json:"nightHours,omitempty"`
	Masked          MaskedResult    `json:"masked"`
	AssumptionBased AssumptionBased `json:"assumptionBased"`
	Notes           []string        `json:"notes,omitempty"`
}

// ExtractTextFromPDF opens an EFL PDF at the given path and returns its
// plain text.
func ExtractTextFromPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	rc, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// ExtractFacts runs the full extraction pipeline. Every deterministic
// extractor re-scans the raw text; the normalized text is kept only for
// persistence and downstream parsers. The qualifier tiers keep the
// retail-rate and disclosure-table lines out of the charge scan, so a
// numeric TDU disclosure survives even when normalization would have
// stripped the block it sits in.
func ExtractFacts(raw string) Facts {
	norm := Normalize(raw)

	facts := Facts{
		Text:            norm.Text,
		Territory:       InferTdspTerritory(raw),
		AvgPricePoints:  ExtractAvgPricePoints(raw),
		NightHours:      ParseNightHours(raw),
		AssumptionBased: IsAssumptionBasedAvgPriceTable(raw),
		Notes:           norm.Notes,
	}
	facts.Charges = ExtractTdspCharges(raw)
	facts.Masked = IsTdspMasked(raw, facts.Charges)
	return facts
}

// ExtractFactsFromPDF is the PDF-path convenience over ExtractFacts.
func ExtractFactsFromPDF(path string) (Facts, error) {
	raw, err := ExtractTextFromPDF(path)
	if err != nil {
		return Facts{}, err
	}
	return ExtractFacts(raw), nil
}
