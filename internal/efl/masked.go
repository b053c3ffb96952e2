package efl

import (
	"regexp"
	"strings"
)

// Some retailers publish EFLs with the utility charge cells replaced by
// asterisks and a footnote saying the charges are passed through as
// billed. Those labels carry no extractable TDSP numbers at all.
var (
	maskedChargeLineRe = regexp.MustCompile(`(?i)\b(tdu|tdsp)\b[^\n]*(deliver|charge)`)
	asteriskRe         = regexp.MustCompile(`\*{1,}`)
	passThroughRe      = regexp.MustCompile(`(?i)pass(ed)?[\s-]*through|as\s+billed\s+by|without\s+mark[\s-]?up`)
	billingWordRe      = regexp.MustCompile(`(?i)deliver|charge|billed`)
)

// strictMaskNeighborhood is how many lines around a masked charge line are
// searched for the pass-through footnote.
const strictMaskNeighborhood = 2

// IsTdspMasked decides whether an EFL deliberately masks its TDSP charges.
// It only fires when extraction found no numeric delivery values. The
// strict tier wants a TDU/TDSP charge line carrying asterisks with
// pass-through language nearby; the broad tier accepts asterisks adjacent
// to any billing language and reports lower confidence via its tier.
func IsTdspMasked(text string, charges TdspCharges) MaskedResult {
	if charges.Found() {
		return MaskedResult{}
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if !maskedChargeLineRe.MatchString(line) || !asteriskRe.MatchString(line) {
			continue
		}
		lo := i - strictMaskNeighborhood
		if lo < 0 {
			lo = 0
		}
		hi := i + strictMaskNeighborhood
		if hi >= len(lines) {
			hi = len(lines) - 1
		}
		neighborhood := strings.Join(lines[lo:hi+1], "\n")
		if passThroughRe.MatchString(neighborhood) {
			return MaskedResult{Masked: true, Tier: MaskTierStrict, Snippet: strings.TrimSpace(line)}
		}
	}

	for _, line := range lines {
		if asteriskRe.MatchString(line) && billingWordRe.MatchString(line) {
			return MaskedResult{Masked: true, Tier: MaskTierBroad, Snippet: strings.TrimSpace(line)}
		}
	}

	return MaskedResult{}
}
