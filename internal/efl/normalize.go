package efl

import (
	"regexp"
	"strings"
)

// Patterns that open the average-price disclosure table. The table is an
// output of the pricing math and has no place in the stored text.
var avgTableStartRe = regexp.MustCompile(`(?i)average\s+(monthly\s+)?use\b|average\s+price\s+per\s+kwh`)

// Section headings that close a disclosure block.
var sectionBoundaryRe = regexp.MustCompile(`(?i)^\s*(base\s+charge|energy\s+charge|tdu\s+delivery\s+charges?|type\s+of\s+product|contract\s+term|other\s+key\s+terms|disclosure\s+chart|do\s+i\s+have\s+a\s+termination\s+fee)`)

// Opens the TDU pass-through boilerplate block, which restates utility
// tariffs in prose and confuses the line-oriented matchers.
var tduBlockStartRe = regexp.MustCompile(`(?i)^\s*tdu\s+delivery\s+charges\s+(are\s+)?(passed|billed)`)

// Individual noise lines removed wherever they appear.
var noiseLineRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)plus\s+applicable\s+taxes`),
	regexp.MustCompile(`(?i)municipal\s+franchise\s+fee`),
	regexp.MustCompile(`(?i)gross\s+receipts\s+tax`),
	regexp.MustCompile(`(?i)for\s+(current|updated)\s+tdu\s+delivery\s+charges.*(visit|www\.|http)`),
	regexp.MustCompile(`(?i)^\s*page\s+\d+\s+of\s+\d+\s*$`),
}

// NormalizeResult is the cleaned text plus what was cut and why.
type NormalizeResult struct {
	Text  string
	Notes []string
}

// Normalize strips the blocks and lines of EFL text that are known to
// poison extraction: the average-price table (an output, not an input),
// the TDU pass-through prose block, and tax and pagination noise. Notes
// record each category of removal once.
func Normalize(raw string) NormalizeResult {
	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))
	noted := make(map[string]bool)
	var notes []string

	note := func(msg string) {
		if !noted[msg] {
			noted[msg] = true
			notes = append(notes, msg)
		}
	}

	skipUntilBoundary := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if skipUntilBoundary {
			if trimmed == "" || sectionBoundaryRe.MatchString(trimmed) {
				skipUntilBoundary = false
				// A boundary heading itself is kept; a blank line is not.
				if trimmed == "" {
					continue
				}
			} else {
				continue
			}
		}

		if avgTableStartRe.MatchString(trimmed) {
			skipUntilBoundary = true
			note("removed average-price disclosure table")
			continue
		}
		if tduBlockStartRe.MatchString(trimmed) {
			skipUntilBoundary = true
			note("removed TDU pass-through block")
			continue
		}

		dropped := false
		for _, re := range noiseLineRes {
			if re.MatchString(trimmed) {
				note("removed boilerplate noise")
				dropped = true
				break
			}
		}
		if dropped {
			continue
		}

		kept = append(kept, line)
	}

	return NormalizeResult{Text: strings.Join(kept, "\n"), Notes: notes}
}
