package detect

import (
	"fmt"
	"strings"

	"github.com/malscan/malscan/internal/types"
)

// Whole-file indicator categories. These are synthetic findings pinned to
// line 1 with fixed scores, independent of any single pattern match.
const (
	CategoryInstructionOverride = "indicator_instruction_override"
	CategoryEncodingAbuse       = "indicator_encoding_abuse"
	CategoryPrivilegeEscalation = "indicator_privilege_escalation"

	indicatorMatcher = "whole_file"
)

const (
	instructionOverrideMin = 3 // count > 2
	encodingCallsMin       = 4 // count > 3
	privilegeDistinctMin   = 2
)

func (d *Detector) indicatorFindings(path string, content []byte) []types.Finding {
	lower := strings.ToLower(string(content))
	var out []types.Finding

	if n, first := countPhrases(lower, d.cat.Indicators.InstructionOverride); n >= instructionOverrideMin {
		out = append(out, syntheticFinding(path, CategoryInstructionOverride, types.SevCritical, 2.0,
			first, fmt.Sprintf("%d instruction-override phrases in one file", n)))
	}
	if n, first := countPhrases(lower, d.cat.Indicators.EncodingCalls); n >= encodingCallsMin {
		out = append(out, syntheticFinding(path, CategoryEncodingAbuse, types.SevHigh, 1.4,
			first, fmt.Sprintf("%d encoding/decoding calls in one file", n)))
	}
	if n, first := distinctPhrases(lower, d.cat.Indicators.PrivilegeKeywords); n >= privilegeDistinctMin {
		out = append(out, syntheticFinding(path, CategoryPrivilegeEscalation, types.SevCritical, 1.9,
			first, fmt.Sprintf("%d distinct privilege-escalation keywords", n)))
	}
	return out
}

// countPhrases sums occurrences of every phrase and returns the first phrase
// seen, for evidence.
func countPhrases(lower string, phrases []string) (int, string) {
	total := 0
	first := ""
	for _, p := range phrases {
		n := strings.Count(lower, strings.ToLower(p))
		if n > 0 && first == "" {
			first = p
		}
		total += n
	}
	return total, first
}

// distinctPhrases counts how many different phrases appear at least once.
func distinctPhrases(lower string, phrases []string) (int, string) {
	distinct := 0
	first := ""
	for _, p := range phrases {
		if strings.Contains(lower, strings.ToLower(p)) {
			if first == "" {
				first = p
			}
			distinct++
		}
	}
	return distinct, first
}

func syntheticFinding(path, category string, sev types.Severity, score float64, match, snippet string) types.Finding {
	return types.Finding{
		Path:         path,
		Line:         1,
		Category:     category,
		Matcher:      indicatorMatcher,
		Match:        match,
		Snippet:      snippet,
		ContextScore: 1.0,
		ThreatScore:  score,
		Severity:     sev,
	}
}
