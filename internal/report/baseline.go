package report

import (
	"encoding/json"
	"os"

	"github.com/malscan/malscan/internal/types"
)

// Baseline is a set of known, accepted findings. Scans run with a baseline
// report only what is new.
type Baseline struct {
	Items map[string]bool `json:"items"`
}

// LoadBaseline reads a baseline file.
func LoadBaseline(path string) (Baseline, error) {
	b := Baseline{Items: map[string]bool{}}
	f, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(f, &b); err != nil {
		return Baseline{Items: map[string]bool{}}, err
	}
	if b.Items == nil {
		b.Items = map[string]bool{}
	}
	return b, nil
}

// SaveBaseline writes the given findings as the accepted set.
func SaveBaseline(path string, findings []types.Finding) error {
	b := Baseline{Items: map[string]bool{}}
	for _, f := range findings {
		b.Items[baselineKey(f)] = true
	}
	buf, _ := json.MarshalIndent(b, "", "  ")
	return os.WriteFile(path, buf, 0o644)
}

// FilterNewFindings drops findings already present in the baseline.
func FilterNewFindings(findings []types.Finding, base Baseline) []types.Finding {
	var out []types.Finding
	for _, f := range findings {
		if !base.Items[baselineKey(f)] {
			out = append(out, f)
		}
	}
	return out
}

// baselineKey identifies a finding independently of line numbers, which shift
// with unrelated edits.
func baselineKey(f types.Finding) string {
	return f.Path + "|" + f.Category + "|" + f.Matcher + "|" + f.Match
}
