package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/malscan/malscan/internal/types"
)

// Verdicts, thresholded on the risk score.
const (
	VerdictSafe         = "SAFE"
	VerdictReview       = "REVIEW"
	VerdictDoNotInstall = "DO NOT INSTALL"
)

// ScanInfo describes one scan run.
type ScanInfo struct {
	Target          string  `json:"target"`
	FilesScanned    int     `json:"files_scanned"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Summary is the roll-up consumers gate on.
type Summary struct {
	RiskScore int            `json:"risk_score"`
	Verdict   string         `json:"verdict"`
	Counts    map[string]int `json:"counts"`
}

// Report is the full scan output.
type Report struct {
	ScanInfo ScanInfo        `json:"scan_info"`
	Summary  Summary         `json:"summary"`
	Findings []types.Finding `json:"findings"`
}

// Build assembles a report from the final finding set.
func Build(target string, filesScanned int, duration time.Duration, findings []types.Finding) Report {
	score := RiskScore(findings)
	return Report{
		ScanInfo: ScanInfo{
			Target:          target,
			FilesScanned:    filesScanned,
			DurationSeconds: duration.Seconds(),
		},
		Summary: Summary{
			RiskScore: score,
			Verdict:   Verdict(score),
			Counts:    severityCounts(findings),
		},
		Findings: findings,
	}
}

// RiskScore sums per-finding contributions on the effective severity
// (critical 100, high 50, medium 20, low 0) and saturates at 100. Summation
// is commutative, so the score never depends on finding order.
func RiskScore(findings []types.Finding) int {
	score := 0
	for _, f := range findings {
		switch f.EffectiveSeverity() {
		case types.SevCritical:
			score += 100
		case types.SevHigh:
			score += 50
		case types.SevMedium:
			score += 20
		}
		if score >= 100 {
			return 100
		}
	}
	return score
}

// Verdict maps a risk score onto the three recommendation bands.
func Verdict(score int) string {
	switch {
	case score <= 40:
		return VerdictSafe
	case score <= 80:
		return VerdictReview
	default:
		return VerdictDoNotInstall
	}
}

// ExitCode returns the process exit status for CI gating: 2 when any finding
// is critical, 1 when any is high, 0 otherwise.
func ExitCode(findings []types.Finding) int {
	code := 0
	for _, f := range findings {
		switch f.EffectiveSeverity() {
		case types.SevCritical:
			return 2
		case types.SevHigh:
			code = 1
		}
	}
	return code
}

func severityCounts(findings []types.Finding) map[string]int {
	counts := map[string]int{
		string(types.SevCritical): 0,
		string(types.SevHigh):     0,
		string(types.SevMedium):   0,
		string(types.SevLow):      0,
	}
	for _, f := range findings {
		counts[string(f.EffectiveSeverity())]++
	}
	return counts
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, rep Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
