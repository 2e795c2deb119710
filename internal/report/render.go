package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/malscan/malscan/internal/types"
)

// PrintOptions control the human-readable rendering.
type PrintOptions struct {
	NoColor bool
	// Correlations adds a section listing distinct cross-file records.
	Correlations bool
}

var (
	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	highStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	mediumStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	lowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	verdictBad    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	verdictWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	verdictOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)

// PrintTable writes the findings table and summary footer.
func PrintTable(w io.Writer, rep Report, opts PrintOptions) {
	if len(rep.Findings) == 0 {
		fmt.Fprintln(w, "No indicators found.")
	} else {
		table := tablewriter.NewTable(w)
		table.Header("Severity", "Rule", "Location", "Evidence")
		for _, f := range rep.Findings {
			sev := string(f.EffectiveSeverity())
			if !opts.NoColor {
				sev = colorSeverity(f.EffectiveSeverity())
			}
			table.Append(sev,
				f.Category+"/"+f.Matcher,
				fmt.Sprintf("%s:%d", f.Path, f.Line),
				f.Snippet)
		}
		table.Render()
	}

	if opts.Correlations {
		printCorrelations(w, rep.Findings)
	}

	verdict := rep.Summary.Verdict
	if !opts.NoColor {
		verdict = colorVerdict(verdict)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Findings: %d (critical: %d, high: %d, medium: %d, low: %d)\n",
		len(rep.Findings),
		rep.Summary.Counts[string(types.SevCritical)],
		rep.Summary.Counts[string(types.SevHigh)],
		rep.Summary.Counts[string(types.SevMedium)],
		rep.Summary.Counts[string(types.SevLow)])
	fmt.Fprintf(w, "Risk score: %d/100  Verdict: %s\n", rep.Summary.RiskScore, verdict)
	if rep.ScanInfo.DurationSeconds > 0 {
		fmt.Fprintf(w, "Scanned %d files in %.2fs\n", rep.ScanInfo.FilesScanned, rep.ScanInfo.DurationSeconds)
	}
}

// printCorrelations lists each distinct correlation record once, however many
// findings it annotates.
func printCorrelations(w io.Writer, findings []types.Finding) {
	seen := map[string]bool{}
	var distinct []types.CorrelationRecord
	for _, f := range findings {
		for _, r := range f.Correlations {
			key := r.Type + "|" + r.Details
			if !seen[key] {
				seen[key] = true
				distinct = append(distinct, r)
			}
		}
	}
	if len(distinct) == 0 {
		return
	}
	fmt.Fprintf(w, "\nCross-file correlations: %d\n", len(distinct))
	for _, r := range distinct {
		fmt.Fprintf(w, "  [%s] %s: %s\n", r.Severity, r.Type, r.Details)
	}
}

func colorSeverity(s types.Severity) string {
	switch s {
	case types.SevCritical:
		return criticalStyle.Render(string(s))
	case types.SevHigh:
		return highStyle.Render(string(s))
	case types.SevMedium:
		return mediumStyle.Render(string(s))
	default:
		return lowStyle.Render(string(s))
	}
}

func colorVerdict(v string) string {
	switch v {
	case VerdictDoNotInstall:
		return verdictBad.Render(v)
	case VerdictReview:
		return verdictWarn.Render(v)
	default:
		return verdictOK.Render(v)
	}
}
