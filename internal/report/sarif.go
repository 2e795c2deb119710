package report

import (
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/malscan/malscan/internal/types"
)

// WriteSARIF writes the report as SARIF 2.1.0. One rule per catalog matcher,
// one result per finding, levels derived from the effective severity.
func WriteSARIF(w io.Writer, rep Report) error {
	doc, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("create sarif report: %w", err)
	}

	run := sarif.NewRunWithInformationURI("malscan", "https://github.com/malscan/malscan")
	seen := map[string]bool{}
	for _, f := range rep.Findings {
		ruleID := f.Category + "/" + f.Matcher
		if !seen[ruleID] {
			seen[ruleID] = true
			run.AddRule(ruleID).
				WithDescription(f.Category).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{
					Level: sevToLevel(f.Severity),
				})
		}

		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(f.Path)).
				WithRegion(sarif.NewRegion().WithStartLine(f.Line)),
		)
		result := sarif.NewRuleResult(ruleID).
			WithMessage(sarif.NewTextMessage(resultMessage(f))).
			WithLevel(sevToLevel(f.EffectiveSeverity())).
			WithLocations([]*sarif.Location{location})
		run.AddResult(result)
	}

	doc.AddRun(run)
	return doc.PrettyWrite(w)
}

func resultMessage(f types.Finding) string {
	msg := fmt.Sprintf("%s indicator matched by %s", f.Category, f.Matcher)
	if f.Snippet != "" {
		msg += ": " + f.Snippet
	}
	return msg
}

func sevToLevel(s types.Severity) string {
	switch s {
	case types.SevCritical, types.SevHigh:
		return "error"
	case types.SevMedium:
		return "warning"
	default:
		return "note"
	}
}
