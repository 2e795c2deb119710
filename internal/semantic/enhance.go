package semantic

import (
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/malscan/malscan/internal/classify"
	"github.com/malscan/malscan/internal/types"
)

const (
	scoreCap = 2.0

	// proximity window, in lines, for relating a finding to call sites
	userInputWindow = 3
)

var reTestFuncName = regexp.MustCompile(`(?i)^(test|spec|it|describe|before|after)`)

// Enhancer re-scores and re-classifies a file's findings using that file's
// parsed structural summary. It never drops findings and never fails a run:
// when parsing fails, the input set passes through untouched.
type Enhancer struct {
	lists classify.Lists
	log   hclog.Logger
}

// NewEnhancer builds an Enhancer with the given classifier lists.
func NewEnhancer(lists classify.Lists, log hclog.Logger) *Enhancer {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Enhancer{lists: lists, log: log}
}

// EnhanceFile returns a replacement finding set for one file, order
// preserved. The replacement is wholesale: every semantic field is recomputed
// from this run's FileAnalysis, never merged with stale values.
func (e *Enhancer) EnhanceFile(path string, content []byte, findings []types.Finding) []types.Finding {
	if len(findings) == 0 {
		return findings
	}
	fa, err := Parse(path, content)
	if err != nil {
		// fail open: unparsable files keep their detector-stage findings
		e.log.Debug("parse failed, leaving findings unenhanced", "path", path, "error", err)
		return findings
	}

	out := make([]types.Finding, len(findings))
	for i, f := range findings {
		out[i] = e.enhance(fa, f)
	}
	return out
}

func (e *Enhancer) enhance(fa *FileAnalysis, f types.Finding) types.Finding {
	f.IsTestCode = e.isTestCode(fa, f.Line)
	f.InvolvesUserInput = involvesUserInput(fa, f.Line)
	f.IsExported = isExported(fa, f.Line)
	f.HasExternalDataFlow = len(fa.ExternalCalls) > 0 || len(fa.SensitiveOps) > 0

	score := f.ThreatScore
	if f.IsTestCode {
		score *= 0.3
	}
	if f.InvolvesUserInput {
		score *= 1.5
	}
	if !f.IsExported {
		score *= 0.7
	}
	if f.HasExternalDataFlow {
		score *= 1.3
	}
	if score > scoreCap {
		score = scoreCap
	}
	f.SemanticScore = score
	f.AdjustedSeverity = adjustedSeverity(score, f.IsTestCode)
	return f
}

// isTestCode is true iff the line lies within a test-named function's body,
// or the file imports a recognized test framework. A test keyword elsewhere
// in the file is not enough.
func (e *Enhancer) isTestCode(fa *FileAnalysis, line int) bool {
	for _, fn := range fa.Functions {
		if reTestFuncName.MatchString(fn.Name) && fn.StartLine <= line && line <= fn.EndLine {
			return true
		}
	}
	return e.lists.ImportsTestFramework(fa.ImportSources())
}

// involvesUserInput is true when a component of any user-input source's
// dotted path appears among the callee names or argument tokens of calls
// within the proximity window around the finding.
func involvesUserInput(fa *FileAnalysis, line int) bool {
	if len(fa.UserInputSources) == 0 {
		return false
	}
	nearby := map[string]bool{}
	for _, c := range fa.Calls {
		if c.Line < line-userInputWindow || c.Line > line+userInputWindow {
			continue
		}
		for _, seg := range strings.Split(c.Callee, ".") {
			nearby[seg] = true
		}
		for _, arg := range c.Args {
			for _, seg := range strings.Split(arg, ".") {
				nearby[seg] = true
			}
		}
	}
	if len(nearby) == 0 {
		return false
	}
	for _, src := range fa.UserInputSources {
		for _, comp := range strings.Split(src, ".") {
			if comp != "" && nearby[comp] {
				return true
			}
		}
	}
	return false
}

func isExported(fa *FileAnalysis, line int) bool {
	for _, fn := range fa.Functions {
		if fn.Exported && fn.StartLine <= line && line <= fn.EndLine {
			return true
		}
	}
	return false
}

// adjustedSeverity maps the semantic score onto severity bands, with a low
// override for weak findings inside test code.
func adjustedSeverity(score float64, isTest bool) types.Severity {
	if isTest && score < 0.8 {
		return types.SevLow
	}
	switch {
	case score >= 1.5:
		return types.SevCritical
	case score >= 1.0:
		return types.SevHigh
	case score >= 0.6:
		return types.SevMedium
	default:
		return types.SevLow
	}
}
