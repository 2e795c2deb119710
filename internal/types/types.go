package types

// Severity is an ordered risk level for a finding. Order matters: it drives
// report grouping and the process exit status.
type Severity string

const (
	SevLow      Severity = "low"
	SevMedium   Severity = "medium"
	SevHigh     Severity = "high"
	SevCritical Severity = "critical"
)

var sevRank = map[Severity]int{
	SevLow:      0,
	SevMedium:   1,
	SevHigh:     2,
	SevCritical: 3,
}

// Rank returns the position of s in the low < medium < high < critical order.
// Unknown severities rank below low.
func (s Severity) Rank() int {
	if r, ok := sevRank[s]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Valid reports whether s is one of the four known levels.
func (s Severity) Valid() bool {
	_, ok := sevRank[s]
	return ok
}

// Finding is one detection event tied to a file, line, category and matcher.
// Scores and flags evolve across pipeline stages: the detector fills the
// context/threat scores and provisional severity, the enhancer recomputes
// SemanticScore plus the semantic flags and AdjustedSeverity, and the
// correlator appends to Correlations. Line always indexes into the exact
// file-content snapshot the detector ran against.
type Finding struct {
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Category string `json:"category"`
	Matcher  string `json:"matcher"`
	Match    string `json:"match"`
	Snippet  string `json:"snippet,omitempty"`

	ContextScore  float64 `json:"context_score"`
	ThreatScore   float64 `json:"threat_score"`
	SemanticScore float64 `json:"semantic_score,omitempty"`

	Severity         Severity `json:"severity"`
	AdjustedSeverity Severity `json:"adjusted_severity,omitempty"`

	IsTestCode          bool `json:"is_test_code,omitempty"`
	InvolvesUserInput   bool `json:"involves_user_input,omitempty"`
	IsExported          bool `json:"is_exported,omitempty"`
	HasExternalDataFlow bool `json:"has_external_data_flow,omitempty"`

	Correlations []CorrelationRecord `json:"correlations,omitempty"`
}

// EffectiveSeverity returns the enhancer's adjusted severity when set, and the
// detector's provisional severity otherwise.
func (f Finding) EffectiveSeverity() Severity {
	if f.AdjustedSeverity != "" {
		return f.AdjustedSeverity
	}
	return f.Severity
}

// CorrelationRecord links a finding to a cross-file relationship detected by
// the correlator. One record may annotate findings in several files.
type CorrelationRecord struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Details  string   `json:"details"`
	Files    []string `json:"files,omitempty"`
}
