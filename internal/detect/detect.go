package detect

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-hclog"

	"github.com/malscan/malscan/internal/catalog"
	"github.com/malscan/malscan/internal/classify"
	"github.com/malscan/malscan/internal/types"
)

const (
	// DefaultMaxFileBytes is the per-file size ceiling. Larger files are
	// skipped entirely to bound worst-case scan time.
	DefaultMaxFileBytes = 1 << 20

	maxMatchLen   = 120
	maxSnippetLen = 200

	scoreCap = 2.0
)

// Detector applies the pattern catalog to one file at a time and emits raw
// findings with context-derived scores and provisional severities. It holds
// only immutable state and is safe for concurrent use across files.
type Detector struct {
	cat      *catalog.Catalog
	lists    classify.Lists
	log      hclog.Logger
	maxBytes int64
}

// New builds a Detector over a compiled catalog.
func New(cat *catalog.Catalog, log hclog.Logger) *Detector {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Detector{
		cat:      cat,
		lists:    cat.Classifiers,
		log:      log,
		maxBytes: DefaultMaxFileBytes,
	}
}

// SetMaxBytes overrides the per-file size ceiling. Zero or negative keeps the
// default. Must be called before the Detector is shared across goroutines.
func (d *Detector) SetMaxBytes(n int64) {
	if n > 0 {
		d.maxBytes = n
	}
}

// ScanFile runs every catalog matcher plus the whole-file indicator
// heuristics against one file snapshot. Findings reference lines in exactly
// this snapshot.
func (d *Detector) ScanFile(path string, content []byte) []types.Finding {
	if int64(len(content)) > d.maxBytes {
		d.log.Debug("skipping oversized file", "path", path, "bytes", len(content))
		return nil
	}
	if mostlyDocumentation(content) {
		d.log.Debug("skipping mostly-documentation file", "path", path)
		return nil
	}

	// Test/example/demo suppression is file-wide, except for reserved
	// malicious-fixture directories which are never suppressed.
	suppressed := d.lists.IsTestLike(path, content)
	ctxScore := d.contextScore(path, content)

	var out []types.Finding
	if !suppressed {
		safe := computeSafeRegions(content)
		for _, c := range d.cat.Categories {
			threat := capScore(d.cat.BaseWeight() * d.cat.Weight(c.Name) * ctxScore)
			sev := severityFor(threat, types.Severity(c.Severity))
			for _, m := range c.Matchers {
				// Use the matcher's own positions. Re-searching the matched
				// substring misreports the line when the text recurs earlier
				// in the file.
				for _, loc := range m.Expr.FindAllIndex(content, -1) {
					if safe.Contains(loc[0]) {
						continue
					}
					out = append(out, types.Finding{
						Path:         path,
						Line:         lineAt(content, loc[0]),
						Category:     c.Name,
						Matcher:      m.Name,
						Match:        truncate(string(content[loc[0]:loc[1]]), maxMatchLen),
						Snippet:      lineSnippet(content, loc[0]),
						ContextScore: ctxScore,
						ThreatScore:  threat,
						Severity:     sev,
					})
				}
			}
		}
	}

	// Whole-file indicator counts run independently of per-match scanning,
	// but test/example suppression applies to them like any other finding.
	if !suppressed {
		out = append(out, d.indicatorFindings(path, content)...)
	}
	return out
}

// lineAt converts a byte offset to a 1-indexed line number.
func lineAt(content []byte, pos int) int {
	return 1 + bytes.Count(content[:pos], []byte{'\n'})
}

// contextScore starts at 1.0, multiplies in the configured modifier for each
// filename/directory token that appears in the path, and halves the result
// when any catalog-listed benign phrase occurs anywhere in the file.
func (d *Detector) contextScore(path string, content []byte) float64 {
	score := 1.0
	tokens := pathTokens(path)
	for key, mod := range d.cat.ContextModifiers {
		if tokens[strings.ToLower(key)] {
			score *= mod
		}
	}
	if len(d.cat.BenignPhrases) > 0 {
		lower := strings.ToLower(string(content))
		for _, phrase := range d.cat.BenignPhrases {
			if strings.Contains(lower, strings.ToLower(phrase)) {
				score *= 0.5
				break
			}
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

func pathTokens(path string) map[string]bool {
	out := map[string]bool{}
	norm := strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
	for _, seg := range strings.Split(norm, "/") {
		for _, tok := range strings.FieldsFunc(seg, func(r rune) bool {
			return r == '.' || r == '-' || r == '_'
		}) {
			out[tok] = true
		}
	}
	return out
}

// severityFor maps a threat score onto the provisional severity bands,
// falling back to the category's declared severity below the medium band.
func severityFor(threat float64, base types.Severity) types.Severity {
	switch {
	case threat >= 1.8:
		return types.SevCritical
	case threat >= 1.3:
		return types.SevHigh
	case threat >= 0.8:
		return types.SevMedium
	default:
		if base.Valid() {
			return base
		}
		return types.SevMedium
	}
}

func capScore(v float64) float64 {
	if v > scoreCap {
		return scoreCap
	}
	return v
}

// truncate cuts s to at most n bytes, backing off to a rune boundary so the
// evidence stays valid UTF-8 when serialized.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// lineSnippet returns the trimmed line containing pos.
func lineSnippet(content []byte, pos int) string {
	start := bytes.LastIndexByte(content[:pos], '\n') + 1
	end := bytes.IndexByte(content[pos:], '\n')
	if end < 0 {
		end = len(content)
	} else {
		end += pos
	}
	return truncate(strings.TrimSpace(string(content[start:end])), maxSnippetLen)
}

const (
	minDocLength         = 1500
	codeDensityThreshold = 0.15
)

// mostlyDocumentation reports whether a file is prose with too little code to
// be worth scanning. Short files are never classified as documentation.
func mostlyDocumentation(content []byte) bool {
	if len(content) < minDocLength {
		return false
	}
	total, code := 0, 0
	inFence := false
	for _, l := range strings.Split(string(content), "\n") {
		t := strings.TrimSpace(l)
		if t == "" {
			continue
		}
		total++
		if strings.HasPrefix(t, "```") {
			inFence = !inFence
			code++
			continue
		}
		if inFence || looksLikeCode(t) {
			code++
		}
	}
	if total == 0 {
		return true
	}
	return float64(code)/float64(total) < codeDensityThreshold
}

var codePrefixes = []string{
	"import ", "from ", "func ", "def ", "var ", "let ", "const ",
	"return ", "if ", "for ", "while ", "class ", "package ",
}

func looksLikeCode(t string) bool {
	if strings.ContainsAny(t, ";{}=") {
		return true
	}
	for _, p := range codePrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}
