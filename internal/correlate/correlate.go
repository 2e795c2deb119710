package correlate

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/malscan/malscan/internal/classify"
	"github.com/malscan/malscan/internal/semantic"
	"github.com/malscan/malscan/internal/types"
)

// Correlator runs the cross-file detectors over the complete, enhanced
// finding set. Run is a pure function of its inputs: correlation records are
// rebuilt from scratch each time, so re-running on identical inputs yields an
// identical result.
type Correlator struct {
	lists classify.Lists
	log   hclog.Logger
}

// New builds a Correlator with the given classifier lists.
func New(lists classify.Lists, log hclog.Logger) *Correlator {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Correlator{lists: lists, log: log}
}

// Run returns a copy of findings with correlation records attached. Every
// record is attached to every finding belonging to a file it implicates.
// Finding order is preserved.
func (c *Correlator) Run(findings []types.Finding, g *Graph) []types.Finding {
	if g == nil {
		g = &Graph{Edges: map[string][]string{}, Imports: map[string][]semantic.Import{}}
	}

	out := make([]types.Finding, len(findings))
	copy(out, findings)
	for i := range out {
		out[i].Correlations = nil
	}

	byFile := map[string][]types.Finding{}
	for _, f := range out {
		byFile[f.Path] = append(byFile[f.Path], f)
	}
	files := make([]string, 0, len(byFile))
	for p := range byFile {
		files = append(files, p)
	}
	sort.Strings(files)

	var records []types.CorrelationRecord
	records = append(records, c.suspiciousImports(g, files)...)
	records = append(records, attackChains(byFile, files, g)...)
	records = append(records, distributedExfiltration(byFile, files)...)
	records = append(records, dataFlowChains(byFile, files, g)...)
	records = append(records, persistenceChains(byFile, files)...)
	records = append(records, c.configInjection(byFile, files)...)

	for _, r := range records {
		implicated := map[string]bool{}
		for _, p := range r.Files {
			implicated[p] = true
		}
		for i := range out {
			if implicated[out[i].Path] {
				out[i].Correlations = append(out[i].Correlations, r)
			}
		}
	}
	c.log.Debug("correlation complete", "files", len(files), "records", len(records))
	return out
}

var (
	reHexName   = regexp.MustCompile(`(?i)^[0-9a-f]{8,}$`)
	reDataIdent = regexp.MustCompile(`(?i)^[a-z_$][\w$]*$`)
	reDataWord  = regexp.MustCompile(`(?i)(user|input|data|payload|req|param|url|path|file|name)`)
	reURLHost   = regexp.MustCompile(`(?i)https?://([a-z0-9.-]+(?::\d+)?)`)
	reConfigRef = regexp.MustCompile(`(?i)[\w/.-]*(?:config|settings)[\w/.-]*\.(?:json|ya?ml|ini|conf|cfg|toml|xml)|[\w/-]+\.(?:ya?ml|ini|conf|cfg|toml)\b`)
)

// suspiciousImports flags imports whose source is a remote URL, a
// temp-directory path, a high-entropy or unicode-escaped name, or a dynamic
// import driven by a data-looking identifier. Only files that carry findings
// are implicated, so a record always lands somewhere.
func (c *Correlator) suspiciousImports(g *Graph, files []string) []types.CorrelationRecord {
	var records []types.CorrelationRecord
	for _, p := range files {
		seen := map[string]bool{}
		for _, imp := range g.Imports[p] {
			reason := importSuspicion(imp)
			if reason == "" || seen[imp.Source] {
				continue
			}
			seen[imp.Source] = true
			records = append(records, types.CorrelationRecord{
				Type:     "suspicious_import",
				Severity: types.SevHigh,
				Details:  fmt.Sprintf("import %q in %s: %s", imp.Source, p, reason),
				Files:    []string{p},
			})
		}
	}
	return records
}

func importSuspicion(imp semantic.Import) string {
	src := imp.Source
	lower := strings.ToLower(src)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "ftp://"):
		return "remote url source"
	case strings.HasPrefix(lower, "/tmp"), strings.HasPrefix(lower, "/var/tmp"),
		strings.Contains(lower, "\\temp\\"), strings.Contains(lower, "%temp%"):
		return "temp directory source"
	case strings.Contains(src, `\u`):
		return "unicode-escaped name"
	case reHexName.MatchString(importKey(src)):
		return "high-entropy name"
	case imp.Dynamic && reDataIdent.MatchString(src) && reDataWord.MatchString(src):
		return "dynamic import driven by data identifier"
	}
	return ""
}

// attackChains emits one critical record per category that occurs in two or
// more related files. Relatedness is a dependency edge, co-location in one
// directory, or basenames identical after stripping trailing digits and
// underscores.
func attackChains(byFile map[string][]types.Finding, files []string, g *Graph) []types.CorrelationRecord {
	type loc struct {
		lines map[string][]int
		files []string
	}
	byCategory := map[string]*loc{}
	for _, p := range files {
		for _, f := range byFile[p] {
			l := byCategory[f.Category]
			if l == nil {
				l = &loc{lines: map[string][]int{}}
				byCategory[f.Category] = l
			}
			if _, ok := l.lines[p]; !ok {
				l.files = append(l.files, p)
			}
			l.lines[p] = append(l.lines[p], f.Line)
		}
	}

	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	var records []types.CorrelationRecord
	for _, cat := range categories {
		l := byCategory[cat]
		if len(l.files) < 2 || !relatedFiles(l.files, g) {
			continue
		}
		var parts []string
		for _, p := range l.files {
			lines := append([]int(nil), l.lines[p]...)
			sort.Ints(lines)
			strs := make([]string, len(lines))
			for i, n := range lines {
				strs[i] = fmt.Sprint(n)
			}
			parts = append(parts, fmt.Sprintf("%s:%s", p, strings.Join(strs, ",")))
		}
		records = append(records, types.CorrelationRecord{
			Type:     "attack_chain",
			Severity: types.SevCritical,
			Details:  fmt.Sprintf("category %s coordinated across %d files: %s", cat, len(l.files), strings.Join(parts, "; ")),
			Files:    append([]string(nil), l.files...),
		})
	}
	return records
}

func relatedFiles(files []string, g *Graph) bool {
	for i := 0; i < len(files); i++ {
		for j := i + 1; j < len(files); j++ {
			a, b := files[i], files[j]
			if g.Connected(a, b) {
				return true
			}
			if filepath.Dir(a) == filepath.Dir(b) {
				return true
			}
			if strippedBase(a) == strippedBase(b) {
				return true
			}
		}
	}
	return false
}

// strippedBase drops the extension and any trailing digits or underscores, so
// payload1.js and payload_2.js compare equal.
func strippedBase(p string) string {
	b := baseKey(p)
	return strings.TrimRight(b, "0123456789_")
}

var networkIndicators = []string{
	"fetch(", "http.request", "https.request", "xmlhttprequest", "websocket",
	"curl ", "wget ", ".post(", ".upload(",
}

var envDumpIndicators = []string{"process.env", "os.environ", "printenv"}

// distributedExfiltration fires when exfiltration-flavored findings across the
// corpus reference two or more distinct destination hosts.
func distributedExfiltration(byFile map[string][]types.Finding, files []string) []types.CorrelationRecord {
	hosts := map[string]bool{}
	seen := map[string]bool{}
	var implicated []string
	for _, p := range files {
		for _, f := range byFile[p] {
			if !exfiltrationFlavored(f) {
				continue
			}
			if !seen[p] {
				seen[p] = true
				implicated = append(implicated, p)
			}
			for _, m := range reURLHost.FindAllStringSubmatch(evidence(f), -1) {
				hosts[strings.ToLower(m[1])] = true
			}
		}
	}
	if len(hosts) < 2 {
		return nil
	}
	dests := make([]string, 0, len(hosts))
	for h := range hosts {
		dests = append(dests, h)
	}
	sort.Strings(dests)
	return []types.CorrelationRecord{{
		Type:     "distributed_exfiltration",
		Severity: types.SevCritical,
		Details:  fmt.Sprintf("exfiltration to %d destinations: %s", len(dests), strings.Join(dests, ", ")),
		Files:    implicated,
	}}
}

func exfiltrationFlavored(f types.Finding) bool {
	cat := strings.ToLower(f.Category)
	if strings.Contains(cat, "exfil") || strings.Contains(cat, "credential") {
		return true
	}
	ev := evidence(f)
	for _, ind := range networkIndicators {
		if strings.Contains(ev, ind) {
			return true
		}
	}
	for _, ind := range envDumpIndicators {
		if strings.Contains(ev, ind) {
			return true
		}
	}
	return false
}

// dataFlowChains looks for files whose findings show both a user-input source
// and an external call, then follows the file's outgoing edges to build an
// input -> processing -> output path. A path needs at least three steps, so a
// file with no outgoing edges never chains.
func dataFlowChains(byFile map[string][]types.Finding, files []string, g *Graph) []types.CorrelationRecord {
	var records []types.CorrelationRecord
	for _, p := range files {
		hasInput, hasExternal := false, false
		for _, f := range byFile[p] {
			if f.InvolvesUserInput || userInputFlavored(f) {
				hasInput = true
			}
			if f.HasExternalDataFlow || externalFlavored(f) {
				hasExternal = true
			}
		}
		if !hasInput || !hasExternal {
			continue
		}
		processing := g.Outgoing(p)
		path := make([]string, 0, len(processing)+2)
		path = append(path, p)
		path = append(path, processing...)
		path = append(path, p)
		if len(path) < 3 {
			continue
		}
		implicated := append([]string{p}, processing...)
		sort.Strings(implicated)
		records = append(records, types.CorrelationRecord{
			Type:     "data_flow_chain",
			Severity: types.SevHigh,
			Details:  fmt.Sprintf("user input flows to external call: %s", strings.Join(path, " -> ")),
			Files:    implicated,
		})
	}
	return records
}

func userInputFlavored(f types.Finding) bool {
	ev := evidence(f)
	return strings.Contains(ev, "req.") || strings.Contains(ev, "request.") ||
		strings.Contains(ev, "process.argv") || strings.Contains(ev, "stdin")
}

func externalFlavored(f types.Finding) bool {
	ev := evidence(f)
	for _, ind := range networkIndicators {
		if strings.Contains(ev, ind) {
			return true
		}
	}
	return false
}

var persistenceTechniques = []struct {
	label    string
	keywords []string
}{
	{"startup", []string{"startup", "boot", "rc.local", "init.d", "autostart", "login"}},
	{"installation", []string{"postinstall", "preinstall", "install", "setup"}},
	{"system", []string{"registry", "currentversion", "cron", "systemd", "/etc/"}},
	{"service", []string{"service", "daemon", "launchd", "launchagent"}},
}

// persistenceChains fires when persistence-flavored findings appear in two or
// more files, labelling each file with the technique its evidence suggests.
func persistenceChains(byFile map[string][]types.Finding, files []string) []types.CorrelationRecord {
	techniques := map[string]string{}
	var implicated []string
	for _, p := range files {
		for _, f := range byFile[p] {
			if !persistenceFlavored(f) {
				continue
			}
			if _, ok := techniques[p]; !ok {
				implicated = append(implicated, p)
				techniques[p] = techniqueLabel(evidence(f))
			}
		}
	}
	if len(implicated) < 2 {
		return nil
	}
	parts := make([]string, len(implicated))
	for i, p := range implicated {
		parts[i] = fmt.Sprintf("%s (%s)", p, techniques[p])
	}
	return []types.CorrelationRecord{{
		Type:     "multi_file_persistence",
		Severity: types.SevCritical,
		Details:  fmt.Sprintf("persistence mechanisms across %d files: %s", len(implicated), strings.Join(parts, "; ")),
		Files:    implicated,
	}}
}

func persistenceFlavored(f types.Finding) bool {
	cat := strings.ToLower(f.Category)
	if strings.Contains(cat, "backdoor") || strings.Contains(cat, "persistence") {
		return true
	}
	ev := evidence(f)
	for _, t := range persistenceTechniques {
		for _, kw := range t.keywords {
			if strings.Contains(ev, kw) {
				return true
			}
		}
	}
	return false
}

func techniqueLabel(ev string) string {
	for _, t := range persistenceTechniques {
		for _, kw := range t.keywords {
			if strings.Contains(ev, kw) {
				return t.label
			}
		}
	}
	return "unknown"
}

// configInjection flags non-config files whose evidence references a
// config-path-like string, and config-classified files that carry findings of
// their own.
func (c *Correlator) configInjection(byFile map[string][]types.Finding, files []string) []types.CorrelationRecord {
	var records []types.CorrelationRecord
	for _, p := range files {
		if c.lists.IsConfigPath(p) {
			records = append(records, types.CorrelationRecord{
				Type:     "compromised_config",
				Severity: types.SevHigh,
				Details:  fmt.Sprintf("configuration file %s carries findings of its own", p),
				Files:    []string{p},
			})
			continue
		}
		for _, f := range byFile[p] {
			if ref := reConfigRef.FindString(evidence(f)); ref != "" {
				records = append(records, types.CorrelationRecord{
					Type:     "config_injection",
					Severity: types.SevHigh,
					Details:  fmt.Sprintf("%s references configuration path %q", p, ref),
					Files:    []string{p},
				})
				break
			}
		}
	}
	return records
}

func evidence(f types.Finding) string {
	return strings.ToLower(f.Match + " " + f.Snippet)
}
