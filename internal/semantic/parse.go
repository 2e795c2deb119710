package semantic

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrUnparsable marks content the lightweight parser refuses to summarize.
// Callers fail open on it: findings pass through unenhanced.
var ErrUnparsable = errors.New("unparsable content")

// FileAnalysis is the per-file structural summary the enhancer reasons over.
// It is computed once per file per run and discarded after enhancement.
type FileAnalysis struct {
	Imports   []Import
	Exports   []string
	Functions []Function
	Variables []string
	Calls     []Call

	// data-flow sketch
	UserInputSources []string // dotted member paths rooted at request-like identifiers
	ExternalCalls    []Site
	SensitiveOps     []Site
}

// Import is one import/require of another module, static or dynamic.
type Import struct {
	Source  string
	Line    int
	Dynamic bool
}

// Function is a definition with its body line range.
type Function struct {
	Name      string
	StartLine int
	EndLine   int
	Exported  bool
}

// Call is one call site with its resolved callee name and argument tokens.
type Call struct {
	Callee string
	Args   []string
	Line   int
}

// Site marks a named occurrence at a line.
type Site struct {
	Name string
	Line int
}

// ImportSources returns just the source strings of all imports.
func (fa *FileAnalysis) ImportSources() []string {
	out := make([]string, len(fa.Imports))
	for i, imp := range fa.Imports {
		out[i] = imp.Source
	}
	return out
}

var (
	reImportFrom    = regexp.MustCompile(`\bimport\s+(?:[\w${},*\s]+\s+from\s+)?["']([^"']+)["']`)
	reImportDynamic = regexp.MustCompile(`\bimport\s*\(\s*["']?([^"')]+)["']?\s*\)`)
	reRequire       = regexp.MustCompile(`\brequire\s*\(\s*["']([^"']+)["']\s*\)`)

	reExportDecl    = regexp.MustCompile(`\bexport\s+(?:default\s+)?(?:async\s+)?(?:function|class|const|let|var)\s+([A-Za-z_$][\w$]*)`)
	reExportList    = regexp.MustCompile(`\bexport\s*\{([^}]*)\}`)
	reModuleExports = regexp.MustCompile(`\bmodule\.exports(?:\.([A-Za-z_$][\w$]*))?\s*=`)
	reExportsProp   = regexp.MustCompile(`\bexports\.([A-Za-z_$][\w$]*)\s*=`)

	reFuncDecl  = regexp.MustCompile(`\bfunction\s+([A-Za-z_$][\w$]*)\s*\(`)
	reArrowDecl = regexp.MustCompile(`\b(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s+)?(?:\([^)]*\)|[\w$]+)\s*=>`)
	reFuncExpr  = regexp.MustCompile(`\b(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s+)?function\b`)
	rePyDef     = regexp.MustCompile(`^\s*def\s+([A-Za-z_]\w*)\s*\(`)
	reGoFunc    = regexp.MustCompile(`^\s*func\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)\s*\(`)

	reVarDecl = regexp.MustCompile(`\b(?:var|let|const)\s+([A-Za-z_$][\w$]*)`)
	reCall    = regexp.MustCompile(`([A-Za-z_$][\w$.]*)\s*\(([^()]*)\)`)

	reUserInput = regexp.MustCompile(`\b(?:req|request|ctx|event)\.([\w.]+)`)

	callKeywords = map[string]bool{
		"if": true, "for": true, "while": true, "switch": true,
		"catch": true, "return": true, "function": true, "import": true,
	}
)

var externalCallNames = []string{
	"fetch", "axios", "http.get", "http.request", "https.get", "https.request",
	"XMLHttpRequest", "WebSocket", "net.connect", "net.createConnection",
	"requests.get", "requests.post", "urllib.request", "http.Get", "http.Post",
}

var sensitiveOpNames = []string{
	"eval", "Function", "exec", "execSync", "spawn", "spawnSync", "fork",
	"child_process", "os.system", "subprocess", "Runtime.getRuntime",
	"vm.runInContext", "vm.runInNewContext",
}

// Parse builds a FileAnalysis from one file's text. It is a token- and
// line-level summary, not a full AST: good enough for containment and
// proximity reasoning, never authoritative. Returns ErrUnparsable for content
// the heuristics cannot be trusted on; the caller then fails open.
func Parse(path string, content []byte) (*FileAnalysis, error) {
	if !utf8.Valid(content) {
		return nil, ErrUnparsable
	}
	text := string(content)
	if braceImbalance(text) {
		return nil, ErrUnparsable
	}

	fa := &FileAnalysis{}
	lines := strings.Split(text, "\n")

	for i, line := range lines {
		ln := i + 1
		collectImports(fa, line, ln)
		collectExports(fa, line)
		for _, m := range reVarDecl.FindAllStringSubmatch(line, -1) {
			fa.Variables = append(fa.Variables, m[1])
		}
		collectCalls(fa, line, ln)
		for _, m := range reUserInput.FindAllString(line, -1) {
			fa.UserInputSources = appendUnique(fa.UserInputSources, m)
		}
	}

	collectFunctions(fa, lines)
	markExportedFunctions(fa, lines)
	return fa, nil
}

func collectImports(fa *FileAnalysis, line string, ln int) {
	for _, m := range reRequire.FindAllStringSubmatch(line, -1) {
		fa.Imports = append(fa.Imports, Import{Source: m[1], Line: ln})
	}
	for _, m := range reImportDynamic.FindAllStringSubmatch(line, -1) {
		fa.Imports = append(fa.Imports, Import{Source: strings.TrimSpace(m[1]), Line: ln, Dynamic: true})
	}
	// static import must not double-report a dynamic import() on the same line
	if !strings.Contains(line, "import(") {
		for _, m := range reImportFrom.FindAllStringSubmatch(line, -1) {
			fa.Imports = append(fa.Imports, Import{Source: m[1], Line: ln})
		}
	}
}

func collectExports(fa *FileAnalysis, line string) {
	for _, m := range reExportDecl.FindAllStringSubmatch(line, -1) {
		fa.Exports = appendUnique(fa.Exports, m[1])
	}
	for _, m := range reExportList.FindAllStringSubmatch(line, -1) {
		for _, name := range strings.Split(m[1], ",") {
			name = strings.TrimSpace(name)
			// "a as b" exports b
			if i := strings.LastIndex(name, " as "); i >= 0 {
				name = strings.TrimSpace(name[i+4:])
			}
			if name != "" {
				fa.Exports = appendUnique(fa.Exports, name)
			}
		}
	}
	for _, m := range reModuleExports.FindAllStringSubmatch(line, -1) {
		if m[1] != "" {
			fa.Exports = appendUnique(fa.Exports, m[1])
		}
	}
	for _, m := range reExportsProp.FindAllStringSubmatch(line, -1) {
		fa.Exports = appendUnique(fa.Exports, m[1])
	}
}

func collectCalls(fa *FileAnalysis, line string, ln int) {
	for _, m := range reCall.FindAllStringSubmatch(line, -1) {
		callee := m[1]
		short := callee
		if i := strings.LastIndexByte(short, '.'); i >= 0 {
			short = short[i+1:]
		}
		if callKeywords[short] || callKeywords[callee] {
			continue
		}
		fa.Calls = append(fa.Calls, Call{Callee: callee, Args: argTokens(m[2]), Line: ln})

		if nameMatches(callee, externalCallNames) {
			fa.ExternalCalls = append(fa.ExternalCalls, Site{Name: callee, Line: ln})
		}
		if nameMatches(callee, sensitiveOpNames) {
			fa.SensitiveOps = append(fa.SensitiveOps, Site{Name: callee, Line: ln})
		}
	}
}

// nameMatches compares a callee against known names, on the full dotted path
// and on the final component.
func nameMatches(callee string, names []string) bool {
	short := callee
	if i := strings.LastIndexByte(short, '.'); i >= 0 {
		short = short[i+1:]
	}
	for _, n := range names {
		if callee == n || short == n {
			return true
		}
		// "child_process.execSync" style: suffix match on dotted names
		if strings.Contains(n, ".") && strings.HasSuffix(callee, n) {
			return true
		}
	}
	return false
}

func argTokens(args string) []string {
	var out []string
	for _, tok := range strings.FieldsFunc(args, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	}) {
		tok = strings.Trim(tok, `"'`+"`")
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// collectFunctions finds definitions and computes body ranges by brace
// matching from the definition line. Python defs fall back to indentation;
// anything else gets a single-line range.
func collectFunctions(fa *FileAnalysis, lines []string) {
	for i, line := range lines {
		names := functionNamesOn(line)
		for _, name := range names {
			end := bodyEndLine(lines, i)
			fa.Functions = append(fa.Functions, Function{
				Name:      name,
				StartLine: i + 1,
				EndLine:   end,
			})
		}
	}
}

func functionNamesOn(line string) []string {
	var out []string
	for _, re := range []*regexp.Regexp{reFuncDecl, reArrowDecl, reFuncExpr, rePyDef, reGoFunc} {
		for _, m := range re.FindAllStringSubmatch(line, -1) {
			out = append(out, m[1])
		}
	}
	return out
}

// bodyEndLine returns the 1-indexed line where the body opened on defLine
// (0-indexed) closes.
func bodyEndLine(lines []string, defLine int) int {
	// brace-delimited body
	depth := 0
	opened := false
	for i := defLine; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
				if opened && depth <= 0 {
					return i + 1
				}
			}
		}
		// don't scan past the def line looking for a first brace that
		// belongs to something else
		if !opened && i > defLine {
			break
		}
	}
	if !opened {
		// indentation-delimited body (python)
		indent := indentOf(lines[defLine])
		for i := defLine + 1; i < len(lines); i++ {
			t := strings.TrimSpace(lines[i])
			if t == "" {
				continue
			}
			if indentOf(lines[i]) <= indent {
				return i
			}
		}
		if strings.HasPrefix(strings.TrimSpace(lines[defLine]), "def ") {
			return len(lines)
		}
	}
	return defLine + 1
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 4
		} else {
			break
		}
	}
	return n
}

// markExportedFunctions flags functions whose name is exported, or that have
// an export statement within one line of the definition.
func markExportedFunctions(fa *FileAnalysis, lines []string) {
	exported := map[string]bool{}
	for _, e := range fa.Exports {
		exported[e] = true
	}
	for i := range fa.Functions {
		fn := &fa.Functions[i]
		if exported[fn.Name] {
			fn.Exported = true
			continue
		}
		// export keyword on, or adjacent to, the definition line
		for ln := fn.StartLine - 1; ln <= fn.StartLine+1; ln++ {
			if ln < 1 || ln > len(lines) {
				continue
			}
			l := lines[ln-1]
			if strings.Contains(l, "export ") || strings.Contains(l, "module.exports") ||
				strings.Contains(l, "exports."+fn.Name) {
				fn.Exported = true
				break
			}
		}
	}
}

// braceImbalance reports a gross mismatch between opening and closing braces.
// A couple of stray braces (strings, comments) are tolerated.
func braceImbalance(text string) bool {
	opens := strings.Count(text, "{")
	closes := strings.Count(text, "}")
	diff := opens - closes
	if diff < 0 {
		diff = -diff
	}
	if opens == 0 && closes == 0 {
		return false
	}
	slack := 2
	if opens/10 > slack {
		slack = opens / 10
	}
	return diff > slack
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
