package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"

	semver "github.com/blang/semver/v4"
	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"

	"github.com/malscan/malscan/internal/classify"
)

//go:embed default.yml
var defaultCatalogYAML []byte

// baseWeight is the starting weight for every threat score before the
// per-category weight and context score are applied.
const baseWeight = 0.5

// Matcher is one named, compiled matching expression. Expressions compile
// with Go's RE2 engine, so externally supplied patterns cannot trigger
// catastrophic backtracking.
type Matcher struct {
	Name string
	Expr *regexp.Regexp
}

// Category groups matchers under a name and a declared base severity.
type Category struct {
	Name     string
	Severity string
	Matchers []Matcher
}

// Indicators are the keyword tables for the whole-file multi-indicator
// heuristics that run independently of per-match scanning.
type Indicators struct {
	InstructionOverride []string `yaml:"instruction_override"`
	EncodingCalls       []string `yaml:"encoding_calls"`
	PrivilegeKeywords   []string `yaml:"privilege_keywords"`
}

// Catalog is the compiled, immutable pattern catalog for one run: categories
// of matchers plus the three side tables (per-category threat weights,
// filename/directory context modifiers, benign phrases). It is loaded once at
// process start and never mutated.
type Catalog struct {
	Version          string
	Categories       []Category
	ThreatWeights    map[string]float64
	ContextModifiers map[string]float64
	BenignPhrases    []string
	Indicators       Indicators
	Classifiers      classify.Lists
}

// BaseWeight returns the starting weight applied to every threat score.
func (c *Catalog) BaseWeight() float64 { return baseWeight }

// Weight returns the threat weight for a category, defaulting to 1.0.
func (c *Catalog) Weight(category string) float64 {
	if w, ok := c.ThreatWeights[category]; ok {
		return w
	}
	return 1.0
}

// on-disk YAML shapes

type fileCatalog struct {
	Version          string                  `yaml:"version"`
	Categories       map[string]fileCategory `yaml:"categories"`
	ThreatWeights    map[string]float64      `yaml:"threat_weights"`
	ContextModifiers map[string]float64      `yaml:"context_modifiers"`
	BenignPhrases    []string                `yaml:"benign_phrases"`
	Indicators       Indicators              `yaml:"indicators"`
	Classifiers      classify.Lists          `yaml:"classifiers"`
}

type fileCategory struct {
	Severity string                 `yaml:"severity"`
	Patterns map[string]filePattern `yaml:"patterns"`
}

type filePattern struct {
	Match string `yaml:"match"`
}

// Load reads and compiles a catalog from a YAML file. Individual matchers
// that fail to compile are dropped with a warning; the load itself only fails
// on unreadable or structurally invalid input.
func Load(path string, log hclog.Logger) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return parse(b, log)
}

// Default compiles the embedded default catalog.
func Default(log hclog.Logger) (*Catalog, error) {
	return parse(defaultCatalogYAML, log)
}

func parse(b []byte, log hclog.Logger) (*Catalog, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	var fc fileCatalog
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if fc.Version != "" {
		if _, err := semver.ParseTolerant(fc.Version); err != nil {
			return nil, fmt.Errorf("catalog version %q: %w", fc.Version, err)
		}
	}

	cat := &Catalog{
		Version:          fc.Version,
		ThreatWeights:    fc.ThreatWeights,
		ContextModifiers: fc.ContextModifiers,
		BenignPhrases:    fc.BenignPhrases,
		Indicators:       fc.Indicators.merged(),
		Classifiers:      fc.Classifiers.Merged(),
	}
	if cat.ThreatWeights == nil {
		cat.ThreatWeights = map[string]float64{}
	}
	if cat.ContextModifiers == nil {
		cat.ContextModifiers = map[string]float64{}
	}

	// Map iteration order is random; sort names so every run sees matchers
	// in the same order.
	catNames := make([]string, 0, len(fc.Categories))
	for name := range fc.Categories {
		catNames = append(catNames, name)
	}
	sort.Strings(catNames)

	for _, name := range catNames {
		raw := fc.Categories[name]
		sev := raw.Severity
		if sev == "" {
			sev = "medium"
		}
		c := Category{Name: name, Severity: sev}

		patNames := make([]string, 0, len(raw.Patterns))
		for pn := range raw.Patterns {
			patNames = append(patNames, pn)
		}
		sort.Strings(patNames)

		for _, pn := range patNames {
			expr, err := regexp.Compile(raw.Patterns[pn].Match)
			if err != nil {
				// Malformed matcher: drop it, keep the catalog usable.
				log.Warn("dropping matcher with invalid expression",
					"category", name, "matcher", pn, "error", err)
				continue
			}
			c.Matchers = append(c.Matchers, Matcher{Name: pn, Expr: expr})
		}
		cat.Categories = append(cat.Categories, c)
	}
	return cat, nil
}

func (in Indicators) merged() Indicators {
	if len(in.InstructionOverride) == 0 {
		in.InstructionOverride = []string{
			"ignore previous instructions",
			"ignore all previous instructions",
			"disregard prior instructions",
			"forget your instructions",
			"you must now",
			"new instructions:",
		}
	}
	if len(in.EncodingCalls) == 0 {
		in.EncodingCalls = []string{
			"atob(", "btoa(", "Buffer.from(", "fromCharCode(",
			"decodeURIComponent(", "unescape(", "base64.b64decode(",
			"base64.b64encode(", "hex.DecodeString(",
		}
	}
	if len(in.PrivilegeKeywords) == 0 {
		in.PrivilegeKeywords = []string{
			"sudo ", "setuid", "setgid", "chmod 777", "chown root",
			"runas", "administrator privileges", "privilege escalation",
		}
	}
	return in
}
