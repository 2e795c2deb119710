package classify

import (
	"path/filepath"
	"strings"
)

// Lists holds the keyword and directory lists used by the path classifiers.
// The zero value is unusable; start from Default and override per field via
// the catalog's classifiers section. Keeping these as data rather than inline
// literals lets a deployment tune what counts as test, config or fixture
// content without a rebuild.
type Lists struct {
	// FixtureDirs are path segments reserved for intentionally malicious
	// fixtures. Files under them are never suppressed by the test/example
	// heuristic, whatever their name or content says.
	FixtureDirs []string `yaml:"fixture_dirs"`

	TestPathKeywords   []string `yaml:"test_path_keywords"`
	TestContentMarkers []string `yaml:"test_content_markers"`
	TestFrameworks     []string `yaml:"test_frameworks"`

	ConfigSuffixes     []string `yaml:"config_suffixes"`
	ConfigPathKeywords []string `yaml:"config_path_keywords"`
}

// Default returns the built-in lists.
func Default() Lists {
	return Lists{
		FixtureDirs: []string{
			"malicious-fixtures",
			"malware-samples",
			"attack-fixtures",
			"intentionally-malicious",
			"evil-corpus",
		},
		TestPathKeywords: []string{
			"test", "tests", "spec", "specs", "example", "examples",
			"demo", "demos", "sample", "samples", "mock", "mocks",
		},
		TestContentMarkers: []string{
			"this is a test",
			"for testing purposes",
			"example usage",
			"do not use in production",
		},
		TestFrameworks: []string{
			"jest", "mocha", "chai", "vitest", "jasmine", "ava", "tape",
			"supertest", "pytest", "unittest",
		},
		ConfigSuffixes: []string{
			".json", ".yaml", ".yml", ".toml", ".ini", ".conf", ".cfg", ".env",
		},
		ConfigPathKeywords: []string{
			"config", "settings", "rc.",
		},
	}
}

// Merged returns l with every empty list replaced by the built-in default.
func (l Lists) Merged() Lists {
	d := Default()
	if len(l.FixtureDirs) == 0 {
		l.FixtureDirs = d.FixtureDirs
	}
	if len(l.TestPathKeywords) == 0 {
		l.TestPathKeywords = d.TestPathKeywords
	}
	if len(l.TestContentMarkers) == 0 {
		l.TestContentMarkers = d.TestContentMarkers
	}
	if len(l.TestFrameworks) == 0 {
		l.TestFrameworks = d.TestFrameworks
	}
	if len(l.ConfigSuffixes) == 0 {
		l.ConfigSuffixes = d.ConfigSuffixes
	}
	if len(l.ConfigPathKeywords) == 0 {
		l.ConfigPathKeywords = d.ConfigPathKeywords
	}
	return l
}

// pathSegments splits a slash- or backslash-separated path into lowercase
// segments.
func pathSegments(path string) []string {
	norm := strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
	return strings.Split(norm, "/")
}

// IsFixturePath reports whether any directory segment of path is a reserved
// malicious-fixture directory.
func (l Lists) IsFixturePath(path string) bool {
	segs := pathSegments(path)
	if len(segs) > 0 {
		segs = segs[:len(segs)-1] // directories only
	}
	for _, seg := range segs {
		for _, fix := range l.FixtureDirs {
			if seg == strings.ToLower(fix) {
				return true
			}
		}
	}
	return false
}

// IsTestLike reports whether the path or content marks the file as
// test/example/demo material. Fixture paths are exempt: a file under a
// reserved fixture directory is never test-like, even if its name says so.
func (l Lists) IsTestLike(path string, content []byte) bool {
	if l.IsFixturePath(path) {
		return false
	}
	for _, seg := range pathSegments(path) {
		for _, kw := range l.TestPathKeywords {
			if segmentHasKeyword(seg, kw) {
				return true
			}
		}
	}
	lower := strings.ToLower(string(content))
	for _, marker := range l.TestContentMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// segmentHasKeyword matches kw as a token of seg, where tokens are split on
// dots, dashes and underscores. "test" matches "user_test.js" and "test/" but
// not "latest.js".
func segmentHasKeyword(seg, kw string) bool {
	for _, tok := range strings.FieldsFunc(seg, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	}) {
		if tok == kw {
			return true
		}
	}
	return false
}

// IsConfigPath reports whether path looks like a configuration file, by
// suffix or by a config keyword in its base name.
func (l Lists) IsConfigPath(path string) bool {
	base := strings.ToLower(filepath.Base(strings.ReplaceAll(path, "\\", "/")))
	for _, kw := range l.ConfigPathKeywords {
		if strings.Contains(base, strings.ToLower(kw)) {
			return true
		}
	}
	for _, suf := range l.ConfigSuffixes {
		if strings.HasSuffix(base, suf) {
			return true
		}
	}
	return false
}

// ImportsTestFramework reports whether any import source names a recognized
// test framework module.
func (l Lists) ImportsTestFramework(imports []string) bool {
	for _, imp := range imports {
		mod := strings.ToLower(imp)
		// strip scoped-package and path noise: "@types/jest" -> "jest"
		if i := strings.LastIndexByte(mod, '/'); i >= 0 {
			mod = mod[i+1:]
		}
		for _, fw := range l.TestFrameworks {
			if mod == fw {
				return true
			}
		}
	}
	return false
}
