package classify

import "testing"

func TestIsTestLike_PathKeywords(t *testing.T) {
	l := Default()
	cases := map[string]bool{
		"src/app.js":              false,
		"test/app.js":             true,
		"src/user_test.js":        true,
		"src/latest.js":           false, // "test" must be a token, not a substring
		"examples/run.js":         true,
		"demo/payload.js":         true,
		"lib/protester.js":        false,
		"specs/parser.spec.ts":    true,
		"src/mock-server/http.js": true,
	}
	for p, want := range cases {
		if got := l.IsTestLike(p, nil); got != want {
			t.Errorf("IsTestLike(%q)=%v want %v", p, got, want)
		}
	}
}

func TestIsTestLike_ContentMarkers(t *testing.T) {
	l := Default()
	if !l.IsTestLike("src/app.js", []byte("// This is a TEST fixture, for testing purposes only\n")) {
		t.Fatal("content marker should classify file as test-like")
	}
	if l.IsTestLike("src/app.js", []byte("const x = 1\n")) {
		t.Fatal("plain code must not be test-like")
	}
}

func TestFixtureDirNeverSuppressed(t *testing.T) {
	l := Default()
	// even with "test" in the file name, fixture dirs win
	if l.IsTestLike("malicious-fixtures/test_payload.js", nil) {
		t.Fatal("fixture path must not be classified test-like")
	}
	if !l.IsFixturePath("corpus/malware-samples/dropper.js") {
		t.Fatal("expected fixture path")
	}
	if l.IsFixturePath("src/malware-samples.js") {
		t.Fatal("fixture match applies to directory segments only")
	}
}

func TestIsConfigPath(t *testing.T) {
	l := Default()
	cases := map[string]bool{
		"app/config.js":      true,
		"settings.py":        true,
		".env":               true,
		"deploy/prod.yaml":   true,
		"src/index.js":       false,
		"docs/README.md":     false,
		"etc/service.conf":   true,
		"app/userconfig.ts":  true,
		"pkg/configure.json": true,
	}
	for p, want := range cases {
		if got := l.IsConfigPath(p); got != want {
			t.Errorf("IsConfigPath(%q)=%v want %v", p, got, want)
		}
	}
}

func TestImportsTestFramework(t *testing.T) {
	l := Default()
	if !l.ImportsTestFramework([]string{"react", "@types/jest"}) {
		t.Fatal("expected jest to be recognized")
	}
	if l.ImportsTestFramework([]string{"express", "lodash"}) {
		t.Fatal("unexpected framework match")
	}
}

func TestMergedFillsEmptyLists(t *testing.T) {
	l := Lists{FixtureDirs: []string{"red-team"}}.Merged()
	if len(l.TestPathKeywords) == 0 || len(l.ConfigSuffixes) == 0 {
		t.Fatal("Merged must fill empty lists with defaults")
	}
	if l.FixtureDirs[0] != "red-team" {
		t.Fatal("Merged must keep overridden lists")
	}
}
