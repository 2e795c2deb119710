package core

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestScan_Smoke(t *testing.T) {
	cfg := Config{
		Root:    t.TempDir(),
		NoCache: true,
	}
	findings, err := Scan(cfg)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected no findings in empty dir, got %d", len(findings))
	}
	if len(CatalogCategories()) == 0 {
		t.Fatal("expected non-empty catalog categories")
	}
}

func TestScanReport_FlagsSuspiciousFile(t *testing.T) {
	dir := t.TempDir()
	src := "function run(cmd) {\n  eval(cmd)\n}\nmodule.exports = { run }\n"
	if err := os.WriteFile(filepath.Join(dir, "run.js"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	rep, err := ScanReport(Config{Root: dir, NoCache: true})
	if err != nil {
		t.Fatalf("ScanReport error: %v", err)
	}
	if len(rep.Findings) == 0 {
		t.Fatal("expected at least one finding for eval call")
	}
	if rep.Summary.RiskScore <= 0 {
		t.Fatalf("expected positive risk score, got %d", rep.Summary.RiskScore)
	}
	if rep.Summary.Verdict == "" {
		t.Fatal("expected a verdict")
	}

	var buf bytes.Buffer
	if err := MarshalReport(&buf, rep); err != nil {
		t.Fatalf("MarshalReport: %v", err)
	}
}

func TestMarshalUnmarshalFindings(t *testing.T) {
	in := []Finding{{Path: "a.js", Line: 3, Category: "code_execution", Matcher: "eval_call"}}
	var buf bytes.Buffer
	if err := MarshalFindings(&buf, in); err != nil {
		t.Fatal(err)
	}
	out, err := UnmarshalFindings(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Matcher != "eval_call" {
		t.Fatalf("round trip mismatch: %#v", out)
	}
}
