// Package audit keeps a local JSONL history of scans for later review.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/malscan/malscan/internal/gitmeta"
	"github.com/malscan/malscan/internal/types"
)

// ScanRecord is one line of the audit log.
type ScanRecord struct {
	Timestamp      time.Time         `json:"timestamp"`
	ScanID         string            `json:"scan_id"`
	Root           string            `json:"root"`
	Repo           *gitmeta.Metadata `json:"repo,omitempty"`
	TotalFindings  int               `json:"total_findings"`
	NewFindings    int               `json:"new_findings"`
	BaselinedCount int               `json:"baselined_count"`
	RiskScore      int               `json:"risk_score"`
	Verdict        string            `json:"verdict"`
	SeverityCounts map[string]int    `json:"severity_counts"`
	FilesScanned   int               `json:"files_scanned"`
	Duration       string            `json:"duration"`
	BaselineFile   string            `json:"baseline_file,omitempty"`
	TopFindings    []FindingSummary  `json:"top_findings,omitempty"`
}

// FindingSummary is the compact per-finding shape stored in the log.
type FindingSummary struct {
	Path     string `json:"path"`
	Category string `json:"category"`
	Matcher  string `json:"matcher"`
	Severity string `json:"severity"`
	Line     int    `json:"line"`
}

type AuditLog struct {
	logPath string
}

// NewAuditLog places the log under .git when the root is a repository so the
// log never shows up in working-tree scans of other tools.
func NewAuditLog(root string) *AuditLog {
	gitDir := filepath.Join(root, ".git")
	logPath := filepath.Join(root, ".malscan_audit.jsonl")
	if st, err := os.Stat(gitDir); err == nil && st.IsDir() {
		logPath = filepath.Join(gitDir, "malscan_audit.jsonl")
	}
	return &AuditLog{logPath: logPath}
}

// LoadHistory returns the recorded scans, newest first. Corrupt lines are
// skipped.
func (a *AuditLog) LoadHistory() ([]ScanRecord, error) {
	f, err := os.Open(a.logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []ScanRecord
	decoder := json.NewDecoder(f)
	for decoder.More() {
		var record ScanRecord
		if err := decoder.Decode(&record); err != nil {
			continue
		}
		records = append(records, record)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func (a *AuditLog) LogScan(record ScanRecord) error {
	if record.ScanID == "" {
		record.ScanID = uuid.NewString()
	}

	// Owner-only: the log carries finding locations and evidence snippets.
	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	if err := encoder.Encode(record); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// DeleteRecord removes the record at the given newest-first index.
func (a *AuditLog) DeleteRecord(index int) error {
	records, err := a.LoadHistory()
	if err != nil {
		return err
	}

	if index < 0 || index >= len(records) {
		return fmt.Errorf("invalid index: %d", index)
	}

	records = append(records[:index], records[index+1:]...)

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	f, err := os.Create(a.logPath)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("failed to write audit record: %w", err)
		}
	}
	return nil
}

// CreateScanRecord builds a record from a finished scan. Severity counts use
// the effective severity so the log agrees with the rendered report.
func CreateScanRecord(
	root string,
	allFindings []types.Finding,
	newFindings []types.Finding,
	filesScanned int,
	duration time.Duration,
	riskScore int,
	verdict string,
	baselineFile string,
) ScanRecord {
	severityCounts := make(map[string]int)
	for _, f := range allFindings {
		severityCounts[string(f.EffectiveSeverity())]++
	}

	topFindings := make([]FindingSummary, 0, 10)
	for i, f := range newFindings {
		if i >= 10 {
			break
		}
		topFindings = append(topFindings, FindingSummary{
			Path:     f.Path,
			Category: f.Category,
			Matcher:  f.Matcher,
			Severity: string(f.EffectiveSeverity()),
			Line:     f.Line,
		})
	}

	rec := ScanRecord{
		Timestamp:      time.Now(),
		Root:           root,
		TotalFindings:  len(allFindings),
		NewFindings:    len(newFindings),
		BaselinedCount: len(allFindings) - len(newFindings),
		RiskScore:      riskScore,
		Verdict:        verdict,
		SeverityCounts: severityCounts,
		FilesScanned:   filesScanned,
		Duration:       duration.String(),
		BaselineFile:   baselineFile,
		TopFindings:    topFindings,
	}
	if meta, ok := gitmeta.Describe(root); ok {
		rec.Repo = &meta
	}
	return rec
}
