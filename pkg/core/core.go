package core

import (
	"github.com/hashicorp/go-hclog"

	"github.com/malscan/malscan/internal/catalog"
	"github.com/malscan/malscan/internal/engine"
	"github.com/malscan/malscan/internal/report"
	"github.com/malscan/malscan/internal/types"
)

// Re-export selected internal types as a stable public API surface.
// These are type aliases so external consumers can depend on a stable path.
// We can replace these with decoupled structs later without breaking callers.
type (
	Config            = engine.Config
	Result            = engine.Result
	Finding           = types.Finding
	CorrelationRecord = types.CorrelationRecord
	Severity          = types.Severity
	Report            = report.Report
)

// Scan runs a full scan with the embedded catalog and returns the findings.
func Scan(cfg Config) ([]Finding, error) {
	cat, err := catalog.Default(logger(cfg))
	if err != nil {
		return nil, err
	}
	return engine.Scan(cat, cfg)
}

// ScanWithStats runs a full scan with the embedded catalog and returns the
// findings together with scan statistics.
func ScanWithStats(cfg Config) (Result, error) {
	cat, err := catalog.Default(logger(cfg))
	if err != nil {
		return Result{}, err
	}
	return engine.ScanWithStats(cat, cfg)
}

// ScanReport runs a full scan and builds the summarized report: findings plus
// risk score, verdict and severity counts.
func ScanReport(cfg Config) (Report, error) {
	res, err := ScanWithStats(cfg)
	if err != nil {
		return Report{}, err
	}
	return report.Build(cfg.Root, res.FilesScanned, res.Duration, res.Findings), nil
}

// Verdict maps a 0-100 risk score onto the recommendation string.
func Verdict(score int) string { return report.Verdict(score) }

// CatalogCategories returns the category names of the embedded catalog.
func CatalogCategories() []string {
	cat, err := catalog.Default(hclog.NewNullLogger())
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(cat.Categories))
	for _, c := range cat.Categories {
		names = append(names, c.Name)
	}
	return names
}

func logger(cfg Config) hclog.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return hclog.NewNullLogger()
}
