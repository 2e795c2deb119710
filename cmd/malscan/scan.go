package malscan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/malscan/malscan/internal/audit"
	"github.com/malscan/malscan/internal/catalog"
	"github.com/malscan/malscan/internal/config"
	"github.com/malscan/malscan/internal/engine"
	"github.com/malscan/malscan/internal/report"
	"github.com/malscan/malscan/internal/types"
	"github.com/malscan/malscan/internal/update"
)

var (
	flagPath     string
	flagInclude  string
	flagExclude  string
	flagMaxBytes int64
	flagCatalog  string
	flagBaseline string
	flagNoAudit  bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a directory or file for malicious code indicators",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScan,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVarP(&flagPath, "path", "p", ".", "path to scan")
	cmd.Flags().StringVar(&flagInclude, "include", "", "comma-separated include globs")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "comma-separated exclude globs")
	cmd.Flags().Int64Var(&flagMaxBytes, "max-bytes", 0, "skip files larger than this (0 = built-in limit)")
	cmd.Flags().StringVar(&flagCatalog, "catalog", "", "pattern catalog YAML replacing the embedded one")
	cmd.Flags().StringVar(&flagBaseline, "baseline", "", "baseline file of accepted findings")
	cmd.Flags().BoolVar(&flagNoAudit, "no-audit", false, "do not append this scan to the audit log")
}

func runScan(cmd *cobra.Command, args []string) error {
	target := flagPath
	if len(args) == 1 {
		target = args[0]
	}
	abs, _ := filepath.Abs(target)

	// CLI > local file > global file
	var gcfg, lcfg config.FileConfig
	if c, err := config.LoadGlobal(); err == nil {
		gcfg = c
	}
	if c, err := config.LoadLocal(abs); err == nil {
		lcfg = c
	}

	log := newLogger()
	cat, err := loadCatalog(pickString(flagCatalog, lcfg.Catalog, gcfg.Catalog), log)
	if err != nil {
		return err
	}

	cfg := engine.Config{
		Root:            abs,
		IncludeGlobs:    pickString(flagInclude, lcfg.Include, gcfg.Include),
		ExcludeGlobs:    pickString(flagExclude, lcfg.Exclude, gcfg.Exclude),
		MaxBytes:        pickInt64(flagMaxBytes, lcfg.MaxBytes, gcfg.MaxBytes),
		Threads:         pickInt(flagThreads, lcfg.Threads, gcfg.Threads),
		DefaultExcludes: flagDefaultExcludes,
		NoCache:         pickBool(flagNoCache, lcfg.NoCache, gcfg.NoCache),
		Logger:          log,
	}
	noColor := pickBool(flagNoColor, lcfg.NoColor, gcfg.NoColor) || !stdoutIsTerminal()

	if !flagJSON && !flagSARIF {
		if !flagNoUpdateCheck {
			if latest, newer, _ := update.Check(version, false); newer && latest != "" {
				fmt.Fprintf(os.Stderr, "(new version available: v%s)  run 'malscan update' to upgrade\n", latest)
			}
		}
		fmt.Fprintf(os.Stderr, "Scanning %s...\n", abs)
		scanned := 0
		cfg.Progress = func() {
			scanned++
			if scanned%25 == 0 {
				fmt.Fprintf(os.Stderr, "\r%d files", scanned)
			}
		}
	}

	res, err := engine.ScanWithStats(cat, cfg)
	if err != nil {
		return fmt.Errorf("scan error: %w", err)
	}
	if !flagJSON && !flagSARIF {
		fmt.Fprint(os.Stderr, "\r")
	}

	findings := res.Findings
	baselinePath := pickString(flagBaseline, lcfg.Baseline, gcfg.Baseline)
	if baselinePath != "" {
		if base, err := report.LoadBaseline(baselinePath); err == nil {
			findings = report.FilterNewFindings(findings, base)
		} else {
			fmt.Fprintln(os.Stderr, "baseline warning:", err)
		}
	}
	if findings == nil {
		findings = []types.Finding{}
	} // no `null` in JSON

	rep := report.Build(abs, res.FilesScanned, res.Duration, findings)

	switch {
	case flagSARIF:
		if err := report.WriteSARIF(os.Stdout, rep); err != nil {
			return fmt.Errorf("sarif error: %w", err)
		}
	case flagJSON:
		if err := report.WriteJSON(os.Stdout, rep); err != nil {
			return err
		}
	default:
		report.PrintTable(os.Stdout, rep, report.PrintOptions{NoColor: noColor, Correlations: true})
	}

	if !flagNoAudit {
		if st, err := os.Stat(abs); err == nil && st.IsDir() {
			rec := audit.CreateScanRecord(abs, res.Findings, findings, res.FilesScanned,
				res.Duration, rep.Summary.RiskScore, rep.Summary.Verdict, baselinePath)
			if err := audit.NewAuditLog(abs).LogScan(rec); err != nil {
				log.Debug("audit log failed", "error", err)
			}
		}
	}

	failOn := pickString(flagFailOn, lcfg.FailOn, gcfg.FailOn)
	if code := exitCode(findings, failOn); code != 0 {
		os.Exit(code)
	}
	return nil
}

// exitCode is the severity-driven process status, with the optional fail-on
// gate lowering the threshold for CI.
func exitCode(findings []types.Finding, failOnStr string) int {
	code := report.ExitCode(findings)
	failOn := types.Severity(failOnStr)
	if code == 0 && failOn.Valid() {
		for _, f := range findings {
			if f.EffectiveSeverity().AtLeast(failOn) {
				return 1
			}
		}
	}
	return code
}

func loadCatalog(path string, log hclog.Logger) (*catalog.Catalog, error) {
	if path != "" {
		return catalog.Load(path, log)
	}
	return catalog.Default(log)
}

func newLogger() hclog.Logger {
	level := hclog.Warn
	if flagVerbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "malscan",
		Level:  level,
		Output: os.Stderr,
	})
}
