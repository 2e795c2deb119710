package malscan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/malscan/malscan/internal/engine"
	"github.com/malscan/malscan/internal/report"
)

func init() {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage baselines",
	}

	var path string
	var out string
	update := &cobra.Command{
		Use:   "update",
		Short: "Accept current findings as the baseline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			abs, _ := filepath.Abs(path)
			cat, err := loadCatalog("", newLogger())
			if err != nil {
				return err
			}
			findings, err := engine.Scan(cat, engine.Config{Root: abs, Threads: flagThreads, DefaultExcludes: true})
			if err != nil {
				return err
			}
			if err := report.SaveBaseline(out, findings); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Baseline updated: %d findings accepted.\n", len(findings))
			return nil
		},
	}
	update.Flags().StringVarP(&path, "path", "p", ".", "path to scan")
	update.Flags().StringVar(&out, "out", ".malscan-baseline.json", "baseline file to write")

	rootCmd.AddCommand(cmd)
	cmd.AddCommand(update)
}
