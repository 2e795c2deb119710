package malscan

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/malscan/malscan/internal/audit"
)

func init() {
	var path string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded scans for a repository, newest first",
		RunE: func(_ *cobra.Command, _ []string) error {
			abs, _ := filepath.Abs(path)
			records, err := audit.NewAuditLog(abs).LoadHistory()
			if err != nil {
				return fmt.Errorf("no scan history: %w", err)
			}
			for i, r := range records {
				fmt.Printf("%3d  %s  risk %3d/100  %-14s  %d findings (%d new) in %d files  [%s]\n",
					i, r.Timestamp.Format("2006-01-02 15:04:05"), r.RiskScore, r.Verdict,
					r.TotalFindings, r.NewFindings, r.FilesScanned, r.ScanID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", ".", "repository path")

	var delPath string
	del := &cobra.Command{
		Use:   "delete <index>",
		Short: "Delete one record by its history index",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index: %s", args[0])
			}
			abs, _ := filepath.Abs(delPath)
			return audit.NewAuditLog(abs).DeleteRecord(idx)
		},
	}
	del.Flags().StringVarP(&delPath, "path", "p", ".", "repository path")

	rootCmd.AddCommand(cmd)
	cmd.AddCommand(del)
}
