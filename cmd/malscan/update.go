package malscan

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/malscan/malscan/internal/update"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update malscan to the latest release",
		RunE: func(_ *cobra.Command, _ []string) error {
			latest, newer, err := update.Check(version, false)
			if err == nil && !newer {
				fmt.Fprintln(os.Stderr, "already up to date")
				return nil
			}
			if err := selfUpdate(); err != nil {
				return fmt.Errorf("self-update failed: %w", err)
			}
			if latest != "" {
				fmt.Fprintf(os.Stderr, "updated to v%s\n", latest)
			} else {
				fmt.Fprintln(os.Stderr, "updated to latest release")
			}
			return nil
		},
	}
	rootCmd.AddCommand(cmd)
}
