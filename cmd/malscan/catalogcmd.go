package malscan

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List catalog categories and matchers",
		RunE: func(_ *cobra.Command, _ []string) error {
			cat, err := loadCatalog(catalogPath, newLogger())
			if err != nil {
				return err
			}
			for _, c := range cat.Categories {
				fmt.Printf("%s (%s, weight %.1f)\n", c.Name, c.Severity, cat.Weight(c.Name))
				for _, m := range c.Matchers {
					fmt.Printf("  %s\n", m.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "pattern catalog YAML replacing the embedded one")
	rootCmd.AddCommand(cmd)
}
