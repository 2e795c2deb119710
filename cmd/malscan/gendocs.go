package malscan

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// gendocs regenerates the catalog categories section in README.md between
// the markers <!-- BEGIN:CATALOG_CATEGORIES --> and <!-- END:CATALOG_CATEGORIES -->.
func init() {
	cmd := &cobra.Command{
		Use:   "gendocs",
		Short: "Regenerate README catalog categories",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := "README.md"
			b, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			start := []byte("<!-- BEGIN:CATALOG_CATEGORIES -->")
			end := []byte("<!-- END:CATALOG_CATEGORIES -->")
			i := bytes.Index(b, start)
			j := bytes.Index(b, end)
			if i < 0 || j < 0 || j <= i {
				return fmt.Errorf("markers not found in README.md")
			}

			cat, err := loadCatalog("", newLogger())
			if err != nil {
				return err
			}
			var out strings.Builder
			out.WriteString("\nCategories and matchers (run `malscan catalog` for the full, up-to-date list):\n\n")
			for _, c := range cat.Categories {
				names := make([]string, 0, len(c.Matchers))
				for _, m := range c.Matchers {
					names = append(names, m.Name)
				}
				out.WriteString("- " + c.Name + " (" + c.Severity + "):\n")
				out.WriteString("  - " + strings.Join(names, ", ") + "\n")
			}

			var nb bytes.Buffer
			nb.Write(b[:i])
			nb.Write(start)
			nb.WriteString("\n")
			nb.WriteString(out.String())
			nb.Write(end)
			nb.Write(b[j+len(end):])
			return os.WriteFile(path, nb.Bytes(), 0o644)
		},
	}
	rootCmd.AddCommand(cmd)
}
