package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/arda-labs/reorder-cli/internal/model"
	"github.com/arda-labs/reorder-cli/internal/suppliers"
)

var suppliersDiscoveredFile string

var suppliersCmd = &cobra.Command{
	Use:   "suppliers",
	Short: "Merge discovered suppliers with the priority catalog",
	Long:  "Reads discovered suppliers (JSON produced by the discovery service), canonicalizes domains, merges duplicates with the priority list, and prints the selectable supplier table. The marketplace domain is excluded; it has its own job category.",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}

		var discovered []model.DiscoveredSupplier
		if suppliersDiscoveredFile != "" {
			data, err := os.ReadFile(suppliersDiscoveredFile)
			if err != nil {
				return eris.Wrap(err, "read discovered suppliers")
			}
			if err := json.Unmarshal(data, &discovered); err != nil {
				return eris.Wrap(err, "parse discovered suppliers")
			}
		}

		merged := suppliers.Merge(catalog, discovered)

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DOMAIN\tNAME\tCATEGORY\tSCORE\tEMAILS\tRECOMMENDED\tSAMPLE SUBJECTS")
		for _, s := range merged {
			rec := ""
			if s.IsRecommended {
				rec = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%d\t%s\t%s\n",
				s.Domain, s.DisplayName, s.Category, s.Score, s.EmailCount, rec,
				strings.Join(s.SampleSubjects, "; "))
		}
		return w.Flush()
	},
}

func init() {
	suppliersCmd.Flags().StringVar(&suppliersDiscoveredFile, "discovered", "", "path to discovered suppliers JSON")
	rootCmd.AddCommand(suppliersCmd)
}
