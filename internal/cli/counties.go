package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/norway-alerts/pkg/sources"
)

var countiesCmd = &cobra.Command{
	Use:   "counties",
	Short: "List the county ids accepted by county_id",
	RunE: func(_ *cobra.Command, _ []string) error {
		counties, err := sources.LoadCounties()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID\tNAME\n")
		for _, c := range counties {
			fmt.Fprintf(w, "%s\t%s\n", c.ID, c.Name)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(countiesCmd)
}
