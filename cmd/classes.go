package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/docextract/internal/docclass"
)

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List the loaded document classes",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadClasses(cfg)
		if err != nil {
			return err
		}
		formatClasses(cmd.OutOrStdout(), reg, cfg.Extraction.DefaultClass)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classesCmd)
}

// formatClasses writes a tabular summary of every class to out.
func formatClasses(out io.Writer, reg *docclass.Registry, defaultClass string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CLASS\tTHRESHOLD\tFIELDS\tCRITICAL\tTIERS")
	_, _ = fmt.Fprintln(w, "-----\t---------\t------\t--------\t-----")

	reg.Each(func(c docclass.Config) {
		name := c.Name
		if name == defaultClass {
			name += " (default)"
		}

		critical := make([]string, 0, len(c.Critical))
		for _, f := range c.CriticalFields() {
			critical = append(critical, string(f))
		}
		tiers := make([]string, len(c.Tiers))
		for i, t := range c.Tiers {
			tiers[i] = fmt.Sprintf("%s=%s/%s", t.Name, t.Provider, t.Model)
		}

		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			name,
			c.QualityThreshold,
			len(c.Fields),
			strings.Join(critical, ","),
			strings.Join(tiers, " "),
		)
	})
	_ = w.Flush()
}
