package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/icuwatch/mortalert/internal/engine"
)

func modelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the alerting models",
		Run: func(cmd *cobra.Command, args []string) {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMETRIC\tCOMPARISON\tWINDOW\tNAME")
			for _, d := range engine.Models() {
				window := "-"
				if d.WindowMonths > 0 {
					window = fmt.Sprintf("%dmo", d.WindowMonths)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Metric, d.Comparison, window, d.DisplayName)
			}
			_ = w.Flush()
		},
	}
}
