package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"flockcore/internal/flock"
)

func newReportCmd() *cobra.Command {
	var (
		from   string
		to     string
		asCSV  bool
		asICS  bool
		outICS string
	)

	cmd := &cobra.Command{
		Use:   "report <type>",
		Short: "Render a report",
		Long: "Renders one report over the flock. Types: ageAsc, ageDesc, dueDates, " +
			"weightGain, breedingHistory, lambReport, herdReport, ramReport, eweReport, " +
			"sireOffspring, damOffspring, famachaBcs, deathReport, soldReport, cullReport, " +
			"lambingCalendar.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc *flock.Service) error {
				ctx := cmd.Context()
				if asICS {
					feed, err := svc.CalendarICS(ctx, outICS)
					if err != nil {
						return fmt.Errorf("rendering calendar: %w", err)
					}
					fmt.Print(feed)
					return nil
				}
				opts := flock.ReportOptions{RangeStart: from, RangeEnd: to}
				if asCSV {
					out, err := svc.ReportCSV(ctx, args[0], opts)
					if err != nil {
						return fmt.Errorf("rendering report: %w", err)
					}
					fmt.Print(out)
					return nil
				}
				table, err := svc.BuildReport(ctx, args[0], opts)
				if err != nil {
					return fmt.Errorf("rendering report: %w", err)
				}
				if table.Empty != "" {
					fmt.Println(table.Empty)
					return nil
				}
				fmt.Println(strings.Join(table.Columns, "\t"))
				for _, row := range table.Rows {
					fmt.Println(strings.Join(row, "\t"))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Lambing-calendar range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Lambing-calendar range end (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "Emit CSV instead of a table")
	cmd.Flags().BoolVar(&asICS, "ics", false, "Emit the lambing calendar as an iCalendar feed")
	cmd.Flags().StringVar(&outICS, "calendar-name", "", "Calendar title for --ics output")

	return cmd
}
