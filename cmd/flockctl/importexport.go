package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"flockcore/internal/blob"
	"flockcore/internal/exporter"
	"flockcore/internal/flock"
)

func newImportCmd() *cobra.Command {
	var (
		overwrite bool
		apply     bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import animals from CSV",
		Long: "Previews a CSV import (New / Update / Create (new id) per row); " +
			"pass --apply to write the changes.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc *flock.Service) error {
				ctx := cmd.Context()
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()

				if !apply {
					preview, err := svc.PreviewImport(ctx, f, overwrite)
					if err != nil {
						return fmt.Errorf("previewing import: %w", err)
					}
					newCount, updateCount := 0, 0
					for _, row := range preview {
						switch row.Action {
						case flock.ActionUpdate:
							updateCount++
						default:
							newCount++
						}
						fmt.Printf("%-16s %s\t%s\n", row.Action, row.ID, row.Row.Sheep.Name)
					}
					fmt.Printf("Rows: %d (new: %d, updates: %d); re-run with --apply to write\n",
						len(preview), newCount, updateCount)
					return nil
				}

				result, err := svc.ImportCSV(ctx, f, overwrite)
				if err != nil {
					return fmt.Errorf("applying import: %w", err)
				}
				fmt.Printf("Import applied: added %d, updated %d\n", result.Added, result.Updated)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Update existing records on id collision")
	cmd.Flags().BoolVar(&apply, "apply", false, "Write the changes instead of previewing")

	return cmd
}

func newTemplateCmd() *cobra.Command {
	var withData bool

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Print the import CSV template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc *flock.Service) error {
				out, err := svc.Template(cmd.Context(), withData)
				if err != nil {
					return fmt.Errorf("rendering template: %w", err)
				}
				fmt.Print(out)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&withData, "with-data", false, "Fill the template with the current flock")

	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		formats []string
		from    string
		to      string
		actor   string
	)

	cmd := &cobra.Command{
		Use:   "export <report-type>",
		Short: "Export a report to the configured blob store",
		Long: "Renders a report and stores the artifacts (csv, json, ics) in the " +
			"blob store selected by FLOCKCORE_BLOB_DRIVER.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc *flock.Service) error {
				ctx := cmd.Context()
				store, err := blob.Open(ctx)
				if err != nil {
					return fmt.Errorf("open blob store: %w", err)
				}

				worker := exporter.NewWorker(svc, store)
				worker.Start()
				defer worker.Stop(context.Background())

				input := exporter.Input{
					ReportType:  args[0],
					RangeStart:  from,
					RangeEnd:    to,
					RequestedBy: actor,
				}
				for _, f := range formats {
					input.Formats = append(input.Formats, exporter.Format(f))
				}
				record, err := worker.Enqueue(ctx, input)
				if err != nil {
					return fmt.Errorf("enqueue export: %w", err)
				}

				record, err = waitForExport(ctx, worker, record.ID)
				if err != nil {
					return err
				}
				for _, artifact := range record.Artifacts {
					loc := artifact.Key
					if artifact.URL != "" {
						loc = artifact.URL
					}
					fmt.Printf("%s\t%d bytes\t%s\n", artifact.Format, artifact.SizeBytes, loc)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&formats, "format", []string{"csv"}, "Artifact formats (csv, json, ics)")
	cmd.Flags().StringVar(&from, "from", "", "Lambing-calendar range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Lambing-calendar range end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&actor, "requested-by", "", "Actor recorded in the export audit trail")

	return cmd
}

func waitForExport(ctx context.Context, worker *exporter.Worker, id string) (exporter.Record, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		record, ok := worker.Get(id)
		if ok {
			switch record.Status {
			case exporter.StatusSucceeded:
				return record, nil
			case exporter.StatusFailed:
				return record, fmt.Errorf("export failed: %s", record.Error)
			}
		}
		select {
		case <-ctx.Done():
			return exporter.Record{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
