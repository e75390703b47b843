package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"flockcore/internal/classify"
	"flockcore/internal/derive"
	"flockcore/internal/flock"
)

func newListCmd() *cobra.Command {
	var (
		tab       string
		sortField string
		desc      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the flock",
		Long: "Lists animals, optionally narrowed to a dashboard tab " +
			"(all, active-ewes, active-rams, current-lambs, culled, to-be-culled, sold, archived).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc *flock.Service) error {
				sheep, err := svc.ListSheep(cmd.Context(), tab, classify.SortState{Field: sortField, Asc: !desc})
				if err != nil {
					return fmt.Errorf("listing flock: %w", err)
				}
				if len(sheep) == 0 {
					fmt.Println("No sheep found.")
					return nil
				}
				now := svc.Repo().Now()
				for _, s := range sheep {
					fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
						s.ID, s.Name, s.Sex, derive.DisplayAge(s, now), s.Status)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&tab, "tab", "t", "", "Dashboard tab to filter by")
	cmd.Flags().StringVarP(&sortField, "sort", "s", "", "Sort field (name, age, weight, expectedDueDate, ...)")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")

	return cmd
}
