package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"flockcore/internal/flock"
	"flockcore/pkg/domain"
)

func newAddCmd() *cobra.Command {
	var sheep domain.Sheep
	var sex string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new animal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc *flock.Service) error {
				sheep.Sex = domain.NormalizeSex(sex)
				created, err := svc.CreateSheep(cmd.Context(), sheep)
				if err != nil {
					return fmt.Errorf("adding sheep: %w", err)
				}
				fmt.Printf("Added %s (%s)\n", created.Name, created.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sheep.ID, "id", "", "Tag/id (generated when omitted)")
	cmd.Flags().StringVarP(&sheep.Name, "name", "n", "", "Name")
	cmd.Flags().StringVar(&sheep.Breed, "breed", "", "Breed")
	cmd.Flags().StringVar(&sex, "sex", "", "Sex (ewe/ram, f/m accepted)")
	cmd.Flags().StringVar(&sheep.BirthDate, "birth-date", "", "Birth date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&sheep.Weight, "weight", "", "Weight")
	cmd.Flags().StringVar(&sheep.Sire, "sire", "", "Sire tag or name")
	cmd.Flags().StringVar(&sheep.Dam, "dam", "", "Dam tag or name")
	cmd.Flags().StringVar(&sheep.Notes, "notes", "", "Notes")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change an animal's status (active, culled, sold, archived, died, to-be-culled)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc *flock.Service) error {
				if err := svc.SetStatus(cmd.Context(), args[0], args[1]); err != nil {
					return fmt.Errorf("setting status: %w", err)
				}
				fmt.Printf("Status of %s set to %s\n", args[0], args[1])
				return nil
			})
		},
	}
	return cmd
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Heal drift between per-animal records and the master index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc *flock.Service) error {
				repaired, err := svc.Reconcile(cmd.Context())
				if err != nil {
					return fmt.Errorf("reconciling: %w", err)
				}
				if repaired {
					fmt.Println("Master index repaired.")
				} else {
					fmt.Println("Master index already consistent.")
				}
				return nil
			})
		},
	}
}
