package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"flockcore/internal/flock"
)

func newBreedCmd() *cobra.Command {
	var (
		sire string
		date string
	)

	cmd := &cobra.Command{
		Use:   "breed <id>...",
		Short: "Record a breeding for one or more ewes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc *flock.Service) error {
				outcome, err := svc.RecordBreeding(cmd.Context(), args, sire, date)
				if err != nil {
					return fmt.Errorf("recording breeding: %w", err)
				}
				fmt.Printf("Breeding recorded for %d sheep. Expected due date: %s\n",
					outcome.Applied, outcome.ExpectedDueDate)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sire, "sire", "", "Sire tag or name")
	cmd.Flags().StringVar(&date, "date", "", "Bred date (YYYY-MM-DD)")
	cmd.MarkFlagRequired("date")

	return cmd
}

func newLambCmd() *cobra.Command {
	var (
		date  string
		sire  string
		lambs []string
	)

	cmd := &cobra.Command{
		Use:   "lamb <mother-id>",
		Short: "Record a lambing and create the lamb records",
		Long: "Records a lambing for the mother. Each --lamb takes tag[:sex[:weight]]; " +
			"the sire defaults to the mother's last recorded breeding.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc *flock.Service) error {
				input := flock.LambingInput{
					MotherID: args[0],
					Date:     date,
					Sire:     sire,
				}
				for _, spec := range lambs {
					parts := strings.SplitN(spec, ":", 3)
					lamb := flock.LambInput{Tag: parts[0]}
					if len(parts) > 1 {
						lamb.Sex = parts[1]
					}
					if len(parts) > 2 {
						lamb.Weight = parts[2]
					}
					input.Lambs = append(input.Lambs, lamb)
				}
				created, err := svc.RecordLambing(cmd.Context(), input)
				if err != nil {
					return fmt.Errorf("recording lambing: %w", err)
				}
				fmt.Printf("Recorded %d lamb(s) for %s.\n", len(created), args[0])
				for _, id := range created {
					fmt.Printf("  created %s\n", id)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Birth date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&sire, "sire", "", "Sire for this lambing")
	cmd.Flags().StringArrayVar(&lambs, "lamb", nil, "Lamb spec tag[:sex[:weight]] (repeatable)")
	cmd.MarkFlagRequired("date")
	cmd.MarkFlagRequired("lamb")

	return cmd
}

func newSellCmd() *cobra.Command {
	var (
		total  float64
		prices []string
	)

	cmd := &cobra.Command{
		Use:   "sell <id>...",
		Short: "Record a sale, marking animals sold and logging the income",
		Long: "Marks the animals sold and appends income entries to the finance " +
			"ledger. Use --total for one bulk amount, or repeat --price id=amount.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(svc *flock.Service) error {
				input := flock.SaleInput{IDs: args}
				if len(prices) > 0 {
					input.Prices = make(map[string]float64, len(prices))
					for _, spec := range prices {
						id, raw, ok := strings.Cut(spec, "=")
						if !ok {
							return fmt.Errorf("invalid --price %q, want id=amount", spec)
						}
						amount, err := strconv.ParseFloat(raw, 64)
						if err != nil {
							return fmt.Errorf("invalid price for %s: %w", id, err)
						}
						input.Prices[id] = amount
					}
				} else {
					input.Bulk = true
					input.BulkAmount = total
				}
				if err := svc.RecordSale(cmd.Context(), input); err != nil {
					return fmt.Errorf("recording sale: %w", err)
				}
				fmt.Printf("Recorded sale for %d animal(s).\n", len(args))
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&total, "total", 0, "Total bulk sale amount")
	cmd.Flags().StringArrayVar(&prices, "price", nil, "Per-animal price id=amount (repeatable)")

	return cmd
}
