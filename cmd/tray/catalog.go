package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smarteating/tray/internal/app"
	"github.com/smarteating/tray/internal/cafeteria"
	"github.com/smarteating/tray/internal/config"
	"github.com/smarteating/tray/internal/logging"
	"github.com/smarteating/tray/internal/meal"
)

// openClient builds a backend client without the scanner or image cache.
// One-shot commands log to stderr.
func openClient(flags *globalFlags) (*cafeteria.Client, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load tray config: %w", err)
	}
	sink, err := logging.Open("", cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return app.NewClient(cfg, sink.Logger)
}

func newMenuCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "List today's menu and which foods have a scale attached",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(flags)
			if err != nil {
				return err
			}
			page, err := client.FetchMenu(cmd.Context())
			if err != nil {
				return err
			}
			foods := meal.ProcessFoods(page.Data)
			writeFoods(cmd.OutOrStdout(), foods)
			stats := meal.Stats(foods)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d foods, %d active, %d inactive\n", stats.Total, stats.Active, stats.Inactive)
			return nil
		},
	}
}

func newFoodsCmd(flags *globalFlags) *cobra.Command {
	var page, size int
	var all bool
	cmd := &cobra.Command{
		Use:   "foods",
		Short: "List the food catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(flags)
			if err != nil {
				return err
			}
			var foods []meal.Food
			for next := page; next > 0; {
				result, err := client.FetchFoods(cmd.Context(), next, size)
				if err != nil {
					return err
				}
				foods = append(foods, meal.ProcessFoods(result.Data)...)
				if !all {
					break
				}
				next = result.NextPage()
			}
			writeFoods(cmd.OutOrStdout(), foods)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page to fetch")
	cmd.Flags().IntVar(&size, "size", 20, "foods per page")
	cmd.Flags().BoolVar(&all, "all", false, "follow pagination to the last page")
	return cmd
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var page, size int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past meals for the configured user",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(flags)
			if err != nil {
				return err
			}
			result, err := client.FetchMealHistory(cmd.Context(), page, size)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tFOODS\tWEIGHT\tKCAL\tPRICE\tFINISHED")
			for _, snap := range result.Data {
				snap := snap
				processed := meal.Process(&snap)
				created := "-"
				if !processed.CreatedAt.IsZero() {
					created = processed.CreatedAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%.0f\t%.2f\t%t\n",
					processed.ID, created, len(processed.ChartSlices), meal.Grams(processed.TotalWeight),
					processed.TotalCalories, processed.FinalPrice, processed.Finished)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\npage %d of %d (%d meals)\n", result.Options.Page, result.Options.Pages, result.Options.Results)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page to fetch")
	cmd.Flags().IntVar(&size, "size", 10, "meals per page")
	return cmd
}

func writeFoods(out io.Writer, foods []meal.Food) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKCAL\tP\tC\tF\tSCALE")
	for _, food := range foods {
		scale := "-"
		if food.Active {
			scale = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%.0f\t%.1f\t%.1f\t%.1f\t%s\n",
			food.ID, food.Name, food.Calories, food.Protein, food.Carbs, food.Fat, scale)
	}
	_ = w.Flush()
}
