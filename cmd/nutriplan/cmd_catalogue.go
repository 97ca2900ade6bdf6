package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"nutriplan/internal/catalogue"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reload the dish catalogue from the lunch and dinner sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		dishes, err := e.app.SyncCatalogue(cmd.Context())
		if err != nil {
			return err
		}
		for _, issue := range catalogue.Validate(dishes) {
			fmt.Printf("warning: %s (%s): %s\n", issue.Name, issue.DishID, issue.Kind)
		}
		fmt.Printf("%d dishes loaded\n", len(dishes))
		return nil
	},
}

var dishesQuery string

var dishesCmd = &cobra.Command{
	Use:   "dishes",
	Short: "List the cached dish catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		dishes := e.app.Catalogue()
		if len(dishes) == 0 {
			logger.Info("Catalogue cache is empty, syncing")
			if dishes, err = e.app.SyncCatalogue(cmd.Context()); err != nil {
				return err
			}
		}
		printDishes(catalogue.Search(dishes, dishesQuery))
		return nil
	},
}

func printDishes(dishes []catalogue.Dish) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tMEALS\tRESTRICTION")
	for _, d := range dishes {
		var meals, restriction []string
		if d.CanBeLunch {
			meals = append(meals, string(catalogue.Lunch))
		}
		if d.CanBeDinner {
			meals = append(meals, string(catalogue.Dinner))
		}
		if d.IsSaturdayOnly {
			restriction = append(restriction, "sábado")
		}
		if d.IsSundayOnly {
			restriction = append(restriction, "domingo")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Category, strings.Join(meals, ","), strings.Join(restriction, ","))
	}
	if err := w.Flush(); err != nil {
		logger.Warn("Failed to write output", zap.Error(err))
	}
}

func init() {
	dishesCmd.Flags().StringVarP(&dishesQuery, "query", "q", "", "Filter by name or category")
}
