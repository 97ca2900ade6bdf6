package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Show the spreadsheet source locators",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		src := e.app.Sources()
		fmt.Printf("lunch:   %s\ndinner:  %s\nhistory: %s\nsave:    %s\n", src.Lunch, src.Dinner, src.History, src.SaveURL)
		return nil
	},
}

var (
	setLunch   string
	setDinner  string
	setHistory string
	setSaveURL string
)

var sourcesSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Persist new source locators",
	Long: `Each locator is a URL, a tab id of the configured spreadsheet, or a file.
Only the flags given are changed. An empty value restores the locator from
the environment or config file.

Example:
  nutriplan sources set --lunch 0 --dinner 438085558 --history 1926889222`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		src := e.app.Sources()
		flags := cmd.Flags()
		if flags.Changed("lunch") {
			src.Lunch = setLunch
		}
		if flags.Changed("dinner") {
			src.Dinner = setDinner
		}
		if flags.Changed("history") {
			src.History = setHistory
		}
		if flags.Changed("save-url") {
			src.SaveURL = setSaveURL
		}
		if err := e.app.UpdateSources(cmd.Context(), src); err != nil {
			return err
		}
		fmt.Println("Sources saved")
		src = e.app.Sources()
		fmt.Printf("lunch:   %s\ndinner:  %s\nhistory: %s\nsave:    %s\n", src.Lunch, src.Dinner, src.History, src.SaveURL)
		return nil
	},
}

func init() {
	sourcesSetCmd.Flags().StringVar(&setLunch, "lunch", "", "Lunch table locator")
	sourcesSetCmd.Flags().StringVar(&setDinner, "dinner", "", "Dinner table locator")
	sourcesSetCmd.Flags().StringVar(&setHistory, "history", "", "Plan history table locator")
	sourcesSetCmd.Flags().StringVar(&setSaveURL, "save-url", "", "Endpoint that receives saved plans")
	sourcesCmd.AddCommand(sourcesSetCmd)
}
