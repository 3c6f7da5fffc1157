package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/DocScrape/internal/report"
	"github.com/IshaanNene/DocScrape/internal/storage"
)

// summaryCmd creates the "summary" subcommand for inspecting a previous
// run's JSON output.
func summaryCmd() *cobra.Command {
	var sample int
	cmd := &cobra.Command{
		Use:   "summary <file.json>",
		Short: "Summarize a JSON result file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doctors, err := storage.ReadJSON(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			report.Summarize(doctors, sample).Render(os.Stdout)
			return nil
		},
	}
	cmd.Flags().IntVar(&sample, "sample", 3, "number of sample records to show")
	return cmd
}
