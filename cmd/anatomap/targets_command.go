package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"anatomap/internal/logging"
	"anatomap/internal/tasks"
)

func newTargetsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "targets [task]",
		Short: "List the display labels a task can produce",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := tasks.CompositeID
			if len(args) == 1 {
				taskID = args[0]
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			eng, err := ctx.newEngine(cfg, logging.NewNop(), nil)
			if err != nil {
				return err
			}

			labels, err := eng.Targets(taskID)
			if err != nil {
				return err
			}

			// Anatomical labels mix case and punctuation; a collator sorts
			// them the way a human list would.
			collate.New(language.English, collate.IgnoreCase).SortStrings(labels)

			out := cmd.OutOrStdout()
			for _, label := range labels {
				fmt.Fprintln(out, label)
			}
			fmt.Fprintf(out, "%d targets\n", len(labels))
			return nil
		},
	}
}
