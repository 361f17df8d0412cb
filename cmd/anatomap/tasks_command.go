package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"anatomap/internal/logging"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List available segmentation tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			eng, err := ctx.newEngine(cfg, logging.NewNop(), nil)
			if err != nil {
				return err
			}

			registry := eng.Registry()
			rows := make([][]string, 0, len(registry.IDs()))
			for _, id := range registry.IDs() {
				task, _ := registry.Get(id)
				targets := ""
				if !task.IsComposite() {
					labels, err := eng.Targets(id)
					if err != nil {
						return err
					}
					targets = strconv.Itoa(len(labels))
				} else {
					targets = fmt.Sprintf("%d subtasks", len(task.Subtasks))
				}
				rows = append(rows, []string{task.ID, task.Title, targets})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Task", "Title", "Targets"},
				rows,
				3,
			))
			return nil
		},
	}
}
