package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"anatomap/internal/tasks"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var taskFlag string
	var targetFlags []string
	var nameFlag string

	cmd := &cobra.Command{
		Use:   "run <input-volume>",
		Short: "Segment a CT volume and reconcile the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}

			store, err := ctx.openRunLog(cfg)
			if err != nil {
				return fmt.Errorf("open run log: %w", err)
			}
			if store != nil {
				defer store.Close()
			}

			eng, err := ctx.newEngine(cfg, logger, store)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summary, err := eng.Run(runCtx, engineRequest(args[0], taskFlag, targetFlags, nameFlag))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Run %s finished in %s\n", summary.RunID, summary.Elapsed.Round(summaryRounding))
			for _, outcome := range summary.Outcomes {
				fmt.Fprintln(out, renderOutcomeLine(outcome.TaskID, outcome.TaskTitle, outcome.Status, outcome.Segments, colorize))
			}
			fmt.Fprintf(out, "Containers: %d  Segments: %d\n", summary.Containers, summary.Segments)
			if summary.WorkspaceDir != "" {
				fmt.Fprintf(out, "Workspace kept at %s\n", summary.WorkspaceDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&taskFlag, "task", "t", tasks.CompositeID, "Task id to run, or \"all\"")
	cmd.Flags().StringArrayVar(&targetFlags, "target", nil, "Restrict output to this display label (repeatable)")
	cmd.Flags().StringVar(&nameFlag, "name", "", "Destination container name")
	return cmd
}
