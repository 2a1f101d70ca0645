package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.ensureClient()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon running: %v (pid %d, %d worker(s))\n", status.Running, status.PID, status.Workers)
			fmt.Fprintf(out, "Database: %s\n", status.Database)
			if status.LastErr != "" {
				fmt.Fprintf(out, "Last error: %s\n", status.LastErr)
			}

			if len(status.Queue) == 0 {
				fmt.Fprintln(out, "Queue is empty.")
				return nil
			}
			statuses := make([]string, 0, len(status.Queue))
			for name := range status.Queue {
				statuses = append(statuses, name)
			}
			sort.Strings(statuses)
			rows := make([][]string, 0, len(statuses))
			for _, name := range statuses {
				rows = append(rows, []string{name, fmt.Sprint(status.Queue[name])})
			}
			fmt.Fprintln(out, renderTable([]string{"Status", "Tasks"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Queue maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Show task database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.ensureClient()
			if err != nil {
				return err
			}
			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database: %s\n", health.DBPath)
			fmt.Fprintf(out, "Exists: %v  Readable: %v  Table: %v  Integrity: %v\n",
				health.DatabaseExists, health.DatabaseReadable, health.TableExists, health.IntegrityCheck)
			if health.DatabaseError != "" {
				fmt.Fprintf(out, "Error: %s\n", health.DatabaseError)
			}
			fmt.Fprintf(out, "Tasks: %d total, %d pending, %d generating, %d awaiting approval, %d failed, %d completed, %d published\n",
				health.Total, health.Pending, health.Generating, health.AwaitingApproval,
				health.Failed, health.Completed, health.Published)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear-completed",
		Short: "Remove completed and published tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.ensureClient()
			if err != nil {
				return err
			}
			count, err := client.ClearCompleted(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d task(s)\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear-failed",
		Short: "Remove failed tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.ensureClient()
			if err != nil {
				return err
			}
			count, err := client.ClearFailed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d task(s)\n", count)
			return nil
		},
	})

	return cmd
}
