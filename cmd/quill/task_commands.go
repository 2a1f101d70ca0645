package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"quill/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		taskType         string
		style            string
		tone             string
		length           int
		tags             []string
		categories       []string
		requiresApproval bool
		autoPublish      bool
	)

	cmd := &cobra.Command{
		Use:   "submit <topic>",
		Short: "Submit a new content task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.ensureClient()
			if err != nil {
				return err
			}
			created, err := client.Submit(cmd.Context(), api.SubmitRequest{
				Type:             taskType,
				Topic:            strings.Join(args, " "),
				Style:            style,
				Tone:             tone,
				TargetLength:     length,
				Tags:             tags,
				Categories:       categories,
				RequiresApproval: requiresApproval,
				AutoPublish:      autoPublish,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted task %s (%s)\n", created.ID, created.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&taskType, "type", "t", "article", "Task type (article, blog_post, newsletter, social_post)")
	cmd.Flags().StringVar(&style, "style", "", "Writing style")
	cmd.Flags().StringVar(&tone, "tone", "", "Writing tone")
	cmd.Flags().IntVarP(&length, "length", "l", 0, "Target length in words")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "Category (repeatable)")
	cmd.Flags().BoolVar(&requiresApproval, "requires-approval", false, "Hold the task for human approval")
	cmd.Flags().BoolVar(&autoPublish, "auto-publish", false, "Publish automatically once generated")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var showContent bool

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task's status and output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.ensureClient()
			if err != nil {
				return err
			}
			view, err := client.Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTaskDetail(view))
			if showContent && view.Content != "" {
				fmt.Fprintf(out, "\n%s\n", view.Content)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showContent, "content", false, "Print the generated content")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		taskType string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.ensureClient()
			if err != nil {
				return err
			}
			tasks, err := client.List(cmd.Context(), statuses, taskType, limit)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks found.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTaskTable(tasks))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVarP(&taskType, "type", "t", "", "Filter by task type")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of tasks")
	return cmd
}

func newApproveCommand(ctx *commandContext) *cobra.Command {
	return newActionCommand(ctx, "approve", "Approve a task awaiting review")
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	return newActionCommand(ctx, "reject", "Reject a task awaiting review")
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return newActionCommand(ctx, "cancel", "Cancel a pending or on-hold task")
}

func newHoldCommand(ctx *commandContext) *cobra.Command {
	return newActionCommand(ctx, "hold", "Pause an in-flight task")
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return newActionCommand(ctx, "resume", "Return a held task to the queue")
}

func newActionCommand(ctx *commandContext, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.ensureClient()
			if err != nil {
				return err
			}
			view, err := client.Action(cmd.Context(), args[0], action)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", view.ID, view.Status)
			return nil
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [task-id]",
		Short: "Retry failed tasks (all, or one by ID)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.ensureClient()
			if err != nil {
				return err
			}
			var count int64
			if len(args) == 1 {
				count, err = client.RetryTask(cmd.Context(), args[0])
			} else {
				count, err = client.RetryAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Retried %d task(s)\n", count)
			return nil
		},
	}
}
