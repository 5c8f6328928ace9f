package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"resyncd/internal/ipc"
	"resyncd/internal/jobstore"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "jobs [ID]",
		Short: "List jobs or describe a single job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return describeJob(ctx, cmd, args[0])
			}
			return listJobs(ctx, cmd, statuses)
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (pending, running, completed, failed)")
	return cmd
}

func listJobs(ctx *commandContext, cmd *cobra.Command, statuses []string) error {
	views, err := fetchJobs(ctx, statuses)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(views) == 0 {
		fmt.Fprintln(out, "No jobs recorded")
		return nil
	}
	headers := []string{"ID", "Kind", "Status", "Progress", "Queue", "Created", "Result"}
	fmt.Fprintln(out, renderTable(headers, jobRows(views)))
	return nil
}

func describeJob(ctx *commandContext, cmd *cobra.Command, id string) error {
	var view ipc.JobView
	err := ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.Describe(strings.TrimSpace(id))
		if err != nil {
			return err
		}
		view = resp.Job
		return nil
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", view.ID)
	fmt.Fprintf(out, "Kind:     %s\n", view.Kind)
	fmt.Fprintf(out, "Status:   %s\n", view.Status)
	fmt.Fprintf(out, "Queue:    %s (priority: %s)\n", orDash(view.Queue), yesNo(view.Priority))
	fmt.Fprintf(out, "Progress: %s\n", progressLabel(view))
	if view.OutputPath != "" {
		fmt.Fprintf(out, "Output:   %s\n", view.OutputPath)
	}
	if view.UserMessage != "" {
		fmt.Fprintf(out, "Message:  %s\n", view.UserMessage)
	}
	if view.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    %s\n", view.ErrorMessage)
	}
	return nil
}

// fetchJobs prefers the daemon socket so the listing reflects live queue
// assignments, and falls back to reading the store directly when the
// daemon is offline.
func fetchJobs(ctx *commandContext, statuses []string) ([]ipc.JobView, error) {
	var views []ipc.JobView
	err := ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.Jobs(statuses)
		if err != nil {
			return err
		}
		views = resp.Jobs
		return nil
	})
	if err == nil {
		return views, nil
	}

	cfg, cfgErr := ctx.ensureConfig()
	if cfgErr != nil {
		return nil, err
	}
	store, openErr := jobstore.Open(cfg)
	if openErr != nil {
		return nil, err
	}
	defer store.Close()

	parsed := make([]jobstore.Status, 0, len(statuses))
	for _, status := range statuses {
		if value, ok := jobstore.ParseStatus(status); ok {
			parsed = append(parsed, value)
		}
	}
	records, listErr := store.List(context.Background(), parsed...)
	if listErr != nil {
		return nil, listErr
	}
	views = make([]ipc.JobView, 0, len(records))
	for _, record := range records {
		views = append(views, ipc.FromRecord(record))
	}
	return views, nil
}

func jobRows(views []ipc.JobView) [][]string {
	rows := make([][]string, 0, len(views))
	for _, view := range views {
		rows = append(rows, []string{
			shortID(view.ID),
			view.Kind,
			view.Status,
			progressLabel(view),
			orDash(view.Queue),
			formatCreated(view.CreatedAt),
			jobResult(view),
		})
	}
	return rows
}

func progressLabel(view ipc.JobView) string {
	switch view.Status {
	case string(jobstore.StatusCompleted):
		return "done"
	case string(jobstore.StatusFailed):
		return "failed"
	}
	if view.ProgressStage == "" {
		return "-"
	}
	return fmt.Sprintf("%s %.0f%%", view.ProgressStage, view.ProgressPercent)
}

func jobResult(view ipc.JobView) string {
	switch {
	case view.OutputPath != "":
		return filepath.Base(view.OutputPath)
	case view.UserMessage != "":
		return view.UserMessage
	case view.ErrorMessage != "":
		return view.ErrorMessage
	}
	return "-"
}

func formatCreated(value string) string {
	if value == "" {
		return "-"
	}
	created, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return created.Local().Format("Jan 02 15:04")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
