package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"resyncd/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				printStatus(cmd, status)
				return nil
			})
		},
	}
}

func printStatus(cmd *cobra.Command, status *ipc.StatusResponse) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Running", statusOK, fmt.Sprintf("pid %d", status.PID), colorize))
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	fmt.Fprintln(out, renderStatusLine("Catalog", statusInfo, fmt.Sprintf("%d tracks", status.CatalogTracks), colorize))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Queues", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Priority", queueKind(status.PriorityQueued), strconv.Itoa(status.PriorityQueued)+" queued", colorize))
	fmt.Fprintln(out, renderStatusLine("Standard", queueKind(status.StandardQueued), strconv.Itoa(status.StandardQueued)+" queued", colorize))
	fmt.Fprintln(out)

	if len(status.Workers) > 0 {
		for _, line := range renderSectionHeader("Workers", colorize) {
			fmt.Fprintln(out, line)
		}
		headers := []string{"Queue", "Worker", "State", "Job", "User", "Elapsed", "Processed"}
		rows := make([][]string, 0, len(status.Workers))
		for _, worker := range status.Workers {
			state := "idle"
			job := "-"
			user := "-"
			elapsed := "-"
			if worker.Busy {
				state = "busy"
				if worker.JobPriority {
					state = "busy (priority)"
				}
				job = fmt.Sprintf("%s (%s)", shortID(worker.JobID), worker.JobKind)
				user = orDash(worker.JobUserID)
				elapsed = elapsedSince(worker.StartedAt)
			}
			rows = append(rows, []string{
				worker.Queue,
				strconv.Itoa(worker.Index),
				state,
				job,
				user,
				elapsed,
				strconv.FormatUint(worker.Processed, 10),
			})
		}
		fmt.Fprintln(out, renderTable(headers, rows))
	}

	if len(status.Dependencies) > 0 {
		for _, line := range renderSectionHeader("Dependencies", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, dep := range status.Dependencies {
			kind := statusOK
			message := dep.Command
			if !dep.Available {
				kind = statusError
				if dep.Optional {
					kind = statusWarn
				}
				message = dep.Detail
			}
			fmt.Fprintln(out, renderStatusLine(dep.Name, kind, message, colorize))
		}
	}
}

func elapsedSince(value string) string {
	started, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return "-"
	}
	return time.Since(started).Round(time.Second).String()
}

func queueKind(depth int) statusKind {
	if depth > 0 {
		return statusInfo
	}
	return statusOK
}
