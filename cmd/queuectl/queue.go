package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/webramesh/email-marketing-sub000/internal/config"
	"github.com/webramesh/email-marketing-sub000/internal/dto"
	"github.com/webramesh/email-marketing-sub000/internal/job"
)

var (
	statsCmd = &cobra.Command{
		Use:   "stats [queue]",
		Short: "Show job counts per queue",
		Args:  cobra.MaximumNArgs(1),
		RunE:  queueStats,
	}

	pauseCmd = &cobra.Command{
		Use:   "pause [queue]",
		Short: "Stop workers from claiming jobs on a queue",
		Args:  cobra.ExactArgs(1),
		RunE:  pauseQueue,
	}

	resumeCmd = &cobra.Command{
		Use:   "resume [queue]",
		Short: "Let workers claim jobs on a paused queue again",
		Args:  cobra.ExactArgs(1),
		RunE:  resumeQueue,
	}

	failedCmd = &cobra.Command{
		Use:   "failed [queue]",
		Short: "List failed jobs on a queue",
		Args:  cobra.ExactArgs(1),
		RunE:  listFailed,
	}

	failedLimit int
)

func init() {
	failedCmd.Flags().IntVarP(&failedLimit, "limit", "n", 20, "Maximum number of jobs to list")
}

func jobService() *job.JobService {
	return job.NewJobService(env.Jobs, env.Queue)
}

func queueStats(cmd *cobra.Command, args []string) error {
	queues := config.AllowedQueues
	if len(args) == 1 {
		queues = args
	}

	svc := jobService()
	var all []dto.QueueCounts
	for _, q := range queues {
		counts, err := svc.QueueStats(cmd.Context(), q)
		if err != nil {
			return fmt.Errorf("failed to read stats for %s: %w", q, err)
		}
		all = append(all, *counts)
	}

	if ok, err := printJSON(all); ok {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "QUEUE\tPAUSED\tWAITING\tACTIVE\tDELAYED\tCOMPLETED\tFAILED")
	for _, c := range all {
		fmt.Fprintf(w, "%s\t%t\t%d\t%d\t%d\t%d\t%d\n", c.Queue, c.Paused, c.Waiting, c.Active, c.Delayed, c.Completed, c.Failed)
	}
	return w.Flush()
}

func pauseQueue(cmd *cobra.Command, args []string) error {
	if err := jobService().PauseQueue(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to pause %s: %w", args[0], err)
	}
	fmt.Printf("Queue %s paused\n", args[0])
	return nil
}

func resumeQueue(cmd *cobra.Command, args []string) error {
	if err := jobService().ResumeQueue(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to resume %s: %w", args[0], err)
	}
	fmt.Printf("Queue %s resumed\n", args[0])
	return nil
}

func listFailed(cmd *cobra.Command, args []string) error {
	jobs, err := jobService().ListJobs(cmd.Context(), args[0], config.JobStatusFailed, failedLimit)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if ok, err := printJSON(jobs); ok {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("No failed jobs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tATTEMPTS\tFINISHED\tERROR")
	for _, j := range jobs {
		finished := "-"
		if j.FinishedAt != nil {
			finished = j.FinishedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%d/%d\t%s\t%s\n", j.ID, j.Type, j.Attempts, j.MaxAttempts, finished, j.Error)
	}
	return w.Flush()
}
