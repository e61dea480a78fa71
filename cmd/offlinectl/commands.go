package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	offline "github.com/c0deZ3R0/go-offline-kit"
	"github.com/c0deZ3R0/go-offline-kit/executor/httpexec"
	"github.com/c0deZ3R0/go-offline-kit/logging"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue depth and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := openLog(cfg)
			if err != nil {
				return err
			}
			defer log.Close()

			actions := log.Load(cmd.Context())
			failed := 0
			for _, a := range actions {
				if a.Attempts >= cfg.Queue.MaxAttempts {
					failed++
				}
			}

			status := offline.ComputeStatus(offline.QualityGood, len(actions), false, false, cfg.Orchestrator.WarningThreshold)
			fmt.Printf("state:    %s\n", status.State)
			fmt.Printf("message:  %s\n", status.Message)
			fmt.Printf("pending:  %d\n", len(actions))
			fmt.Printf("failed:   %d (at attempt ceiling)\n", failed)
			return nil
		},
	}
}

func newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List pending offline actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := openLog(cfg)
			if err != nil {
				return err
			}
			defer log.Close()

			actions := log.Load(cmd.Context())
			if len(actions) == 0 {
				fmt.Println("no pending actions")
				return nil
			}

			for _, a := range actions {
				age := time.Since(a.EnqueuedAt).Round(time.Second)
				fmt.Printf("%s  %-6s  event=%-20s user=%-12s attempts=%d  age=%s\n",
					a.ID, a.Kind, orDash(a.EventID), orDash(a.UserID), a.Attempts, age)
			}
			return nil
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay pending actions against the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Executor.BaseURL == "" {
				return fmt.Errorf("sync requires --backend-url or executor.base_url in the config")
			}

			log, err := openLog(cfg)
			if err != nil {
				return err
			}
			defer log.Close()

			exec := httpexec.NewClient(cfg.Executor.BaseURL, httpexec.WithTimeout(cfg.Executor.Timeout))
			queue := offline.NewQueue(log, exec,
				offline.ConnectivityFunc(func() bool { return true }),
				offline.WithQueueOptions(cfg.QueueOptions()),
				offline.WithQueueLogger(logging.NewLogger(cfg.Logging)),
			)

			result, err := queue.Sync(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("replayed: %d\nfailed:   %d\nskipped:  %d\npruned:   %d\n",
				result.Replayed, result.Failed, result.Skipped, result.Pruned)
			for _, e := range result.Errors {
				fmt.Printf("  error: %v\n", e)
			}
			return nil
		},
	}
}

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove failed and aged actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := openLog(cfg)
			if err != nil {
				return err
			}
			defer log.Close()

			ctx := cmd.Context()
			failed := log.Prune(ctx, offline.AttemptsAtLeast(cfg.Queue.MaxAttempts))
			old := log.Prune(ctx, offline.StaleBefore(time.Now(), cfg.Queue.OldActionAge))
			invalid := log.Prune(ctx, offline.Invalid)

			fmt.Printf("removed %d failed, %d aged, %d invalid; %d remaining\n",
				failed, old, invalid, log.Len(ctx))
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the entire action log unconditionally",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset discards all pending actions; re-run with --yes to confirm")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := openLog(cfg)
			if err != nil {
				return err
			}
			defer log.Close()

			before := log.Len(cmd.Context())
			log.Reset(cmd.Context())
			fmt.Printf("cleared %d action(s)\n", before)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
