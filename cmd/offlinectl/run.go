package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	offline "github.com/c0deZ3R0/go-offline-kit"
	"github.com/c0deZ3R0/go-offline-kit/bridge"
	"github.com/c0deZ3R0/go-offline-kit/config"
	"github.com/c0deZ3R0/go-offline-kit/executor/httpexec"
	"github.com/c0deZ3R0/go-offline-kit/logging"
	"github.com/c0deZ3R0/go-offline-kit/storage/jsonfile"
	"github.com/c0deZ3R0/go-offline-kit/storage/sqlite"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the offline queue service until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Executor.BaseURL == "" {
				return fmt.Errorf("run requires --backend-url or executor.base_url in the config")
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.Logging)
			exec := httpexec.NewClient(cfg.Executor.BaseURL, httpexec.WithTimeout(cfg.Executor.Timeout))

			opts := []offline.ServiceOption{
				offline.WithServiceLogger(logger),
				offline.WithServiceQueueOptions(cfg.QueueOptions()),
				offline.WithServiceOrchestratorOptions(cfg.OrchestratorOptions()),
				offline.WithServiceProberOptions(cfg.ProberOptions()...),
			}

			if cfg.Bridge.WorkerURL != "" {
				notifier := bridge.NewWSNotifier(cfg.Bridge.WorkerURL)
				defer notifier.Close()
				opts = append(opts, offline.WithServiceNotifier(notifier))
			}

			svc := offline.NewService(store, exec, opts...)
			defer svc.Close()

			ctx := cmd.Context()
			if err := svc.Start(ctx); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-sigCh:
					return nil
				case <-ticker.C:
					status := svc.Status(ctx)
					fmt.Printf("[%s] %s\n", status.State, status.Message)
				}
			}
		},
	}
}

// openStore opens the configured durable backend without wrapping it in an
// action log; the service constructs its own log over the store.
func openStore(cfg *config.Config) (offline.Store, error) {
	var (
		store offline.Store
		err   error
	)
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		store, err = sqlite.NewWithDataSource(cfg.Storage.Path)
	default:
		store, err = jsonfile.New(jsonfile.Config{Path: cfg.Storage.Path})
	}
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return store, nil
}
