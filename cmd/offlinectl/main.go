// Command offlinectl inspects and maintains a durable offline action log:
// queue status, pending actions, manual replay and emergency cleanup.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	offline "github.com/c0deZ3R0/go-offline-kit"
	"github.com/c0deZ3R0/go-offline-kit/config"
	"github.com/c0deZ3R0/go-offline-kit/logging"
)

var (
	cfgPath    string
	storePath  string
	backend    string
	backendURL string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "offlinectl",
		Short:         "Inspect and maintain an offline action queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&storePath, "store", "", "action log path (overrides config)")
	root.PersistentFlags().StringVar(&backend, "backend", "", "storage backend: jsonfile or sqlite (overrides config)")
	root.PersistentFlags().StringVar(&backendURL, "backend-url", "", "remote events API base URL (overrides config)")

	root.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newPendingCmd(),
		newSyncCmd(),
		newPruneCmd(),
		newResetCmd(),
	)

	return root
}

// loadConfig merges flags over the config file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if storePath != "" {
		cfg.Storage.Path = storePath
	}
	if backend != "" {
		cfg.Storage.Backend = backend
	}
	if backendURL != "" {
		cfg.Executor.BaseURL = backendURL
	}
	return cfg, cfg.Validate()
}

// openLog opens the configured action log backend.
func openLog(cfg *config.Config) (*offline.ActionLog, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	return offline.NewActionLog(store, logging.NewLogger(cfg.Logging)), nil
}
