package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"quill/internal/daemon"
	"quill/internal/executor"
	"quill/internal/logging"
	"quill/internal/taskstore"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("prepare directories: %w", err)
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := taskstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open task store: %w", err)
			}
			defer store.Close()

			exec, err := executor.NewFromConfig(cfg, store, logger)
			if err != nil {
				return fmt.Errorf("build executor: %w", err)
			}

			d, err := daemon.New(cfg, store, exec, logger)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Stop()

			if err := d.Start(signalCtx); err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Daemon listening on %s\n", d.APIAddr())
			<-signalCtx.Done()
			logger.Info("daemon shutting down")
			return nil
		},
	}
}
