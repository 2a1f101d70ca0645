package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"quill/internal/config"
	"quill/internal/daemon"
	"quill/internal/executor"
	"quill/internal/logging"
	"quill/internal/taskstore"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := taskstore.Open(cfg)
	if err != nil {
		logger.Error("open task store", logging.Error(err))
		return
	}

	exec, err := executor.NewFromConfig(cfg, store, logger)
	if err != nil {
		logger.Error("build executor", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, store, exec, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("quilld shutting down")
}
