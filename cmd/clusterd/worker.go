package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ClusterLabs/pcs-sub012/internal/codec"
	"github.com/ClusterLabs/pcs-sub012/internal/command"
	"github.com/ClusterLabs/pcs-sub012/internal/logger"
	"github.com/ClusterLabs/pcs-sub012/internal/worker"
)

// workerCmd is spawned by the pool. It reads commands from stdin and writes
// messages to stdout, so it must never print anything else there.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run a worker process (spawned by serve)",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	// The daemon decides when workers die; a terminal ^C reaches the whole
	// process group.
	signal.Ignore(os.Interrupt)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.NewWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	c, err := codec.CBOR()
	if err != nil {
		return err
	}

	pid := os.Getpid()
	log = log.Named("worker").With(zap.Int("pid", pid))
	registry := command.NewBuiltinRegistry()
	log.Debug("worker started", zap.Strings("commands", registry.Names()))

	return worker.Serve(cmd.Context(), os.Stdin, os.Stdout, worker.ServeConfig{
		Registry:     registry,
		Logger:       log,
		Codec:        c,
		PID:          pid,
		RelayTimeout: cfg.Worker.RelayTimeout,
		OutboxSize:   cfg.Worker.OutboxSize,
	})
}
