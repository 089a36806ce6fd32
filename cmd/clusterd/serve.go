package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ClusterLabs/pcs-sub012/api/rest"
	"github.com/ClusterLabs/pcs-sub012/internal/archive"
	"github.com/ClusterLabs/pcs-sub012/internal/config"
	"github.com/ClusterLabs/pcs-sub012/internal/logger"
	"github.com/ClusterLabs/pcs-sub012/internal/pool"
	"github.com/ClusterLabs/pcs-sub012/internal/scheduler"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

const (
	shutdownTimeout = 30 * time.Second
	archiveBuffer   = 256
	archiveTimeout  = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the task daemon",
	Long: `Start the worker pool, the scheduler and the HTTP task API.

SIGINT or SIGTERM stops accepting requests, kills every unfinished task and
waits for the workers to exit.`,
	Example: `  clusterd serve
  clusterd serve --config /etc/clusterd/clusterd.yaml
  clusterd serve --set pool.size=8 --set server.address=0.0.0.0:2224`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerArgv, err := workerCommand(cfg.Pool)
	if err != nil {
		return err
	}

	inbox := make(chan types.Message, cfg.Scheduler.MessageBuffer)
	p, err := pool.New(pool.Config{
		Size:              cfg.Pool.Size,
		MaxTasksPerWorker: cfg.Pool.MaxTasksPerWorker,
		Command:           workerArgv,
		Env:               cfg.Pool.Env,
		SpawnBackoffMax:   cfg.Pool.SpawnBackoffMax,
	}, inbox, log)
	if err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}

	opts := []scheduler.Option{
		scheduler.WithLogger(log),
		scheduler.WithTimeouts(cfg.Scheduler.AbandonedTimeout, cfg.Scheduler.UnresponsiveTimeout),
	}
	var recorder *archive.Recorder
	if cfg.Archive.Enabled {
		a, err := archive.NewRedis(ctx, cfg.Archive)
		if err != nil {
			_ = p.Close(context.Background())
			return fmt.Errorf("connect task archive: %w", err)
		}
		recorder = archive.NewRecorder(a, archiveBuffer, archiveTimeout, log)
		opts = append(opts, scheduler.WithRecorder(recorder))
	}

	sched := scheduler.NewLocked(scheduler.New(p, inbox, opts...))
	server := rest.NewServer(sched, cfg.Server, log)

	log.Info("clusterd starting",
		zap.String("version", Version),
		zap.String("address", cfg.Server.Address),
		zap.Int("pool_size", cfg.Pool.Size),
		zap.Strings("worker_command", workerArgv),
		zap.Bool("archive", cfg.Archive.Enabled),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.RunLoop(gctx, sched, clockwork.NewRealClock(), cfg.Scheduler.TickInterval)
	})
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		return server.ShutdownWithTimeout(shutdownTimeout)
	})
	runErr := g.Wait()
	if runErr != nil {
		log.Error("clusterd stopping on error", zap.Error(runErr))
	} else {
		log.Info("clusterd stopping")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = multierr.Append(runErr, sched.Shutdown(shutdownCtx))
	if recorder != nil {
		err = multierr.Append(err, recorder.Close(shutdownCtx))
	}
	return err
}

// workerCommand returns the configured worker argv, defaulting to this
// executable's hidden worker subcommand with the same config sources.
func workerCommand(cfg config.PoolConfig) ([]string, error) {
	if len(cfg.Command) > 0 {
		return cfg.Command, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable for workers: %w", err)
	}
	argv := []string{exe, "worker"}
	if cfgFile != "" {
		argv = append(argv, "--config", cfgFile)
	}
	for _, o := range overrides {
		argv = append(argv, "--set", o)
	}
	return argv, nil
}
