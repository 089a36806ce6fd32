package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ClusterLabs/pcs-sub012/internal/codec"
	"github.com/ClusterLabs/pcs-sub012/internal/command"
	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// ServeConfig configures a worker process loop.
type ServeConfig struct {
	Registry     *command.Registry
	Logger       *zap.Logger
	Codec        codec.StreamCodec
	PID          int
	RelayTimeout time.Duration
	OutboxSize   int
}

// Serve reads WorkerCommands from r and executes them one at a time, writing
// Messages to w. It returns nil when r reaches EOF and every message has been
// written.
func Serve(ctx context.Context, r io.Reader, w io.Writer, cfg ServeConfig) error {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	outbox := NewChannelOutbox(cfg.OutboxSize)
	writeErr := make(chan error, 1)
	go func() {
		writeErr <- drain(outbox, cfg.Codec.NewEncoder(w))
	}()

	deps := Deps{
		Registry:     cfg.Registry,
		Outbox:       outbox,
		Logger:       log,
		PID:          cfg.PID,
		RelayTimeout: cfg.RelayTimeout,
	}

	served := 0
	loopErr := func() error {
		dec := cfg.Codec.NewDecoder(r)
		for {
			var wc types.WorkerCommand
			if err := dec.Decode(&wc); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("decode worker command: %w", err)
			}
			if _, err := Execute(ctx, wc, deps); err != nil {
				return err
			}
			served++
		}
	}()

	outbox.Close()
	err := <-writeErr
	log.Debug("worker loop stopped", zap.Int("served", served))
	if loopErr != nil {
		return loopErr
	}
	return err
}

// drain writes messages until the outbox is closed. After a write error the
// remaining messages are discarded so senders never block forever.
func drain(outbox *ChannelOutbox, enc codec.Encoder) error {
	var firstErr error
	for msg := range outbox.C() {
		if firstErr != nil {
			continue
		}
		if err := enc.Encode(msg); err != nil {
			firstErr = fmt.Errorf("write message: %w", err)
		}
	}
	return firstErr
}
