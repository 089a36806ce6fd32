package scheduler

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Ticker is anything that can run one scheduling round.
type Ticker interface {
	Tick() error
}

// RunLoop calls t.Tick every interval until ctx is done or a tick fails.
// A cancelled context is not an error.
func RunLoop(ctx context.Context, t Ticker, clock clockwork.Clock, interval time.Duration) error {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := t.Tick(); err != nil {
				return err
			}
		}
	}
}
