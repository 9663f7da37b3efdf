package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// RelayConfig controls outbox polling.
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// Relay moves events from the outbox to a Publisher. Delivery is
// at-least-once: a batch that fails to publish is released and retried.
type Relay struct {
	store Store
	pub   Publisher
	cfg   RelayConfig
}

// NewRelay creates a Relay.
func NewRelay(store Store, pub Publisher, cfg RelayConfig) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{store: store, pub: pub, cfg: cfg}
}

// Run polls the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	lg := zctx.From(ctx).Named("relay")
	lg.Info("Outbox relay started", zap.Duration("interval", r.cfg.PollInterval))

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// Drain full batches without waiting for the next tick.
		for {
			n, err := r.Flush(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				lg.Warn("Outbox flush failed", zap.Error(err))
				break
			}
			if n < r.cfg.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			lg.Info("Outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch and returns the number of events published.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	msgs, err := r.store.Claim(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}

	if err := r.pub.Publish(ctx, msgs...); err != nil {
		// Release with a fresh context so cancellation does not strand the batch.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if rerr := r.store.Release(releaseCtx, ids); rerr != nil {
			return 0, errors.Wrap(errors.Join(err, rerr), "publish and release")
		}
		return 0, errors.Wrap(err, "publish")
	}

	if err := r.store.MarkProcessed(ctx, ids); err != nil {
		return 0, err
	}
	return len(msgs), nil
}
