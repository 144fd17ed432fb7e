package backendpool

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"poc-router/backendclient"
	"poc-router/logging"
)

// StatusWorker sweeps the pool on an interval and refreshes each backend's
// busy state from its status endpoint.
type StatusWorker struct {
	pool     *Pool
	interval time.Duration
}

func NewStatusWorker(pool *Pool, interval time.Duration) *StatusWorker {
	return &StatusWorker{pool: pool, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping every interval.
func (w *StatusWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep queries every backend concurrently and records the results. A
// backend that fails to answer is marked errored and drops out of routing
// until a later sweep sees it healthy again.
func (w *StatusWorker) Sweep(ctx context.Context) {
	backends := w.pool.AllBackends()
	g, ctx := errgroup.WithContext(ctx)
	for _, b := range backends {
		b := b
		g.Go(func() error {
			resp, err := b.Client.Status(ctx)
			if err != nil {
				logging.Warn("Backend status check failed", logging.Nodes,
					"backend", b.Id, "error", err.Error())
				w.pool.SetBusyState(b.Id, BusyError)
				return nil
			}
			w.pool.SetBusyState(b.Id, busyStateFromStatus(resp.Status))
			return nil
		})
	}
	_ = g.Wait()
}

func busyStateFromStatus(status string) BusyState {
	switch status {
	case backendclient.StatusIdle:
		return BusyIdle
	case backendclient.StatusGenerating:
		return BusyGenerating
	default:
		return BusyUnknown
	}
}
