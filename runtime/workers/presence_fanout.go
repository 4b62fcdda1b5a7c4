package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"linkup/contract"
	"linkup/domain/event"
)

// PresenceFanout pushes the current online-user set to every live
// connection after a registry mutation.
//
// It provides best-effort fan-out with no guarantees regarding
// delivery, ordering, or retries: each connection's push runs in its
// own goroutine bounded by sinkTimeout, and a slow or dead connection
// never blocks the others nor surfaces an error to whoever triggered
// the registry change. Presence is eventually consistent on the next
// successful push.
type PresenceFanout struct {
	log         *slog.Logger
	registry    contract.IConnectionRegistry
	changes     chan event.PresenceChanged
	sinkTimeout time.Duration
}

func NewPresenceFanout(log *slog.Logger, registry contract.IConnectionRegistry,
	changes chan event.PresenceChanged, sinkTimeout time.Duration) *PresenceFanout {
	return &PresenceFanout{log: log, registry: registry, changes: changes, sinkTimeout: sinkTimeout}
}

func (w *PresenceFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence fan-out")
			return nil
		case evt := <-w.changes:
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout delivers one presence snapshot to all live sinks. Per-sink
// failures are logged and swallowed.
func (w *PresenceFanout) Fanout(ctx context.Context, evt event.PresenceChanged) {
	sinks := w.registry.Sinks()

	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func(s contract.EventSink) {
			defer wg.Done()
			pushCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
			defer cancel()
			if err := s.Consume(pushCtx, evt); err != nil {
				w.log.Warn("Presence push failed for one connection", "error", err)
			}
		}(sink)
	}
	wg.Wait()
}
