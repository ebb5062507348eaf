package orchestrator

import (
	"context"
	"time"
)

// DefaultTickInterval is how often the host loops call Tick.
const DefaultTickInterval = 50 * time.Millisecond

// Run ticks the orchestrator every interval until ctx is done. The progress
// indicator is released on return even if an operation is still in flight.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration) error {
	defer o.Close()

	ticker := time.NewTicker(normalizeInterval(interval))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.Tick()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunUntilIdle ticks the orchestrator until nothing is in flight or pending,
// or until ctx is done.
func (o *Orchestrator) RunUntilIdle(ctx context.Context, interval time.Duration) error {
	defer o.Close()

	ticker := time.NewTicker(normalizeInterval(interval))
	defer ticker.Stop()

	for o.Busy() {
		select {
		case <-ticker.C:
			o.Tick()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func normalizeInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTickInterval
	}
	return d
}
