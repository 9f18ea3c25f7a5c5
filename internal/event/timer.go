package event

import (
	"context"
	"time"
)

// Timer emits a Tick every Interval.
type Timer struct {
	Interval time.Duration
}

// Run emits ticks onto events until ctx is cancelled. It never fails.
func (t Timer) Run(ctx context.Context, events chan<- Event) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case at := <-ticker.C:
			select {
			case <-ctx.Done():
				return
			case events <- Tick{At: at}:
			}
		}
	}
}
