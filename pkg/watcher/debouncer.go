package watcher

import (
	"context"
	"slices"
	"time"

	"github.com/ritzau/incbuild/pkg/logging"
)

// Debouncer batches rapid file system events so one burst of saves causes
// one rebuild. A batch is flushed after quietPeriod without events, or
// maxWait after its first event, whichever comes first.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	quiet := time.NewTimer(d.quietPeriod)
	quiet.Stop()
	deadline := time.NewTimer(d.maxWait)
	deadline.Stop()

	accumulated := make(map[ChangeType][]string)
	eventCount := 0

	flush := func() {
		quiet.Stop()
		deadline.Stop()
		if eventCount == 0 {
			return
		}
		logging.Debug("flushing accumulated events", "count", eventCount)

		// Manifest changes first; they widen the rebuild
		for _, t := range []ChangeType{ChangeTypeManifest, ChangeTypeSource} {
			paths := accumulated[t]
			if len(paths) == 0 {
				continue
			}
			slices.Sort(paths)
			d.output <- ChangeEvent{
				Type:      t,
				Paths:     slices.Compact(paths),
				Timestamp: time.Now(),
			}
		}

		accumulated = make(map[ChangeType][]string)
		eventCount = 0
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}
			if eventCount == 0 {
				deadline.Reset(d.maxWait)
			}
			accumulated[event.Type] = append(accumulated[event.Type], event.Paths...)
			eventCount++
			quiet.Reset(d.quietPeriod)

		case <-quiet.C:
			flush()

		case <-deadline.C:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
