// Package outbox queues panel-data patches for the persistence channel.
//
// Persist never blocks and never reports failure: the panel's local state
// is authoritative and the background process is a best-effort mirror.
// Delivery happens on the Run goroutine, fanned out to every sink.
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/lotas/trackerguard/internal/applog"
	"github.com/lotas/trackerguard/internal/types"
)

// Sink receives patches. Write may block; the outbox calls it from Run.
type Sink interface {
	Name() string
	Write(ctx context.Context, p types.Patch) error
}

// Options controls delivery. The zero value makes a single attempt.
type Options struct {
	Retries int           // extra attempts per sink after a failure
	Backoff time.Duration // delay before the first retry, doubled each time
}

// Outbox is a FIFO of patches drained by Run.
type Outbox struct {
	sinks []Sink
	opts  Options

	mu    sync.Mutex
	queue []types.Patch
	wake  chan struct{}
}

// New creates an outbox delivering to sinks.
func New(opts Options, sinks ...Sink) *Outbox {
	return &Outbox{
		sinks: sinks,
		opts:  opts,
		wake:  make(chan struct{}, 1),
	}
}

// Persist enqueues a patch.
func (o *Outbox) Persist(p types.Patch) {
	if len(p) == 0 {
		return
	}
	o.mu.Lock()
	o.queue = append(o.queue, p)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued patches.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Run delivers patches until ctx is done.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		o.Flush(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.wake:
		}
	}
}

// Flush delivers everything queued so far and returns the number of patches
// taken off the queue.
func (o *Outbox) Flush(ctx context.Context) int {
	n := 0
	for {
		o.mu.Lock()
		if len(o.queue) == 0 {
			o.mu.Unlock()
			return n
		}
		p := o.queue[0]
		o.queue = o.queue[1:]
		o.mu.Unlock()

		o.deliver(ctx, p)
		n++
	}
}

func (o *Outbox) deliver(ctx context.Context, p types.Patch) {
	for _, s := range o.sinks {
		backoff := o.opts.Backoff
		for attempt := 0; ; attempt++ {
			err := s.Write(ctx, p)
			if err == nil {
				applog.Debug("outbox.delivered", "sink", s.Name(), "keys", p.Keys())
				break
			}
			applog.Error("outbox.write", err, "sink", s.Name(), "keys", p.Keys(), "attempt", attempt+1)
			if attempt >= o.opts.Retries || ctx.Err() != nil {
				break
			}
			if backoff > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(backoff):
				}
				backoff *= 2
			}
		}
	}
}

// SinkFunc adapts a function to a Sink.
type SinkFunc struct {
	Label string
	Fn    func(ctx context.Context, p types.Patch) error
}

func (f SinkFunc) Name() string { return f.Label }

func (f SinkFunc) Write(ctx context.Context, p types.Patch) error { return f.Fn(ctx, p) }
