package stream

import (
	"context"
	"sync"
	"time"
)

// #region event

// Event is one streamed pipeline event. Seq is strictly increasing per
// publisher, so consumers can assert ordering.
type Event struct {
	Seq  int
	Type string
	Data map[string]any
	At   time.Time
}

// EventKeepalive is emitted while the pipeline is idle, e.g. waiting on
// an approval poll, so consumers can tell a stall from a dead stream.
const EventKeepalive = "keepalive"

// #endregion event

// #region publisher

// Publisher delivers events to a single consumer in FIFO order. Emits
// are serialized, so event order matches call order. Cancellation of
// the context releases a blocked producer cooperatively.
type Publisher struct {
	ctx    context.Context
	ch     chan Event
	mu     sync.Mutex
	seq    int
	closed bool
	last   time.Time
}

// NewPublisher creates a publisher with the given buffer size.
func NewPublisher(ctx context.Context, buffer int) *Publisher {
	if buffer < 1 {
		buffer = 16
	}
	return &Publisher{
		ctx:  ctx,
		ch:   make(chan Event, buffer),
		last: time.Now(),
	}
}

// Events is the consumer side; closed when the publisher closes.
func (p *Publisher) Events() <-chan Event {
	return p.ch
}

// Emit queues one event. Returns false when the stream is closed or the
// context is cancelled; producers should stop on false.
func (p *Publisher) Emit(event string, data map[string]any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.seq++
	ev := Event{Seq: p.seq, Type: event, Data: data, At: time.Now()}
	select {
	case p.ch <- ev:
		p.last = ev.At
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Close ends the stream. Safe to call once per publisher; Emit after
// Close returns false.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.ch)
}

// #endregion publisher

// #region keepalive

// StartKeepalive emits keepalive events while no other event has been
// published for one interval. It stops when the context is cancelled or
// the publisher closes. Call at most once per publisher.
func (p *Publisher) StartKeepalive(interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
			}
			p.mu.Lock()
			idle := !p.closed && time.Since(p.last) >= interval
			p.mu.Unlock()
			if idle {
				if !p.Emit(EventKeepalive, nil) {
					return
				}
			}
		}
	}()
}

// #endregion keepalive
