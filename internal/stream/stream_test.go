package stream

import (
	"context"
	"testing"
	"time"
)

func TestFIFOOrdering(t *testing.T) {
	p := NewPublisher(context.Background(), 8)
	for i := 0; i < 5; i++ {
		if !p.Emit("score", map[string]any{"i": i}) {
			t.Fatalf("emit %d rejected", i)
		}
	}
	p.Close()

	seq := 0
	for ev := range p.Events() {
		seq++
		if ev.Seq != seq {
			t.Fatalf("out of order: got seq %d, want %d", ev.Seq, seq)
		}
		if ev.Data["i"] != seq-1 {
			t.Fatalf("payload out of order: %v at seq %d", ev.Data, seq)
		}
	}
	if seq != 5 {
		t.Fatalf("expected 5 events, got %d", seq)
	}
}

func TestEmitAfterClose(t *testing.T) {
	p := NewPublisher(context.Background(), 1)
	p.Close()
	if p.Emit("score", nil) {
		t.Fatal("emit after close must return false")
	}
}

func TestCancelReleasesBlockedProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPublisher(ctx, 1)
	p.Emit("a", nil) // fills the buffer; nobody consumes

	done := make(chan bool, 1)
	go func() {
		done <- p.Emit("b", nil)
	}()

	cancel()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("emit must fail after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("producer not released by cancel")
	}
}

func TestKeepaliveWhenIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := NewPublisher(ctx, 8)
	p.StartKeepalive(20 * time.Millisecond)

	select {
	case ev := <-p.Events():
		if ev.Type != EventKeepalive {
			t.Fatalf("expected keepalive, got %s", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no keepalive emitted while idle")
	}
}
