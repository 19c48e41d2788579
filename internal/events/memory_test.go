package events

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBusDeliversOnlyToTenant(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, _ := bus.Subscribe(ctx, 1)
	b, _ := bus.Subscribe(ctx, 2)

	if err := bus.Publish(ctx, New(1, OrderUpdated, 10, map[string]any{"status": "NEW"})); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-a:
		if e.Type != OrderUpdated || e.EntityID != 10 {
			t.Fatalf("got %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("tenant 1 did not receive event")
	}

	select {
	case e := <-b:
		t.Fatalf("tenant 2 received foreign event %+v", e)
	default:
	}
}

func TestMemoryBusUnsubscribeOnCancel(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := bus.Subscribe(ctx, 7)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// Kapalı aboneye yayın panik etmemeli
	if err := bus.Publish(context.Background(), New(7, TableUpdated, 1, nil)); err != nil {
		t.Fatal(err)
	}
}
