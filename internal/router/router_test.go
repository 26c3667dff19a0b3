package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/openagora/dashsync/internal/connection"
	"github.com/openagora/dashsync/internal/dedup"
	"github.com/openagora/dashsync/internal/model"
)

// recorder collects dispatched events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) handler(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) waitFor(t *testing.T, n int) []model.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for r.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("recorded %d events, want %d", r.count(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Event, len(r.events))
	copy(out, r.events)
	return out
}

func waitForStats(t *testing.T, r Router, pred func(RouterStats) bool) RouterStats {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		stats := r.Stats()
		if pred(stats) {
			return stats
		}
		if time.Now().After(deadline) {
			t.Fatalf("stats never matched: %+v", stats)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startRouter(t *testing.T, window *dedup.Window) (Router, chan connection.RawMessage) {
	t.Helper()
	input := make(chan connection.RawMessage, 16)
	r := NewRouter(input, window, nil, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		r.Stop(ctx)
	})
	return r, input
}

func rawMsg(data string) connection.RawMessage {
	return connection.RawMessage{Data: []byte(data), ReceivedAt: time.Now(), Epoch: 1}
}

func TestRouter_DispatchesToRegisteredHandler(t *testing.T) {
	r, input := startRouter(t, nil)

	rec := &recorder{}
	r.Register(model.KindItemApproved, rec.handler)

	input <- rawMsg(`{"type":"item-approved","id":"d1","msg":{"id":"item-7"}}`)

	events := rec.waitFor(t, 1)
	if events[0].Kind != model.KindItemApproved {
		t.Errorf("Kind = %v, want KindItemApproved", events[0].Kind)
	}
	payload, ok := events[0].Payload.(model.ItemApproved)
	if !ok {
		t.Fatalf("Payload type = %T, want model.ItemApproved", events[0].Payload)
	}
	if payload.ID != "item-7" {
		t.Errorf("payload ID = %q, want item-7", payload.ID)
	}
	if events[0].DeliveryID != "d1" {
		t.Errorf("DeliveryID = %q, want d1", events[0].DeliveryID)
	}
}

func TestRouter_MultipleHandlersInOrder(t *testing.T) {
	r, input := startRouter(t, nil)

	var mu sync.Mutex
	var order []string
	r.Register(model.KindAnswerPosted, func(model.Event) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	r.Register(model.KindAnswerPosted, func(model.Event) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	})

	input <- rawMsg(`{"type":"answer-posted","msg":{"threadTitle":"t"}}`)

	waitForStats(t, r, func(s RouterStats) bool { return s.EventsDispatched == 1 })

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("handler order = %v, want [first second]", order)
	}
}

func TestRouter_PanickingHandlerIsIsolated(t *testing.T) {
	r, input := startRouter(t, nil)

	rec := &recorder{}
	r.Register(model.KindThreadCreated, func(model.Event) {
		panic("subscriber bug")
	})
	r.Register(model.KindThreadCreated, rec.handler)

	input <- rawMsg(`{"type":"thread-created","msg":{"title":"a","forumName":"f"}}`)
	input <- rawMsg(`{"type":"thread-created","msg":{"title":"b","forumName":"f"}}`)

	// Both events still reach the healthy handler.
	rec.waitFor(t, 2)

	stats := r.Stats()
	if stats.HandlerPanics != 2 {
		t.Errorf("HandlerPanics = %d, want 2", stats.HandlerPanics)
	}
	if stats.EventsDispatched != 2 {
		t.Errorf("EventsDispatched = %d, want 2", stats.EventsDispatched)
	}
}

func TestRouter_UnknownTypeSkipped(t *testing.T) {
	r, input := startRouter(t, nil)

	rec := &recorder{}
	r.Register(model.KindItemCreated, rec.handler)

	input <- rawMsg(`{"type":"server-housekeeping","msg":{}}`)
	input <- rawMsg(`{"type":"item-created","msg":{"id":"x"}}`)

	rec.waitFor(t, 1)

	stats := r.Stats()
	if stats.UnknownEvents != 1 {
		t.Errorf("UnknownEvents = %d, want 1", stats.UnknownEvents)
	}
	if stats.ParseErrors != 0 {
		t.Errorf("ParseErrors = %d, want 0", stats.ParseErrors)
	}
}

func TestRouter_MalformedFrameCounted(t *testing.T) {
	r, input := startRouter(t, nil)

	input <- rawMsg(`{not json`)

	stats := waitForStats(t, r, func(s RouterStats) bool { return s.ParseErrors == 1 })
	if stats.EventsDispatched != 0 {
		t.Errorf("EventsDispatched = %d, want 0", stats.EventsDispatched)
	}
}

func TestRouter_DuplicateDeliveryDropped(t *testing.T) {
	r, input := startRouter(t, dedup.NewWindow(8))

	rec := &recorder{}
	r.Register(model.KindItemApproved, rec.handler)

	input <- rawMsg(`{"type":"item-approved","id":"dup-1","msg":{"id":"item-7"}}`)
	input <- rawMsg(`{"type":"item-approved","id":"dup-1","msg":{"id":"item-7"}}`)
	input <- rawMsg(`{"type":"item-approved","id":"dup-2","msg":{"id":"item-8"}}`)

	events := rec.waitFor(t, 2)
	if len(events) != 2 {
		t.Fatalf("dispatched %d events, want 2", len(events))
	}

	stats := r.Stats()
	if stats.DuplicatesDropped != 1 {
		t.Errorf("DuplicatesDropped = %d, want 1", stats.DuplicatesDropped)
	}
}

func TestRouter_EventsWithoutDeliveryIDNeverDeduplicated(t *testing.T) {
	r, input := startRouter(t, dedup.NewWindow(8))

	rec := &recorder{}
	r.Register(model.KindAnswerPosted, rec.handler)

	input <- rawMsg(`{"type":"answer-posted","msg":{"threadTitle":"t"}}`)
	input <- rawMsg(`{"type":"answer-posted","msg":{"threadTitle":"t"}}`)

	rec.waitFor(t, 2)
	if stats := r.Stats(); stats.DuplicatesDropped != 0 {
		t.Errorf("DuplicatesDropped = %d, want 0", stats.DuplicatesDropped)
	}
}

func TestRouter_Unregister(t *testing.T) {
	r, input := startRouter(t, nil)

	rec := &recorder{}
	tok := r.Register(model.KindItemRejected, rec.handler)

	if !r.Unregister(tok) {
		t.Fatal("Unregister returned false for live token")
	}
	if r.Unregister(tok) {
		t.Error("second Unregister returned true")
	}

	input <- rawMsg(`{"type":"item-rejected","msg":{"id":"x"}}`)
	waitForStats(t, r, func(s RouterStats) bool { return s.EventsDispatched == 1 })

	if rec.count() != 0 {
		t.Errorf("unregistered handler received %d events", rec.count())
	}
}

func TestRouter_UnregisterAll(t *testing.T) {
	r, input := startRouter(t, nil)

	rec := &recorder{}
	r.Register(model.KindItemCreated, rec.handler)
	r.Register(model.KindItemCreated, rec.handler)
	r.UnregisterAll(model.KindItemCreated)

	input <- rawMsg(`{"type":"item-created","msg":{"id":"x"}}`)
	waitForStats(t, r, func(s RouterStats) bool { return s.EventsDispatched == 1 })

	if rec.count() != 0 {
		t.Errorf("handlers still receiving after UnregisterAll: %d", rec.count())
	}
}

func TestRouter_StopDrainsCleanly(t *testing.T) {
	input := make(chan connection.RawMessage, 1)
	r := NewRouter(input, nil, nil, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// Closing the input after Stop must not panic anything.
	close(input)
}
