package engine

import "testing"

func TestPublishNeverBlocksOnAFullSubscriber(t *testing.T) {
	bus := NewEventBus(1)
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	// Fill the subscriber's buffer, then publish one more: this must not
	// block even though nothing is draining sub.Events, and the newest
	// event must win the slot.
	bus.Publish(EngineEvent{Kind: EventTrade})
	bus.Publish(EngineEvent{Kind: EventOrderBookUpdate})

	ev := <-sub.Events
	if ev.Kind != EventOrderBookUpdate {
		t.Fatalf("expected the newest event to survive the eviction, got kind %v", ev.Kind)
	}
}

func TestLagIsSurfacedOnceASlotFrees(t *testing.T) {
	bus := NewEventBus(2)
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	bus.Publish(EngineEvent{Kind: EventTrade})
	bus.Publish(EngineEvent{Kind: EventTrade})
	bus.Publish(EngineEvent{Kind: EventTrade}) // evicts the first

	if ev := <-sub.Events; ev.Kind != EventTrade {
		t.Fatalf("expected a surviving trade, got kind %v", ev.Kind)
	}
	if ev := <-sub.Events; ev.Kind != EventTrade {
		t.Fatalf("expected the second surviving trade, got kind %v", ev.Kind)
	}

	// The next publish finds room and must deliver the pending lag marker
	// before the new event.
	bus.Publish(EngineEvent{Kind: EventOrderBookUpdate})

	lag := <-sub.Events
	if lag.Kind != EventLagged {
		t.Fatalf("expected a Lagged marker for the evicted event, got kind %v", lag.Kind)
	}
	if lag.Lag.Skipped != 1 {
		t.Fatalf("expected 1 skipped event, got %d", lag.Lag.Skipped)
	}
	if ev := <-sub.Events; ev.Kind != EventOrderBookUpdate {
		t.Fatalf("expected the new event after the lag marker, got kind %v", ev.Kind)
	}
}

func TestLagAccumulatesAcrossEvictions(t *testing.T) {
	bus := NewEventBus(2)
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	for i := 0; i < 5; i++ {
		bus.Publish(EngineEvent{Kind: EventTrade})
	}

	// Buffer of 2: of 5 published events, 3 were evicted. Close flushes the
	// accumulated count ahead of the terminal event.
	bus.Close()

	var skipped, trades int
	for ev := range sub.Events {
		switch ev.Kind {
		case EventTrade:
			trades++
		case EventLagged:
			skipped += ev.Lag.Skipped
		}
	}
	if trades+skipped != 5 {
		t.Fatalf("expected every published event delivered or accounted as lag, got %d delivered + %d skipped", trades, skipped)
	}
	if skipped == 0 {
		t.Fatal("expected nonzero lag after overflowing a 2-slot buffer with 5 events")
	}
}

func TestCloseDeliversTerminalEventThenClosesChannel(t *testing.T) {
	bus := NewEventBus(4)
	sub := bus.Subscribe()

	bus.Close()

	ev, ok := <-sub.Events
	if !ok {
		t.Fatal("expected EventClosed before the channel closes")
	}
	if ev.Kind != EventClosed {
		t.Fatalf("expected EventClosed, got kind %v", ev.Kind)
	}

	if _, ok := <-sub.Events; ok {
		t.Fatal("expected the channel to be closed after EventClosed")
	}
}

func TestSubscribeAfterCloseIsPreClosed(t *testing.T) {
	bus := NewEventBus(4)
	bus.Close()

	sub := bus.Subscribe()
	ev, ok := <-sub.Events
	if !ok || ev.Kind != EventClosed {
		t.Fatal("expected a late subscriber to immediately see EventClosed")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus(4)
	sub := bus.Subscribe()
	sub.Unsubscribe()

	// Publishing after Unsubscribe must not panic or deadlock.
	bus.Publish(EngineEvent{Kind: EventTrade})

	if ev, ok := <-sub.Events; ok {
		t.Fatalf("expected no delivery after Unsubscribe, got kind %v", ev.Kind)
	}
}
