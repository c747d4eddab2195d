// hub_test.go: Tests for the synchronous topic hub
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"testing"
)

func TestHub_DeliversInSubscriptionOrder(t *testing.T) {
	hub := NewHub(nil)

	var order []string
	hub.Subscribe("t", func(Event) { order = append(order, "A") })
	hub.Subscribe("t", func(Event) { order = append(order, "B") })
	hub.Subscribe("other", func(Event) { order = append(order, "X") })

	hub.Publish("t", Event{Kind: EventChange})

	if len(order) != 2 || order[0] != "A" || order[1] != "B" {
		t.Errorf("delivery order = %v, want [A B]", order)
	}
}

func TestHub_EventCarriesTopicAndTimestamp(t *testing.T) {
	hub := NewHub(nil)

	var got Event
	hub.Subscribe("t", func(e Event) { got = e })
	hub.Publish("t", Event{Kind: EventAdd, SourceID: "s"})

	if got.Topic != "t" {
		t.Errorf("Topic = %q, want t", got.Topic)
	}
	if got.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
	if got.SourceID != "s" || got.Kind != EventAdd {
		t.Errorf("payload lost: %+v", got)
	}
}

func TestHub_CancelIsIdempotent(t *testing.T) {
	hub := NewHub(nil)

	calls := 0
	sub := hub.Subscribe("t", func(Event) { calls++ })
	if hub.Subscribers("t") != 1 {
		t.Fatalf("Subscribers = %d, want 1", hub.Subscribers("t"))
	}

	sub.Cancel()
	sub.Cancel()

	if sub.Active() {
		t.Error("cancelled subscription still active")
	}
	if hub.Subscribers("t") != 0 {
		t.Errorf("Subscribers = %d after cancel", hub.Subscribers("t"))
	}

	hub.Publish("t", Event{})
	if calls != 0 {
		t.Errorf("cancelled handler called %d times", calls)
	}
}

func TestHub_CancelOtherDuringPublish(t *testing.T) {
	hub := NewHub(nil)

	var second *Subscription
	calls := 0
	hub.Subscribe("t", func(Event) { second.Cancel() })
	second = hub.Subscribe("t", func(Event) { calls++ })
	hub.Subscribe("t", func(Event) { calls += 10 })

	hub.Publish("t", Event{})

	if calls != 10 {
		t.Errorf("calls = %d, want only the third handler (10)", calls)
	}
}

func TestHub_CancelSelfDuringPublish(t *testing.T) {
	hub := NewHub(nil)

	calls := 0
	var self *Subscription
	self = hub.Subscribe("t", func(Event) {
		calls++
		self.Cancel()
	})

	hub.Publish("t", Event{})
	hub.Publish("t", Event{})

	if calls != 1 {
		t.Errorf("self-cancelling handler called %d times, want 1", calls)
	}
}

func TestHub_SubscribeDuringPublishWaitsForNextPublish(t *testing.T) {
	hub := NewHub(nil)

	late := 0
	hub.Subscribe("t", func(Event) {
		hub.Subscribe("t", func(Event) { late++ })
	})

	hub.Publish("t", Event{})
	if late != 0 {
		t.Errorf("subscriber added mid-publish ran %d times", late)
	}

	hub.Publish("t", Event{})
	if late != 1 {
		t.Errorf("late subscriber ran %d times on next publish, want 1", late)
	}
}

func TestHub_PanicIsolation(t *testing.T) {
	var panics []string
	hub := NewHub(func(topic string, recovered interface{}) {
		panics = append(panics, topic)
	})

	reached := false
	hub.Subscribe("t", func(Event) { panic("boom") })
	hub.Subscribe("t", func(Event) { reached = true })

	hub.Publish("t", Event{})

	if !reached {
		t.Error("subscriber after a panicking one was not called")
	}
	if len(panics) != 1 || panics[0] != "t" {
		t.Errorf("panic handler calls = %v", panics)
	}
}

func TestHub_NilHandler(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("t", nil)
	if hub.Subscribers("t") != 0 {
		t.Error("nil handler was registered")
	}
	sub.Cancel()
	hub.Publish("t", Event{})
}

func TestSubscription_NilSafe(t *testing.T) {
	var sub *Subscription
	sub.Cancel()
	if sub.Active() {
		t.Error("nil subscription reported active")
	}
	if sub.Topic() != "" {
		t.Error("nil subscription has a topic")
	}
}

func TestPanicError(t *testing.T) {
	err := panicError("path:s.r.f", "boom")
	if ErrorCode(err) != ErrCodeHandlerPanic {
		t.Errorf("code = %q, want %q", ErrorCode(err), ErrCodeHandlerPanic)
	}
}

func TestEventKind_String(t *testing.T) {
	kinds := map[EventKind]string{
		EventAdd:     "add",
		EventRemove:  "remove",
		EventReset:   "reset",
		EventChange:  "change",
		EventKind(9): "unknown",
	}
	for kind, want := range kinds {
		if got := kind.String(); got != want {
			t.Errorf("EventKind(%d).String() = %q, want %q", int(kind), got, want)
		}
	}
}
