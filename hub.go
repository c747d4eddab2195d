// hub.go: Synchronous topic hub used by the registry and its bindings
//
// Every mutation publishes on the hub and returns only after all
// subscribers ran. Subscriber lists are snapshotted before fan-out so a
// handler may subscribe or cancel (itself or others) while a publish is in
// progress: a cancelled subscriber is skipped, a new one waits for the next
// publish.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"fmt"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// Registry level topics
const (
	TopicAdd    = "add"
	TopicRemove = "remove"
	TopicReset  = "reset"
)

const (
	pathTopicPrefix   = "path:"
	sourceTopicPrefix = "source:"
)

// PathTopic returns the topic notified for a canonical key
// (source, source.record or source.record.field)
func PathTopic(key string) string {
	return pathTopicPrefix + key
}

// SourceTopic returns a source scoped topic such as "source:products:add"
func SourceTopic(sourceID, action string) string {
	return sourceTopicPrefix + sourceID + ":" + action
}

// EventKind describes what happened
type EventKind int

const (
	// EventAdd: a source was registered or a record added to a source
	EventAdd EventKind = iota
	// EventRemove: a source or a record was removed
	EventRemove
	// EventReset: a source's records or the whole registry were replaced
	EventReset
	// EventChange: a record field was set or unset
	EventChange
)

func (k EventKind) String() string {
	switch k {
	case EventAdd:
		return "add"
	case EventRemove:
		return "remove"
	case EventReset:
		return "reset"
	case EventChange:
		return "change"
	default:
		return "unknown"
	}
}

// Event is the payload delivered to hub subscribers. It only signals what
// changed: subscribers read current values from the registry.
type Event struct {
	Topic     string
	Kind      EventKind
	SourceID  string
	RecordID  string
	Field     string
	Source    *Source
	Record    *Record
	Timestamp time.Time
}

// Handler receives hub events
type Handler func(event Event)

// Hub is the publish/subscribe capability shared by an editor session.
// Implementations must deliver synchronously and in subscription order.
type Hub interface {
	Subscribe(topic string, handler Handler) *Subscription
	Publish(topic string, event Event)
	Subscribers(topic string) int
}

// Subscription is the token returned by Subscribe. Cancel is idempotent.
type Subscription struct {
	topic     string
	cancel    func()
	cancelled bool
}

// NewSubscription builds a token for custom Hub implementations
func NewSubscription(topic string, cancel func()) *Subscription {
	return &Subscription{topic: topic, cancel: cancel}
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() string {
	if s == nil {
		return ""
	}
	return s.topic
}

// Active reports whether the subscription still receives events
func (s *Subscription) Active() bool {
	return s != nil && !s.cancelled
}

// Cancel stops delivery. Calling it more than once does nothing.
func (s *Subscription) Cancel() {
	if s == nil || s.cancelled {
		return
	}
	s.cancelled = true
	if s.cancel != nil {
		s.cancel()
	}
}

// PanicHandler is invoked when a subscriber panics
type PanicHandler func(topic string, recovered interface{})

type subscriber struct {
	handler Handler
	active  bool
}

type subscriberList struct {
	subs []*subscriber
}

// eventHub is the default Hub
type eventHub struct {
	topics  map[string]*subscriberList
	onPanic PanicHandler
}

// NewHub returns the default synchronous hub. onPanic may be nil, in which
// case panicking subscribers are silently skipped.
func NewHub(onPanic PanicHandler) Hub {
	return &eventHub{
		topics:  make(map[string]*subscriberList),
		onPanic: onPanic,
	}
}

func (h *eventHub) Subscribe(topic string, handler Handler) *Subscription {
	if handler == nil {
		return NewSubscription(topic, nil)
	}

	list, ok := h.topics[topic]
	if !ok {
		list = &subscriberList{}
		h.topics[topic] = list
	}

	sub := &subscriber{handler: handler, active: true}
	list.subs = append(list.subs, sub)

	return NewSubscription(topic, func() {
		h.remove(topic, sub)
	})
}

func (h *eventHub) remove(topic string, sub *subscriber) {
	sub.active = false

	list, ok := h.topics[topic]
	if !ok {
		return
	}
	for i, s := range list.subs {
		if s == sub {
			// copy instead of in-place shift: a publish may hold the old backing array
			next := make([]*subscriber, 0, len(list.subs)-1)
			next = append(next, list.subs[:i]...)
			next = append(next, list.subs[i+1:]...)
			list.subs = next
			break
		}
	}
	if len(list.subs) == 0 {
		delete(h.topics, topic)
	}
}

func (h *eventHub) Publish(topic string, event Event) {
	list, ok := h.topics[topic]
	if !ok || len(list.subs) == 0 {
		return
	}

	event.Topic = topic
	if event.Timestamp.IsZero() {
		event.Timestamp = timecache.CachedTime()
	}

	snapshot := list.subs
	for _, sub := range snapshot {
		if !sub.active {
			continue
		}
		h.deliver(topic, sub, event)
	}
}

func (h *eventHub) deliver(topic string, sub *subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil && h.onPanic != nil {
			h.onPanic(topic, r)
		}
	}()
	sub.handler(event)
}

func (h *eventHub) Subscribers(topic string) int {
	if list, ok := h.topics[topic]; ok {
		return len(list.subs)
	}
	return 0
}

// panicError turns a recovered value into a coded error
func panicError(topic string, recovered interface{}) error {
	return errors.New(ErrCodeHandlerPanic, fmt.Sprintf("subscriber panicked: %v", recovered)).
		WithContext("topic", topic)
}
