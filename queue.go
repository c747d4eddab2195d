// queue.go: MPSC ring buffer carrying registry mutations to the editor's goroutine
//
// An Editor is single threaded, while a started Feed polls on its own
// goroutine. A MutationQueue sits between the two: feeds (the producers)
// claim slots with atomic sequences, and the goroutine that owns the
// editor (the single consumer) runs the queued mutations in order with
// Drain.
//
//	queue := datasources.NewMutationQueue(64)
//	feed := datasources.NewFeed(editor, datasources.FeedConfig{Dispatch: queue.Dispatch})
//	_ = feed.Start()
//	for range queue.Ready() {
//		queue.Drain()
//	}
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"runtime"
	"sync/atomic"
	"time"
)

// QueueStats reports the activity of a MutationQueue
type QueueStats struct {
	Capacity  int64
	Pending   int64
	Processed int64
	Dropped   int64
}

// MutationQueue is a bounded multi-producer single-consumer queue of
// mutations
type MutationQueue struct {
	buffer   []func()
	capacity int64
	mask     int64 // capacity - 1

	writerCursor atomic.Int64
	readerCursor atomic.Int64
	_            [48]byte // keeps the cursors off the counters' cache line

	// available[i] holds the sequence stored in slot i, or -1 when free
	available []atomic.Int64

	ready  chan struct{}
	closed atomic.Bool

	processed atomic.Int64
	dropped   atomic.Int64
}

// NewMutationQueue creates a queue with capacity slots. Capacity must be a
// power of two; other values fall back to 64.
func NewMutationQueue(capacity int64) *MutationQueue {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		capacity = 64
	}

	q := &MutationQueue{
		buffer:    make([]func(), capacity),
		capacity:  capacity,
		mask:      capacity - 1,
		available: make([]atomic.Int64, capacity),
		ready:     make(chan struct{}, 1),
	}
	for i := range q.available {
		q.available[i].Store(-1)
	}
	return q
}

// TryDispatch queues apply without waiting. It returns false when the
// queue is full or closed.
func (q *MutationQueue) TryDispatch(apply func()) bool {
	if q.closed.Load() {
		q.dropped.Add(1)
		return false
	}

	for {
		seq := q.writerCursor.Load()
		if seq >= q.readerCursor.Load()+q.capacity {
			return false
		}
		if !q.writerCursor.CompareAndSwap(seq, seq+1) {
			continue
		}

		idx := seq & q.mask
		q.buffer[idx] = apply
		q.available[idx].Store(seq)

		select {
		case q.ready <- struct{}{}:
		default:
		}
		return true
	}
}

// Dispatch queues apply, waiting for a free slot while the queue is full.
// It has the signature of FeedConfig.Dispatch. Mutations dispatched after
// Close are dropped.
func (q *MutationQueue) Dispatch(apply func()) {
	spins := 0
	for !q.TryDispatch(apply) {
		if q.closed.Load() {
			return
		}

		spins++
		switch {
		case spins < 1000:
			runtime.Gosched()
		default:
			time.Sleep(100 * time.Microsecond)
		}
	}
}

// Drain runs every queued mutation in dispatch order and returns how many
// ran. It must only be called from the goroutine that owns the editor.
// Mutations may dispatch further mutations; those run in the same Drain.
func (q *MutationQueue) Drain() int {
	n := 0
	for {
		current := q.readerCursor.Load()
		idx := current & q.mask
		if q.available[idx].Load() != current {
			return n
		}

		apply := q.buffer[idx]
		q.buffer[idx] = nil
		q.available[idx].Store(-1)
		q.readerCursor.Store(current + 1)
		q.processed.Add(1)

		apply()
		n++
	}
}

// Ready is signaled after a mutation was queued. One signal may stand for
// several mutations; Drain runs them all.
func (q *MutationQueue) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of queued mutations
func (q *MutationQueue) Len() int {
	return int(q.writerCursor.Load() - q.readerCursor.Load())
}

// Close rejects further mutations. Queued ones can still be drained.
func (q *MutationQueue) Close() {
	q.closed.Store(true)
}

// Stats returns the queue counters
func (q *MutationQueue) Stats() QueueStats {
	return QueueStats{
		Capacity:  q.capacity,
		Pending:   int64(q.Len()),
		Processed: q.processed.Load(),
		Dropped:   q.dropped.Load(),
	}
}
