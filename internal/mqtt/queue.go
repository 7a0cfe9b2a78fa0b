package mqtt

import (
	"errors"
	"log"
	"sync"
	"time"
)

// ErrQueueClosed is returned when publishing to a closed QueuedPublisher.
var ErrQueueClosed = errors.New("mqtt: publisher queue closed")

// flushTimeout bounds how long Close waits for queued events to drain.
const flushTimeout = 5 * time.Second

// queuedEvent holds exactly one of a run event or a system event.
type queuedEvent struct {
	run    *RunEvent
	system *SystemEvent
}

// QueuedPublisher hands events to a wrapped Publisher on its own goroutine, so
// Publish and PublishSystem never wait on the broker. Events are forwarded in
// order. When the queue is full new events are dropped and counted.
type QueuedPublisher struct {
	next  Publisher
	queue chan queuedEvent
	done  chan struct{}
	flush time.Duration

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewQueuedPublisher starts forwarding to next. A capacity below 1 uses the
// default buffer capacity.
func NewQueuedPublisher(next Publisher, capacity int) *QueuedPublisher {
	if capacity < 1 {
		capacity = defaultBufferCapacity
	}
	q := &QueuedPublisher{
		next:  next,
		queue: make(chan queuedEvent, capacity),
		done:  make(chan struct{}),
		flush: flushTimeout,
	}
	go q.forward()
	return q
}

// Publish queues a run event.
func (q *QueuedPublisher) Publish(event RunEvent) error {
	return q.enqueue(queuedEvent{run: &event})
}

// PublishSystem queues a system event.
func (q *QueuedPublisher) PublishSystem(event SystemEvent) error {
	return q.enqueue(queuedEvent{system: &event})
}

func (q *QueuedPublisher) enqueue(ev queuedEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.queue <- ev:
	default:
		if q.dropped == 0 {
			log.Printf("mqtt: publish queue full (%d events), dropping new events", cap(q.queue))
		}
		q.dropped++
	}
	return nil
}

func (q *QueuedPublisher) forward() {
	defer close(q.done)
	for ev := range q.queue {
		var err error
		if ev.run != nil {
			err = q.next.Publish(*ev.run)
		} else {
			err = q.next.PublishSystem(*ev.system)
		}
		if err != nil {
			log.Printf("mqtt: publish error: %v", err)
		}
	}
}

// Close stops accepting events, waits a bounded time for the queue to
// drain, then closes the wrapped publisher.
func (q *QueuedPublisher) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.queue)
	}
	dropped := q.dropped
	q.mu.Unlock()

	if dropped > 0 {
		log.Printf("mqtt: %d events were dropped while the publish queue was full", dropped)
	}

	select {
	case <-q.done:
	case <-time.After(q.flush):
		log.Printf("mqtt: gave up flushing publish queue after %v", q.flush)
	}
	return q.next.Close()
}

// IsConnected reports the wrapped publisher's connection state, or false if
// it does not track one.
func (q *QueuedPublisher) IsConnected() bool {
	if cs, ok := q.next.(ConnectionStatus); ok {
		return cs.IsConnected()
	}
	return false
}
