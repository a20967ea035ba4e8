// Package broadcaster implements the bounded, lock-light fan-out used by
// Streaming nodes: one producer per source node id, any number of
// consumers, each with its own fixed-capacity ring that overwrites its
// oldest entry rather than blocking the producer.
package broadcaster

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tracegas/pagraph/internal/frame"
)

const defaultCapacity = 20

// ring is a fixed-capacity, single-producer/single-consumer circular
// buffer of frames. The producer overwrites the oldest slot when full and
// bumps Dropped; the consumer pops from the tail under its own lock so a
// slow reader never blocks the publisher for longer than one memcpy.
type ring struct {
	mu       sync.Mutex
	buf      []frame.AudioFrame
	head     int // next write position
	size     int // number of valid entries
	capacity int
	dropped  uint64
	closed   bool
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]frame.AudioFrame, capacity), capacity: capacity}
}

func (r *ring) push(f frame.AudioFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.buf[r.head] = f
	r.head = (r.head + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	} else {
		r.dropped++
	}
}

func (r *ring) pop() (frame.AudioFrame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == 0 {
		return frame.AudioFrame{}, false
	}
	tail := (r.head - r.size + r.capacity) % r.capacity
	f := r.buf[tail]
	r.size--
	return f, true
}

func (r *ring) droppedCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *ring) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// Subscription is a consumer's handle onto one producer's stream. Recv
// never blocks; it returns ok=false when no frame is currently buffered.
type Subscription struct {
	ID     string
	NodeId string
	ring   *ring
}

// Recv pops the oldest buffered frame for this subscription, if any.
func (s *Subscription) Recv() (frame.AudioFrame, bool) {
	return s.ring.pop()
}

// DroppedFrames returns how many frames this subscriber has lost to
// overwrite-oldest eviction since it subscribed.
func (s *Subscription) DroppedFrames() uint64 {
	return s.ring.droppedCount()
}

// Close marks the subscription's ring closed so no further frames are
// pushed into it. Frames already buffered can still be received, and the
// ring stays registered (and counted by SubscriberCount) until Unsubscribe.
func (s *Subscription) Close() {
	s.ring.close()
}

// Broadcaster fans out frames published under a source node id to any
// number of subscribers. Publish never blocks and never fails by contract:
// a full subscriber ring simply drops its oldest frame.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*ring // nodeId -> subscriptionId -> ring
	capacity    int
}

// New creates a Broadcaster whose subscriber rings hold `capacity` frames
// each (defaultCapacity if capacity <= 0).
func New(capacity int) *Broadcaster {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]*ring),
		capacity:    capacity,
	}
}

// Subscribe registers a new consumer for the given source node id.
func (b *Broadcaster) Subscribe(nodeId string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[nodeId] == nil {
		b.subscribers[nodeId] = make(map[string]*ring)
	}
	id := uuid.NewString()
	r := newRing(b.capacity)
	b.subscribers[nodeId][id] = r
	return &Subscription{ID: id, NodeId: nodeId, ring: r}
}

// Unsubscribe closes a subscription's ring and removes it from the
// broadcaster. Frames already buffered in the ring can still be received.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	sub.Close()
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subscribers[sub.NodeId]; ok {
		delete(subs, sub.ID)
	}
}

// Publish fans a frame out to every current subscriber of nodeId. It never
// blocks: each subscriber ring independently overwrites its oldest entry
// on overflow.
func (b *Broadcaster) Publish(nodeId string, f frame.AudioFrame) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, r := range b.subscribers[nodeId] {
		r.push(f)
	}
}

// SubscriberCount reports how many live subscribers a source node id has.
func (b *Broadcaster) SubscriberCount(nodeId string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[nodeId])
}
