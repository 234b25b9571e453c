// Copyright 2025 The agenthub-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hub provides a per-agent broadcast channel for output events. A
// hub fans out every published event to all current subscribers without ever
// blocking the producer; subscribers that attach after an event was
// published simply miss it, there is no replay buffer.
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/turtacn/agenthub-go/pkg/activity"
)

// DefaultSubscriberBuffer is the buffer size of a subscriber channel when
// none is configured. A subscriber that falls further behind than its buffer
// loses events rather than slowing the agent down.
const DefaultSubscriberBuffer = 16

// Hub broadcasts one agent's output events to any number of subscribers.
// It is safe for concurrent use.
type Hub struct {
	agentID string
	buffer  int

	mu     sync.RWMutex
	subs   map[uint64]chan activity.OutputEvent
	nextID uint64
	closed bool

	dropped atomic.Uint64
}

// New creates a hub for the given agent. A non-positive buffer falls back to
// DefaultSubscriberBuffer.
func New(agentID string, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		agentID: agentID,
		buffer:  buffer,
		subs:    make(map[uint64]chan activity.OutputEvent),
	}
}

// AgentID returns the id of the agent this hub belongs to.
func (h *Hub) AgentID() string {
	return h.agentID
}

// Publish delivers the event to every current subscriber. It never blocks:
// a subscriber whose buffer is full misses this event. Publishing to a
// closed hub is a no-op.
func (h *Hub) Publish(evt activity.OutputEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe attaches a new subscriber and returns its event channel together
// with a cancel function. Each subscriber sees an independent copy of every
// event published after it subscribed. The cancel function detaches the
// subscriber and closes its channel; it is safe to call more than once.
//
// The returned channel is closed when the subscriber cancels or the hub is
// closed, so callers can range over it.
func (h *Hub) Subscribe() (<-chan activity.OutputEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan activity.OutputEvent, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of attached subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns the number of events that were not delivered because a
// subscriber's buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close detaches and closes every subscriber channel. Further Publish calls
// are no-ops and further Subscribe calls return an already-closed channel.
// Close is idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
