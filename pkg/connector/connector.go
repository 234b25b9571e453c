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

// Package connector ships agent output events to external systems. A
// Dispatcher fans events out to registered sinks from a buffered queue so a
// slow sink never blocks agent workers; when the queue is full the event is
// dropped and counted.
package connector

import (
	"context"
	"log"
	"sync"

	"github.com/turtacn/agenthub-go/pkg/activity"
)

// defaultQueueSize bounds the dispatcher's in-flight event queue.
const defaultQueueSize = 256

// Sink delivers one output event to an external system.
type Sink interface {
	// Name returns the configured name of the sink
	Name() string
	// Deliver ships one event. Errors are logged, not retried.
	Deliver(ctx context.Context, evt activity.OutputEvent) error
	// Close releases the sink's resources
	Close() error
}

// Dispatcher fans output events out to a set of sinks. Enqueue never blocks;
// delivery happens on a single background goroutine per dispatcher.
type Dispatcher struct {
	mu      sync.RWMutex
	sinks   []Sink
	queue   chan activity.OutputEvent
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped uint64
	dropMu  sync.Mutex
}

// NewDispatcher creates a dispatcher with the given queue size. Zero or
// negative means the default.
func NewDispatcher(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		queue: make(chan activity.OutputEvent, queueSize),
		done:  make(chan struct{}),
	}
}

// AddSink registers a sink. Safe to call before Start only.
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
	log.Printf("[INFO] Registered connector sink: %s", s.Name())
}

// SinkCount returns the number of registered sinks.
func (d *Dispatcher) SinkCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sinks)
}

// Start launches the delivery loop. It runs until ctx is canceled or Close
// is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.done:
				return
			case evt := <-d.queue:
				d.deliver(ctx, evt)
			}
		}
	}()
}

// Enqueue queues an event for delivery. It never blocks; when the queue is
// full the event is dropped. The signature matches the registry's forward
// hook.
func (d *Dispatcher) Enqueue(evt activity.OutputEvent) {
	select {
	case d.queue <- evt:
	default:
		d.dropMu.Lock()
		d.dropped++
		d.dropMu.Unlock()
		log.Printf("[WARN] Connector queue full, dropping event for agent %s", evt.AgentID)
	}
}

// Dropped returns the number of events dropped due to queue overflow.
func (d *Dispatcher) Dropped() uint64 {
	d.dropMu.Lock()
	defer d.dropMu.Unlock()
	return d.dropped
}

func (d *Dispatcher) deliver(ctx context.Context, evt activity.OutputEvent) {
	d.mu.RLock()
	sinks := make([]Sink, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Deliver(ctx, evt); err != nil {
			log.Printf("[ERROR] Sink %s failed to deliver event for agent %s: %v", s.Name(), evt.AgentID, err)
		}
	}
}

// Close stops the delivery loop, drains nothing further, and closes all
// sinks. Idempotent.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.done)
		d.wg.Wait()

		d.mu.Lock()
		defer d.mu.Unlock()
		for _, s := range d.sinks {
			if err := s.Close(); err != nil {
				log.Printf("[WARN] Failed to close sink %s: %v", s.Name(), err)
			}
		}
		d.sinks = nil
	})
}
