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

// Package actor provides the per-agent mailbox and the Actor contract the
// supervisor runs. A mailbox buffers activities for exactly one agent,
// optionally split into discrete priority lanes, with bounded capacity and a
// drop-oldest overflow policy.
package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/turtacn/agenthub-go/pkg/activity"
)

var (
	// ErrMailboxClosed is returned when offering to or receiving from a
	// mailbox that has been shut down.
	ErrMailboxClosed = errors.New("mailbox closed")
	// ErrInvalidPriority is returned when an activity declares a priority
	// lane that does not exist.
	ErrInvalidPriority = errors.New("invalid priority")
)

// numPriorityLanes is the number of discrete priority lanes (0..3) a
// prioritized mailbox maintains ahead of its default lane.
const numPriorityLanes = 4

// Actor defines the contract for a process supervised by the runtime.
type Actor interface {
	// Start is the actor's main loop. It receives a context that controls
	// the actor's lifecycle and the mailbox to drain. Start blocks until
	// the actor terminates and returns nil on cooperative shutdown or an
	// error on abnormal termination.
	Start(ctx context.Context, mb *Mailbox) error
}

// Options configures a mailbox.
type Options struct {
	// Capacity bounds the default lane (and the only lane when
	// prioritization is disabled).
	Capacity int
	// PriorityLaneCapacity bounds each of the four priority lanes. Only
	// meaningful when EnablePrioritization is set.
	PriorityLaneCapacity int
	// EnablePrioritization splits the mailbox into priority lanes 0..3
	// plus a default lane for activities with no declared priority.
	EnablePrioritization bool
	// OnDrop, if non-nil, is invoked for every activity discarded by the
	// drop-oldest overflow policy or by Shutdown. It must not block.
	OnDrop func(activity.Activity)
}

// Mailbox is a bounded, possibly multi-lane inbox for a single agent. It is
// safe for concurrent use by any number of producers and exactly one
// consumer.
//
// When a lane is full the oldest entry in that lane is silently dropped to
// admit the new one. Callers that need guaranteed delivery must size the
// mailbox for their burst profile.
type Mailbox struct {
	agentID string
	opts    Options

	lanes       [numPriorityLanes]chan activity.Activity
	defaultLane chan activity.Activity

	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// NewMailbox creates a mailbox for the given agent. A non-positive capacity
// falls back to a small default so a zero-valued Options is still usable.
func NewMailbox(agentID string, opts Options) *Mailbox {
	if opts.Capacity <= 0 {
		opts.Capacity = 64
	}
	if opts.PriorityLaneCapacity <= 0 {
		opts.PriorityLaneCapacity = opts.Capacity
	}

	mb := &Mailbox{
		agentID:     agentID,
		opts:        opts,
		defaultLane: make(chan activity.Activity, opts.Capacity),
		done:        make(chan struct{}),
	}
	if opts.EnablePrioritization {
		for i := range mb.lanes {
			mb.lanes[i] = make(chan activity.Activity, opts.PriorityLaneCapacity)
		}
	}
	return mb
}

// AgentID returns the id of the agent this mailbox belongs to.
func (mb *Mailbox) AgentID() string {
	return mb.agentID
}

// Offer routes the activity to the lane matching its declared priority, or
// to the default lane when it has none. It never blocks on the consumer: a
// full lane drops its oldest entry to make room.
//
// Offer fails with ErrInvalidPriority when prioritization is enabled and the
// declared priority names a lane that does not exist, and with
// ErrMailboxClosed after Shutdown.
func (mb *Mailbox) Offer(act activity.Activity) error {
	select {
	case <-mb.done:
		return ErrMailboxClosed
	default:
	}

	lane := mb.defaultLane
	if mb.opts.EnablePrioritization && act.HasPriority() {
		p := *act.Priority
		if p < activity.PriorityHighest || p > activity.PriorityLowest {
			return fmt.Errorf("%w: agent %s declared priority %d", ErrInvalidPriority, mb.agentID, p)
		}
		lane = mb.lanes[p]
	}

	for {
		select {
		case lane <- act:
			return nil
		default:
		}
		// Lane is full: evict the oldest entry and retry. The loop
		// terminates because each iteration either frees a slot or
		// observes one freed by the consumer.
		select {
		case old := <-lane:
			mb.recordDrop(old)
		default:
		}
	}
}

// Receive blocks until an activity is available and returns it, draining
// lanes in priority order: lane 0 first, then 1..3, then the default lane.
// Within one lane ordering is strict FIFO.
//
// Starvation of higher-numbered lanes under sustained priority-0 traffic is
// an accepted tradeoff of this policy, not a bug.
//
// Receive returns the context's error when ctx is canceled and
// ErrMailboxClosed after Shutdown. It must only be called by the single
// consuming worker.
func (mb *Mailbox) Receive(ctx context.Context) (activity.Activity, error) {
	if act, ok := mb.tryNext(); ok {
		return act, nil
	}
	// All lanes are empty: block until anything arrives. Nil lane
	// channels (prioritization disabled) block forever and are
	// effectively excluded from the select.
	select {
	case <-ctx.Done():
		return activity.Activity{}, ctx.Err()
	case <-mb.done:
		return activity.Activity{}, ErrMailboxClosed
	case act := <-mb.lanes[0]:
		return act, nil
	case act := <-mb.lanes[1]:
		return act, nil
	case act := <-mb.lanes[2]:
		return act, nil
	case act := <-mb.lanes[3]:
		return act, nil
	case act := <-mb.defaultLane:
		return act, nil
	}
}

// tryNext performs one non-blocking scan over the lanes in priority order.
func (mb *Mailbox) tryNext() (activity.Activity, bool) {
	if mb.opts.EnablePrioritization {
		for i := range mb.lanes {
			select {
			case act := <-mb.lanes[i]:
				return act, true
			default:
			}
		}
	}
	select {
	case act := <-mb.defaultLane:
		return act, true
	default:
	}
	return activity.Activity{}, false
}

// Chan returns the default lane as a read-only channel. This allows callers
// to select over a non-prioritized mailbox together with other channels; for
// prioritized mailboxes Receive is the only ordered dequeue.
func (mb *Mailbox) Chan() <-chan activity.Activity {
	return mb.defaultLane
}

// Len returns the number of activities currently queued across all lanes.
func (mb *Mailbox) Len() int {
	n := len(mb.defaultLane)
	for _, lane := range mb.lanes {
		if lane != nil {
			n += len(lane)
		}
	}
	return n
}

// Dropped returns the number of activities discarded by the overflow policy
// since the mailbox was created.
func (mb *Mailbox) Dropped() uint64 {
	return mb.dropped.Load()
}

// Shutdown releases the mailbox. Activities still queued are discarded
// without delivery and subsequent Offer/Receive calls fail with
// ErrMailboxClosed. Shutdown is idempotent.
func (mb *Mailbox) Shutdown() {
	mb.closeOnce.Do(func() {
		close(mb.done)
		mb.drain(mb.defaultLane)
		for _, lane := range mb.lanes {
			if lane != nil {
				mb.drain(lane)
			}
		}
	})
}

func (mb *Mailbox) drain(lane chan activity.Activity) {
	for {
		select {
		case old := <-lane:
			mb.recordDrop(old)
		default:
			return
		}
	}
}

func (mb *Mailbox) recordDrop(act activity.Activity) {
	mb.dropped.Add(1)
	if mb.opts.OnDrop != nil {
		mb.opts.OnDrop(act)
	}
}
