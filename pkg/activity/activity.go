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

// Package activity defines the units of work that flow through the agent
// runtime: the Activity records delivered to an agent's mailbox and the
// OutputEvents an agent broadcasts while processing them. Both are plain
// data; the runtime treats their payloads as opaque.
package activity

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an activity delivered to an agent.
type Kind string

const (
	// KindCommand is a request for the agent to do something.
	KindCommand Kind = "command"
	// KindStateChange is an event describing something that already happened.
	KindStateChange Kind = "state_change"
)

// Priority levels for prioritized mailboxes. Lower values drain first.
const (
	PriorityHighest = 0
	PriorityLowest  = 3
)

// Activity is an immutable unit of work addressed to one agent. It is
// produced by callers and consumed at most once by the owning worker.
//
// Sequence is a monotonically increasing number assigned at creation time.
// Within a single priority lane delivery is FIFO by arrival; when activities
// from several lanes must be globally ordered for audit purposes, Sequence is
// authoritative.
type Activity struct {
	ID        string            `json:"id"`
	AgentID   string            `json:"agent_id"`
	Timestamp time.Time         `json:"timestamp"`
	Kind      Kind              `json:"kind"`
	Payload   interface{}       `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Sequence  uint64            `json:"sequence"`
	// Priority is the optional mailbox lane (0..3, lower drains first).
	// A nil Priority routes the activity to the default lane.
	Priority *int `json:"priority,omitempty"`
}

// HasPriority reports whether the activity declared a mailbox priority.
func (a Activity) HasPriority() bool {
	return a.Priority != nil
}

// EventKind classifies an output event broadcast by an agent.
type EventKind string

const (
	// EventCompletion signals that an activity was processed successfully.
	EventCompletion EventKind = "completion"
	// EventProcessingError signals that processing an activity failed.
	EventProcessingError EventKind = "processing_error"
)

// OutputEvent is an ephemeral event produced while processing one agent's
// activities. It exists only on the in-flight broadcast; subscribers that
// attach later do not see it.
type OutputEvent struct {
	AgentID   string      `json:"agent_id"`
	Kind      EventKind   `json:"kind"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// sequence is the process-wide activity sequence counter.
var sequence atomic.Uint64

// New creates an activity addressed to the given agent, minting a unique ID
// and the next global sequence number.
func New(agentID string, kind Kind, payload interface{}) Activity {
	return Activity{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Timestamp: time.Now(),
		Kind:      kind,
		Payload:   payload,
		Sequence:  sequence.Add(1),
	}
}

// WithPriority returns a copy of the activity routed to the given priority
// lane. The value is not validated here; the mailbox rejects priorities
// outside 0..3 when prioritization is enabled.
func (a Activity) WithPriority(p int) Activity {
	a.Priority = &p
	return a
}

// WithMetadata returns a copy of the activity with the given metadata entry
// set, copying the map so the original record stays immutable.
func (a Activity) WithMetadata(key, value string) Activity {
	md := make(map[string]string, len(a.Metadata)+1)
	for k, v := range a.Metadata {
		md[k] = v
	}
	md[key] = value
	a.Metadata = md
	return a
}
