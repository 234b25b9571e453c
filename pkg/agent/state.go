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

// Package agent implements the per-agent state cell and the worker that
// advances it. The cell's state value is owned exclusively by the agent's
// worker; every external read goes through a point-in-time snapshot, never a
// live reference.
package agent

import (
	"sync"
	"time"
)

// Status describes an agent's lifecycle phase.
type Status string

const (
	// StatusIdle means the worker is waiting for the next activity.
	StatusIdle Status = "idle"
	// StatusProcessing means the worker is inside a state transition.
	StatusProcessing Status = "processing"
	// StatusError means the most recent transition failed. The agent is
	// not quarantined: the next activity moves it back to processing.
	StatusError Status = "error"
	// StatusTerminated is absorbing; the agent is gone from the registry.
	StatusTerminated Status = "terminated"
)

// ProcessingStats accumulates per-agent processing metrics.
type ProcessingStats struct {
	ProcessedCount          uint64  `json:"processed_count"`
	FailureCount            uint64  `json:"failure_count"`
	AverageProcessingTimeMs float64 `json:"average_processing_time_ms"`
	LastError               string  `json:"last_error,omitempty"`
}

// State is a point-in-time snapshot of an agent. The State field is a value
// copy; if S itself contains reference types the caller must treat them as
// read-only.
type State[S any] struct {
	ID          string          `json:"id"`
	State       S               `json:"state"`
	Status      Status          `json:"status"`
	LastUpdated time.Time       `json:"last_updated"`
	Processing  ProcessingStats `json:"processing"`
}

// Cell holds one agent's current status, typed state value, and processing
// metrics behind a mutex. The worker is the only writer of the state value;
// concurrent readers obtain snapshots.
type Cell[S any] struct {
	mu          sync.RWMutex
	id          string
	state       S
	status      Status
	lastUpdated time.Time
	stats       ProcessingStats
}

// NewCell creates a cell with the given initial state and status idle.
func NewCell[S any](id string, initial S) *Cell[S] {
	return &Cell[S]{
		id:          id,
		state:       initial,
		status:      StatusIdle,
		lastUpdated: time.Now(),
	}
}

// Snapshot returns a copy of the agent's current state.
func (c *Cell[S]) Snapshot() State[S] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return State[S]{
		ID:          c.id,
		State:       c.state,
		Status:      c.status,
		LastUpdated: c.lastUpdated,
		Processing:  c.stats,
	}
}

// Status returns the agent's current status.
func (c *Cell[S]) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// beginProcessing moves the agent into the processing status. Called by the
// worker when it dequeues an activity, whether the previous transition
// succeeded or failed.
func (c *Cell[S]) beginProcessing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusTerminated {
		return
	}
	c.status = StatusProcessing
	c.lastUpdated = time.Now()
}

// commit replaces the state value after a successful transition, updates the
// running average processing time, and returns the agent to idle.
func (c *Cell[S]) commit(next S, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusTerminated {
		return
	}
	c.state = next
	c.stats.ProcessedCount++
	ms := float64(elapsed) / float64(time.Millisecond)
	c.stats.AverageProcessingTimeMs += (ms - c.stats.AverageProcessingTimeMs) / float64(c.stats.ProcessedCount)
	c.status = StatusIdle
	c.lastUpdated = time.Now()
}

// recordFailure notes a failed transition. The state value is left exactly
// as it was before the failed activity.
func (c *Cell[S]) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusTerminated {
		return
	}
	c.stats.FailureCount++
	c.stats.LastError = err.Error()
	c.status = StatusError
	c.lastUpdated = time.Now()
}

// MarkTerminated moves the agent into the absorbing terminated status.
func (c *Cell[S]) MarkTerminated() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusTerminated
	c.lastUpdated = time.Now()
}
