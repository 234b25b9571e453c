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

package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/turtacn/agenthub-go/pkg/activity"
	"github.com/turtacn/agenthub-go/pkg/actor"
	"github.com/turtacn/agenthub-go/pkg/hub"
	"github.com/turtacn/agenthub-go/pkg/metrics"
)

// TransitionFunc advances an agent's state by one activity. It may call out
// to the runtime's collaborator services; a call that never returns stalls
// this one agent's worker, no timeout is imposed at this layer.
//
// On error the agent's state is left unchanged and the failure is recorded;
// the worker keeps serving subsequent activities.
type TransitionFunc[S any] func(ctx context.Context, state S, act activity.Activity) (S, error)

// CompletionPayload is the payload of a Completion output event.
type CompletionPayload struct {
	ActivityID string `json:"activity_id"`
	Sequence   uint64 `json:"sequence"`
}

// ErrorPayload is the payload of a ProcessingError output event.
type ErrorPayload struct {
	ActivityID string `json:"activity_id"`
	Sequence   uint64 `json:"sequence"`
	Error      string `json:"error"`
}

// Worker drains one agent's mailbox in priority order and is the sole writer
// of that agent's state cell. It implements actor.Actor so it can be run
// under the supervisor.
type Worker[S any] struct {
	id         string
	cell       *Cell[S]
	hub        *hub.Hub
	transition TransitionFunc[S]
	// forward, if non-nil, receives a copy of every published event in
	// addition to the hub's subscribers (used for connector sinks).
	forward func(activity.OutputEvent)
}

// NewWorker creates a worker bound to the given cell and hub.
func NewWorker[S any](id string, cell *Cell[S], h *hub.Hub, fn TransitionFunc[S]) *Worker[S] {
	return &Worker[S]{
		id:         id,
		cell:       cell,
		hub:        h,
		transition: fn,
	}
}

// SetForward attaches an additional event consumer. Must be called before
// the worker is started.
func (w *Worker[S]) SetForward(fn func(activity.OutputEvent)) {
	w.forward = fn
}

// Start is the worker's main loop: take the next activity from the mailbox,
// run the state transition, update the cell, publish the outcome. It returns
// nil on cooperative shutdown (context canceled or past its deadline, or
// mailbox closed) so the supervisor does not restart a terminated agent.
func (w *Worker[S]) Start(ctx context.Context, mb *actor.Mailbox) error {
	log.Printf("Worker started for agent %s", w.id)
	for {
		act, err := mb.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, actor.ErrMailboxClosed) {
				log.Printf("Worker for agent %s shutting down: %v", w.id, err)
				return nil
			}
			return err
		}
		w.process(ctx, act)
	}
}

// process runs a single activity through the transition function.
func (w *Worker[S]) process(ctx context.Context, act activity.Activity) {
	w.cell.beginProcessing()
	start := time.Now()

	next, err := w.invoke(ctx, act)
	elapsed := time.Since(start)
	metrics.ProcessingDurationSeconds.Observe(elapsed.Seconds())

	if err != nil {
		w.cell.recordFailure(err)
		metrics.ProcessingFailuresTotal.Inc()
		log.Printf("Agent %s failed activity %s: %v", w.id, act.ID, err)
		w.publish(activity.EventProcessingError, ErrorPayload{
			ActivityID: act.ID,
			Sequence:   act.Sequence,
			Error:      err.Error(),
		})
		return
	}

	w.cell.commit(next, elapsed)
	metrics.ActivitiesProcessedTotal.Inc()
	w.publish(activity.EventCompletion, CompletionPayload{
		ActivityID: act.ID,
		Sequence:   act.Sequence,
	})
}

// invoke calls the transition function, converting a panic into a processing
// error so one bad activity cannot take the worker down.
func (w *Worker[S]) invoke(ctx context.Context, act activity.Activity) (next S, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("state transition panicked: %v", r)
		}
	}()
	return w.transition(ctx, w.cell.Snapshot().State, act)
}

func (w *Worker[S]) publish(kind activity.EventKind, payload interface{}) {
	evt := activity.OutputEvent{
		AgentID:   w.id,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	w.hub.Publish(evt)
	metrics.EventsPublishedTotal.Inc()
	if w.forward != nil {
		w.forward(evt)
	}
}
