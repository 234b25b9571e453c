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

// Package registry owns the lifecycle of every agent in the runtime. It
// creates the per-agent mailbox, state cell, event hub, and supervised
// worker, routes activities in and events out, and tears everything down on
// termination. It also holds the collaborator services (models, providers,
// policy) the rest of the system reaches agents through.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/turtacn/agenthub-go/pkg/activity"
	"github.com/turtacn/agenthub-go/pkg/actor"
	"github.com/turtacn/agenthub-go/pkg/agent"
	"github.com/turtacn/agenthub-go/pkg/hub"
	"github.com/turtacn/agenthub-go/pkg/metrics"
	"github.com/turtacn/agenthub-go/pkg/policy"
	"github.com/turtacn/agenthub-go/pkg/provider"
	"github.com/turtacn/agenthub-go/pkg/storage"
	"github.com/turtacn/agenthub-go/pkg/supervisor"
)

var (
	// ErrAgentExists is returned by Create when the agent id is taken.
	ErrAgentExists = errors.New("agent already exists")
	// ErrAgentNotFound is returned when no live agent has the given id.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrRegistryClosed is returned by Create after Close.
	ErrRegistryClosed = errors.New("registry closed")
)

// Options tunes the resources the registry builds for each agent.
type Options struct {
	// MailboxCapacity is the default lane capacity. Zero means the
	// mailbox default.
	MailboxCapacity int
	// PriorityLaneCapacity is the per-lane capacity for priority lanes.
	PriorityLaneCapacity int
	// EnablePrioritization turns the four priority lanes on.
	EnablePrioritization bool
	// HubBuffer is the per-subscriber event buffer. Zero means the hub
	// default.
	HubBuffer int
}

// entry bundles everything the registry holds for one live agent.
type entry[S any] struct {
	id      string
	cell    *agent.Cell[S]
	mailbox *actor.Mailbox
	hub     *hub.Hub
	cancel  context.CancelFunc
}

// Registry creates, tracks, and terminates agents of state type S.
type Registry[S any] struct {
	opts    Options
	agents  *storage.MemStore[*entry[S]]
	sup     supervisor.Supervisor
	models  *provider.ModelService
	provs   *provider.Service
	policy  *policy.Chain
	forward func(activity.OutputEvent)
	closed  atomic.Bool
}

// New creates a registry wired to the given collaborator services. Any of
// the services may be nil when the caller does not need them.
func New[S any](opts Options, models *provider.ModelService, provs *provider.Service, chain *policy.Chain) *Registry[S] {
	return &Registry[S]{
		opts:   opts,
		agents: storage.NewMemStore[*entry[S]](),
		sup:    supervisor.NewOneForOneSupervisor(),
		models: models,
		provs:  provs,
		policy: chain,
	}
}

// SetForward installs a sink that receives a copy of every output event from
// every agent, in addition to per-agent hub subscribers. Connectors attach
// here. Must be called before Create.
func (r *Registry[S]) SetForward(fn func(activity.OutputEvent)) {
	r.forward = fn
}

// ModelService returns the model routing collaborator.
func (r *Registry[S]) ModelService() *provider.ModelService { return r.models }

// ProviderService returns the provider registry collaborator.
func (r *Registry[S]) ProviderService() *provider.Service { return r.provs }

// PolicyService returns the policy chain collaborator.
func (r *Registry[S]) PolicyService() *policy.Chain { return r.policy }

// Create registers a new agent with the given initial state and transition
// function, starts its supervised worker, and returns a handle scoped to the
// new agent. The worker restarts on abnormal exit; a termination through
// Terminate is final.
func (r *Registry[S]) Create(ctx context.Context, id string, initial S, fn agent.TransitionFunc[S]) (Handle[S], error) {
	if r.closed.Load() {
		return Handle[S]{}, ErrRegistryClosed
	}
	if id == "" {
		return Handle[S]{}, fmt.Errorf("agent id cannot be empty")
	}
	if fn == nil {
		return Handle[S]{}, fmt.Errorf("agent %s: transition function cannot be nil", id)
	}

	mb := actor.NewMailbox(id, actor.Options{
		Capacity:             r.opts.MailboxCapacity,
		PriorityLaneCapacity: r.opts.PriorityLaneCapacity,
		EnablePrioritization: r.opts.EnablePrioritization,
		OnDrop: func(act activity.Activity) {
			metrics.ActivitiesDroppedTotal.WithLabelValues(id).Inc()
		},
	})
	h := hub.New(id, r.opts.HubBuffer)
	cell := agent.NewCell(id, initial)

	worker := agent.NewWorker(id, cell, h, fn)
	if r.forward != nil {
		worker.SetForward(r.forward)
	}

	agentCtx, cancel := context.WithCancel(ctx)
	e := &entry[S]{id: id, cell: cell, mailbox: mb, hub: h, cancel: cancel}

	if err := r.agents.SetIfAbsent(id, e); err != nil {
		cancel()
		h.Close()
		mb.Shutdown()
		if errors.Is(err, storage.ErrExists) {
			return Handle[S]{}, fmt.Errorf("%w: %s", ErrAgentExists, id)
		}
		return Handle[S]{}, err
	}

	// Close may have run between the closed check above and the insert; a
	// Close that snapshotted the agent list before the insert never sees
	// this entry, so tear it down here instead of starting its worker. If
	// Close did see it, its Terminate claims the delete and the teardown.
	if r.closed.Load() {
		if derr := r.agents.Delete(id); derr == nil {
			cancel()
			h.Close()
			mb.Shutdown()
		}
		return Handle[S]{}, ErrRegistryClosed
	}

	r.sup.StartChild(agentCtx, supervisor.Spec{
		ID:      id,
		Actor:   worker,
		Restart: supervisor.RestartTransient,
		Mailbox: mb,
	})

	metrics.AgentsCreatedTotal.Inc()
	metrics.AgentsActive.Inc()
	log.Printf("[INFO] Created agent: %s", id)
	return Handle[S]{registry: r, id: id}, nil
}

// Terminate stops the agent's worker, marks its state terminated, closes its
// mailbox and hub, and removes it from the registry. Terminating an unknown
// or already terminated agent returns ErrAgentNotFound.
func (r *Registry[S]) Terminate(id string) error {
	e, err := r.agents.Get(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	// Claim ownership of the teardown; a concurrent Terminate loses here.
	if err := r.agents.Delete(id); err != nil {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}

	e.cancel()
	e.cell.MarkTerminated()
	e.mailbox.Shutdown()
	e.hub.Close()

	metrics.AgentsTerminatedTotal.Inc()
	metrics.AgentsActive.Dec()
	log.Printf("[INFO] Terminated agent: %s", id)
	return nil
}

// Send enqueues an activity for the agent. Overflow follows the mailbox's
// drop-oldest policy and never surfaces as an error here.
func (r *Registry[S]) Send(id string, act activity.Activity) error {
	e, err := r.agents.Get(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}

	if err := e.mailbox.Offer(act); err != nil {
		if errors.Is(err, actor.ErrMailboxClosed) {
			return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
		}
		return err
	}

	metrics.ActivitiesEnqueuedTotal.Inc()
	return nil
}

// GetState returns an atomic snapshot of the agent's state.
func (r *Registry[S]) GetState(id string) (agent.State[S], error) {
	e, err := r.agents.Get(id)
	if err != nil {
		return agent.State[S]{}, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return e.cell.Snapshot(), nil
}

// Subscribe attaches to the agent's output event stream. The returned cancel
// function detaches the subscriber. Events published before the subscription
// are not replayed.
func (r *Registry[S]) Subscribe(id string) (<-chan activity.OutputEvent, func(), error) {
	e, err := r.agents.Get(id)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	ch, cancel := e.hub.Subscribe()
	return ch, cancel, nil
}

// MailboxLen returns the number of activities queued in the agent's mailbox
// across all lanes.
func (r *Registry[S]) MailboxLen(id string) (int, error) {
	e, err := r.agents.Get(id)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return e.mailbox.Len(), nil
}

// Dropped returns the number of activities the agent's mailbox has evicted.
func (r *Registry[S]) Dropped(id string) (uint64, error) {
	e, err := r.agents.Get(id)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return e.mailbox.Dropped(), nil
}

// List returns the ids of all live agents.
func (r *Registry[S]) List() []string {
	ids := make([]string, 0, r.agents.Len())
	r.agents.Range(func(key string, _ *entry[S]) bool {
		ids = append(ids, key)
		return true
	})
	return ids
}

// Len returns the number of live agents.
func (r *Registry[S]) Len() int {
	return r.agents.Len()
}

// Close terminates every live agent and rejects further Create calls.
func (r *Registry[S]) Close() {
	r.closed.Store(true)
	for _, id := range r.List() {
		if err := r.Terminate(id); err != nil {
			log.Printf("[WARN] Failed to terminate agent %s during close: %v", id, err)
		}
	}
}
