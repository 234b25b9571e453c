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

package registry

import (
	"github.com/turtacn/agenthub-go/pkg/activity"
	"github.com/turtacn/agenthub-go/pkg/agent"
)

// Handle scopes registry operations to a single agent, so collaborators can
// be handed access to one agent without seeing the whole directory. The
// handle does not pin the agent: operations after termination return
// ErrAgentNotFound.
type Handle[S any] struct {
	registry *Registry[S]
	id       string
}

// Handle returns a scoped handle for the agent. The agent must be live.
func (r *Registry[S]) Handle(id string) (Handle[S], error) {
	if _, err := r.agents.Get(id); err != nil {
		return Handle[S]{}, ErrAgentNotFound
	}
	return Handle[S]{registry: r, id: id}, nil
}

// ID returns the agent id the handle is scoped to.
func (h Handle[S]) ID() string {
	return h.id
}

// Send enqueues an activity for the handle's agent.
func (h Handle[S]) Send(act activity.Activity) error {
	return h.registry.Send(h.id, act)
}

// GetState returns an atomic snapshot of the agent's state.
func (h Handle[S]) GetState() (agent.State[S], error) {
	return h.registry.GetState(h.id)
}

// Subscribe attaches to the agent's output event stream.
func (h Handle[S]) Subscribe() (<-chan activity.OutputEvent, func(), error) {
	return h.registry.Subscribe(h.id)
}
