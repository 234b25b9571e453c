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

// package supervisor provides an OTP-style one-for-one supervisor for agent
// workers. Each worker runs in its own goroutine whose lifetime is owned by
// the supervisor; a crashed worker is restarted against the same mailbox
// according to its restart strategy.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/turtacn/agenthub-go/pkg/actor"
	"github.com/turtacn/agenthub-go/pkg/metrics"
)

// defaultRestartDelay spaces out restarts so a persistently failing worker
// does not spin.
const defaultRestartDelay = time.Second

// RestartStrategy defines the restart behavior for a supervised worker.
type RestartStrategy int

const (
	// RestartPermanent restarts the worker whenever it stops.
	RestartPermanent RestartStrategy = iota
	// RestartTransient restarts the worker only when it stops abnormally,
	// that is with an error or a panic. A nil return is a cooperative
	// shutdown and is final.
	RestartTransient
	// RestartTemporary never restarts the worker.
	RestartTemporary
)

// Spec describes one supervised worker.
type Spec struct {
	// ID uniquely identifies the worker, used for logging and metrics.
	ID string
	// Actor is the worker to run.
	Actor actor.Actor
	// Restart is the restart strategy applied when Actor.Start returns.
	Restart RestartStrategy
	// Mailbox is handed to the worker on every (re)start, so queued
	// activities survive a worker restart.
	Mailbox *actor.Mailbox
	// startFunc optionally replaces Actor.Start, for tests.
	startFunc func(context.Context, *actor.Mailbox) error
}

// Supervisor supervises a set of workers.
type Supervisor interface {
	// Start begins supervision of the given specs. Non-blocking.
	Start(ctx context.Context, specs []Spec) error
	// StartChild starts and supervises a single worker dynamically.
	StartChild(ctx context.Context, spec Spec)
}

// OneForOneSupervisor restarts each failed worker individually; a failure in
// one worker never affects its siblings.
type OneForOneSupervisor struct {
	restartDelay time.Duration
}

// NewOneForOneSupervisor creates a new one-for-one supervisor.
func NewOneForOneSupervisor() *OneForOneSupervisor {
	return &OneForOneSupervisor{restartDelay: defaultRestartDelay}
}

// Start launches the initial set of supervised workers. Non-blocking.
func (s *OneForOneSupervisor) Start(ctx context.Context, specs []Spec) error {
	if len(specs) == 0 {
		return fmt.Errorf("no child specs provided")
	}
	for _, spec := range specs {
		s.StartChild(ctx, spec)
	}
	return nil
}

// StartChild launches and monitors a single worker in its own goroutine.
// Canceling ctx stops the worker and prevents any further restart, so the
// registry hands each agent its own cancelable context.
func (s *OneForOneSupervisor) StartChild(ctx context.Context, spec Spec) {
	childCtx, cancel := context.WithCancel(ctx)
	go s.monitorChild(childCtx, cancel, spec)
}

// monitorChild runs the worker, recovers panics, and applies the restart
// strategy every time the worker stops.
func (s *OneForOneSupervisor) monitorChild(ctx context.Context, cancel context.CancelFunc, spec Spec) {
	defer cancel()

	for {
		var err error
		panicked := false
		func() {
			defer func() {
				if r := recover(); r != nil {
					panicked = true
					err = fmt.Errorf("worker %s panicked: %v", spec.ID, r)
				}
			}()
			err = s.startWorker(ctx, spec)
		}()

		if err != nil {
			log.Printf("Worker %s terminated. Reason: %v", spec.ID, err)
		}

		// Never restart once the child's context is done.
		select {
		case <-ctx.Done():
			return
		default:
		}

		shouldRestart := false
		switch spec.Restart {
		case RestartPermanent:
			shouldRestart = true
		case RestartTransient:
			shouldRestart = err != nil || panicked
		case RestartTemporary:
			shouldRestart = false
		}

		if !shouldRestart {
			return
		}

		metrics.SupervisorRestartsTotal.WithLabelValues(spec.ID).Inc()
		log.Printf("Restarting worker %s...", spec.ID)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.restartDelay):
		}
	}
}

// startWorker launches the worker's Start method.
func (s *OneForOneSupervisor) startWorker(ctx context.Context, spec Spec) error {
	log.Printf("Starting worker %s...", spec.ID)
	if spec.startFunc != nil {
		return spec.startFunc(ctx, spec.Mailbox)
	}
	return spec.Actor.Start(ctx, spec.Mailbox)
}
